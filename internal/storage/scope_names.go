package storage

import (
	"sort"
	"strings"
)

// scopeNames is the canonical string name for every Scope bit, in the
// shape a PAT-creation request or an API client's scope list uses
// ("PROJECT_READ", not a raw bitmask).
var scopeNames = map[Scope]string{
	ScopeProjectRead:                 "PROJECT_READ",
	ScopeProjectWrite:                "PROJECT_WRITE",
	ScopeProjectCreate:               "PROJECT_CREATE",
	ScopeProjectDelete:               "PROJECT_DELETE",
	ScopeVersionRead:                 "VERSION_READ",
	ScopeVersionWrite:                "VERSION_WRITE",
	ScopeVersionCreate:               "VERSION_CREATE",
	ScopeVersionDelete:               "VERSION_DELETE",
	ScopeUserRead:                    "USER_READ",
	ScopeUserWrite:                   "USER_WRITE",
	ScopeUserAuthWrite:               "USER_AUTH_WRITE",
	ScopeUserDelete:                  "USER_DELETE",
	ScopeNotificationRead:            "NOTIFICATION_READ",
	ScopeNotificationWrite:           "NOTIFICATION_WRITE",
	ScopeCollectionRead:              "COLLECTION_READ",
	ScopeCollectionWrite:             "COLLECTION_WRITE",
	ScopeCollectionCreate:            "COLLECTION_CREATE",
	ScopeCollectionDelete:            "COLLECTION_DELETE",
	ScopeReportRead:                  "REPORT_READ",
	ScopeReportWrite:                 "REPORT_WRITE",
	ScopeReportCreate:                "REPORT_CREATE",
	ScopeReportDelete:                "REPORT_DELETE",
	ScopeThreadRead:                  "THREAD_READ",
	ScopeThreadWrite:                 "THREAD_WRITE",
	ScopePATRead:                     "PAT_READ",
	ScopePATWrite:                    "PAT_WRITE",
	ScopePATCreate:                   "PAT_CREATE",
	ScopePATDelete:                   "PAT_DELETE",
	ScopeOrganizationRead:            "ORGANIZATION_READ",
	ScopeOrganizationWrite:           "ORGANIZATION_WRITE",
	ScopeOrganizationCreate:          "ORGANIZATION_CREATE",
	ScopeOrganizationDelete:          "ORGANIZATION_DELETE",
	ScopePayoutsRead:                 "PAYOUTS_READ",
	ScopePayoutsWrite:                "PAYOUTS_WRITE",
	ScopeSessionAccess:               "SESSION_ACCESS",
	ScopeSharedInstanceVersionCreate: "SHARED_INSTANCE_VERSION_CREATE",
}

var scopesByName = func() map[string]Scope {
	m := make(map[string]Scope, len(scopeNames))
	for bit, name := range scopeNames {
		m[name] = bit
	}
	return m
}()

// ParseScopeNames ORs together the Scope bit for each name, rejecting any
// name that isn't in the canonical table. Used by the PAT-creation route
// to accept `{"scopes": ["PROJECT_READ", "VERSION_WRITE"]}` instead of a
// raw integer bitmask.
func ParseScopeNames(names []string) (Scope, error) {
	var s Scope
	for _, name := range names {
		bit, ok := scopesByName[strings.ToUpper(strings.TrimSpace(name))]
		if !ok {
			return 0, &unknownScopeError{name: name}
		}
		s |= bit
	}
	return s, nil
}

type unknownScopeError struct{ name string }

func (e *unknownScopeError) Error() string { return "storage: unknown scope name " + e.name }

// Names renders s as its sorted canonical scope-name list.
func (s Scope) Names() []string {
	var names []string
	for bit, name := range scopeNames {
		if s.Has(bit) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
