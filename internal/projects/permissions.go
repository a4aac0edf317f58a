package projects

import "github.com/hearthforge/backend/internal/storage"

// TeamPermission is a per-team bitset gating project/version mutation
// endpoints, distinct from the PAT Scope bitset: Scope says what kind of
// request a bearer token may make at all, TeamPermission says what a given
// user may do to a given project once authenticated.
type TeamPermission int64

const (
	PermEditDetails TeamPermission = 1 << iota
	PermEditBody
	PermManageInvites
	PermRemoveMember
	PermEditMember
	PermDeleteProject
	PermUploadVersion
	PermDeleteVersion
	PermViewPayouts
	PermViewAnalytics
	PermManageExternalLinks
)

// Has reports whether p contains every bit in required.
func (p TeamPermission) Has(required TeamPermission) bool { return p&required == required }

// Owner carries every bit: project/org creators and organization owners
// always have full control regardless of their stored TeamMember row.
const Owner = TeamPermission(^int64(0))

// EffectivePermissions computes a user's permission set against a project,
// per spec.md §4.I: "a project inherits its org's team when no direct
// membership exists; effective permissions are the union for org-owners,
// else the direct membership set."
//
// direct is the user's membership row on the project's own team (nil if
// none). org is the user's membership row on the project's organization
// team (nil if the project has no organization, or the user isn't a member
// of it). isOrgOwner is true when the user is the owning organization's
// OwnerUserID.
func EffectivePermissions(direct, org *storage.TeamMember, isOrgOwner bool) TeamPermission {
	if isOrgOwner {
		return Owner
	}

	directPerm := TeamPermission(0)
	if direct != nil && direct.Accepted {
		directPerm = TeamPermission(direct.Permissions)
	}

	if direct == nil || !direct.Accepted {
		if org != nil && org.Accepted {
			return TeamPermission(org.Permissions)
		}
		return 0
	}

	return directPerm
}
