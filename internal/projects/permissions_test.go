package projects

import (
	"testing"

	"github.com/hearthforge/backend/internal/storage"
)

func TestEffectivePermissionsOrgOwnerAlwaysFull(t *testing.T) {
	got := EffectivePermissions(nil, nil, true)
	if got != Owner {
		t.Fatalf("org owner: got %#x, want Owner", int64(got))
	}
}

func TestEffectivePermissionsDirectMembershipWins(t *testing.T) {
	direct := &storage.TeamMember{Accepted: true, Permissions: int64(PermEditDetails)}
	org := &storage.TeamMember{Accepted: true, Permissions: int64(Owner)}
	got := EffectivePermissions(direct, org, false)
	if got != PermEditDetails {
		t.Fatalf("got %#x, want PermEditDetails alone (direct overrides org)", int64(got))
	}
}

func TestEffectivePermissionsFallsBackToOrgWhenNoDirectMembership(t *testing.T) {
	org := &storage.TeamMember{Accepted: true, Permissions: int64(PermEditDetails | PermUploadVersion)}
	got := EffectivePermissions(nil, org, false)
	want := PermEditDetails | PermUploadVersion
	if got != want {
		t.Fatalf("got %#x, want %#x", int64(got), int64(want))
	}
}

func TestEffectivePermissionsFallsBackToOrgWhenDirectNotAccepted(t *testing.T) {
	direct := &storage.TeamMember{Accepted: false, Permissions: int64(Owner)}
	org := &storage.TeamMember{Accepted: true, Permissions: int64(PermEditBody)}
	got := EffectivePermissions(direct, org, false)
	if got != PermEditBody {
		t.Fatalf("got %#x, want org's PermEditBody (pending direct invite doesn't count)", int64(got))
	}
}

func TestEffectivePermissionsNoneWhenNoMembershipAtAll(t *testing.T) {
	got := EffectivePermissions(nil, nil, false)
	if got != 0 {
		t.Fatalf("got %#x, want 0", int64(got))
	}
}

func TestEffectivePermissionsUnacceptedOrgMembershipDoesNotGrantAnything(t *testing.T) {
	org := &storage.TeamMember{Accepted: false, Permissions: int64(Owner)}
	got := EffectivePermissions(nil, org, false)
	if got != 0 {
		t.Fatalf("got %#x, want 0 (pending org invite grants nothing)", int64(got))
	}
}

func TestTeamPermissionHas(t *testing.T) {
	p := PermEditDetails | PermUploadVersion
	if !p.Has(PermEditDetails) {
		t.Fatal("expected PermEditDetails bit set")
	}
	if p.Has(PermDeleteProject) {
		t.Fatal("did not expect PermDeleteProject bit set")
	}
	if !p.Has(PermEditDetails | PermUploadVersion) {
		t.Fatal("expected both bits set together to be reported as held")
	}
}
