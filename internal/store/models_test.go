package store

import (
	"testing"

	"sharelist/api/internal/rbac"
)

func TestCloneIsDeep(t *testing.T) {
	original := SharedList{
		ID:      "list-1",
		OwnerID: "u1",
		Collaborators: map[string]Collaborator{
			"u1": {UserID: "u1", UserName: "Ana", Permission: rbac.PermissionAdmin},
		},
		TaskIDs: []string{"t1", "t2"},
	}

	clone := original.Clone()
	clone.Collaborators["u2"] = Collaborator{UserID: "u2", Permission: rbac.PermissionView}
	clone.TaskIDs[0] = "changed"

	if _, leaked := original.Collaborators["u2"]; leaked {
		t.Fatal("clone shares collaborators map with original")
	}
	if original.TaskIDs[0] != "t1" {
		t.Fatal("clone shares task slice with original")
	}
}

func TestCollaboratorCodecRoundTrip(t *testing.T) {
	in := map[string]Collaborator{
		"u1": {UserID: "u1", UserName: "Ana", Permission: rbac.PermissionAdmin},
		"u2": {UserID: "u2", UserName: "Bob", Permission: rbac.PermissionView},
	}

	raw, err := encodeCollaborators(in)
	if err != nil {
		t.Fatalf("encodeCollaborators failed: %v", err)
	}
	out, err := decodeCollaborators(raw)
	if err != nil {
		t.Fatalf("decodeCollaborators failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 collaborators, got %d", len(out))
	}
	if out["u2"].UserName != "Bob" || out["u2"].Permission != rbac.PermissionView {
		t.Fatalf("unexpected collaborator %+v", out["u2"])
	}
}

func TestDecodeCollaboratorsNormalizesUnknownPermission(t *testing.T) {
	out, err := decodeCollaborators([]byte(`{"u9":{"userName":"X","permission":"owner"}}`))
	if err != nil {
		t.Fatalf("decodeCollaborators failed: %v", err)
	}
	if out["u9"].Permission != rbac.PermissionView {
		t.Fatalf("expected unknown permission to normalize to view, got %q", out["u9"].Permission)
	}
}
