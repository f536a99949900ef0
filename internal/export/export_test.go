package export

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"sharelist/api/internal/changelog"
	"sharelist/api/internal/rbac"
	"sharelist/api/internal/store"
)

func fixtureList() (store.SharedList, []changelog.Record) {
	createdAt := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	updatedAt := createdAt.Add(2 * time.Hour)
	list := store.SharedList{
		ID:          "lst_1",
		Name:        "Groceries",
		Description: "weekly run",
		OwnerID:     "u1",
		Collaborators: map[string]store.Collaborator{
			"u1": {UserID: "u1", UserName: "Ana", Permission: rbac.PermissionAdmin},
			"u2": {UserID: "u2", UserName: "Bob", Permission: rbac.PermissionView},
		},
		TaskIDs:   []string{"t1", "t2"},
		IsPublic:  true,
		ShareCode: "ABCDEF23",
		CreatedAt: createdAt,
		UpdatedAt: &updatedAt,
	}
	history := []changelog.Record{
		{
			ID:        "chg_1",
			ListID:    "lst_1",
			UserID:    "u1",
			UserName:  "Ana",
			Type:      changelog.CollaboratorAdded,
			Payload:   changelog.CollaboratorAddedPayload{UserID: "u2", UserName: "Bob", Permission: rbac.PermissionView},
			Seq:       1,
			Timestamp: updatedAt,
		},
	}
	return list, history
}

func TestSnapshotContract(t *testing.T) {
	list, history := fixtureList()
	snapshot := BuildSnapshot(list, history)

	data, err := json.Marshal(snapshot)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}

	for _, key := range []string{"id", "name", "description", "ownerId", "collaborators", "taskIds", "isPublic", "shareCode", "createdAt", "updatedAt", "changeHistory"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("snapshot missing key %q", key)
		}
	}

	collaborators, _ := decoded["collaborators"].(map[string]any)
	if collaborators["u2"] != "view" {
		t.Fatalf("expected collaborators to map userId to permission name, got %v", decoded["collaborators"])
	}
	if decoded["createdAt"] != "2026-03-14T09:30:00Z" {
		t.Fatalf("expected RFC3339 createdAt, got %v", decoded["createdAt"])
	}

	entries, _ := decoded["changeHistory"].([]any)
	if len(entries) != 1 {
		t.Fatalf("expected 1 change entry, got %d", len(entries))
	}
	entry, _ := entries[0].(map[string]any)
	if entry["changeType"] != "collaboratorAdded" {
		t.Fatalf("unexpected changeType %v", entry["changeType"])
	}
	changeData, _ := entry["changeData"].(map[string]any)
	if changeData["permission"] != "view" {
		t.Fatalf("expected typed changeData, got %v", entry["changeData"])
	}
}

func TestSnapshotNullableFields(t *testing.T) {
	list, _ := fixtureList()
	list.IsPublic = false
	list.ShareCode = ""
	list.UpdatedAt = nil

	data, err := json.Marshal(BuildSnapshot(list, nil))
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if decoded["shareCode"] != nil {
		t.Fatalf("expected null shareCode, got %v", decoded["shareCode"])
	}
	if decoded["updatedAt"] != nil {
		t.Fatalf("expected null updatedAt, got %v", decoded["updatedAt"])
	}
	if history, ok := decoded["changeHistory"].([]any); !ok || len(history) != 0 {
		t.Fatalf("expected empty changeHistory array, got %v", decoded["changeHistory"])
	}
}

func TestRenderJSON(t *testing.T) {
	list, history := fixtureList()
	result, err := Render(BuildSnapshot(list, history), FormatJSON)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if result.ContentType != "application/json" {
		t.Fatalf("unexpected content type %q", result.ContentType)
	}
	if result.Filename != "lst_1.json" {
		t.Fatalf("unexpected filename %q", result.Filename)
	}
	if !json.Valid(result.Data) {
		t.Fatal("expected valid JSON output")
	}
}

func TestRenderPDF(t *testing.T) {
	list, history := fixtureList()
	result, err := Render(BuildSnapshot(list, history), FormatPDF)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if result.ContentType != "application/pdf" {
		t.Fatalf("unexpected content type %q", result.ContentType)
	}
	if !bytes.HasPrefix(result.Data, []byte("%PDF")) {
		t.Fatal("expected PDF magic header")
	}
}

func TestRenderUnknownFormat(t *testing.T) {
	list, _ := fixtureList()
	if _, err := Render(BuildSnapshot(list, nil), Format("docx")); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
