// Package export renders shared-list snapshots for download and archiving.
package export

import (
	"time"

	"sharelist/api/internal/changelog"
	"sharelist/api/internal/store"
)

// Format represents the export output format
type Format string

const (
	FormatJSON Format = "json"
	FormatPDF  Format = "pdf"
)

// Snapshot is the structured export of a shared list. The key set and
// shapes are part of the external contract.
type Snapshot struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	OwnerID       string            `json:"ownerId"`
	Collaborators map[string]string `json:"collaborators"`
	TaskIDs       []string          `json:"taskIds"`
	IsPublic      bool              `json:"isPublic"`
	ShareCode     *string           `json:"shareCode"`
	CreatedAt     string            `json:"createdAt"`
	UpdatedAt     *string           `json:"updatedAt"`
	ChangeHistory []ChangeEntry     `json:"changeHistory"`
}

// ChangeEntry is one audit record inside a snapshot.
type ChangeEntry struct {
	UserID     string            `json:"userId"`
	UserName   string            `json:"userName"`
	ChangeType string            `json:"changeType"`
	ChangeData changelog.Payload `json:"changeData"`
	Timestamp  string            `json:"timestamp"`
}

// Result contains the export output.
type Result struct {
	Data        []byte
	ContentType string
	Filename    string
}

// BuildSnapshot flattens a stored list and its history into the export shape.
func BuildSnapshot(list store.SharedList, history []changelog.Record) Snapshot {
	collaborators := make(map[string]string, len(list.Collaborators))
	for userID, collab := range list.Collaborators {
		collaborators[userID] = string(collab.Permission)
	}

	var shareCode *string
	if list.ShareCode != "" {
		code := list.ShareCode
		shareCode = &code
	}

	var updatedAt *string
	if list.UpdatedAt != nil {
		formatted := list.UpdatedAt.UTC().Format(time.RFC3339)
		updatedAt = &formatted
	}

	entries := make([]ChangeEntry, 0, len(history))
	for _, record := range history {
		entries = append(entries, ChangeEntry{
			UserID:     record.UserID,
			UserName:   record.UserName,
			ChangeType: string(record.Type),
			ChangeData: record.Payload,
			Timestamp:  record.Timestamp.UTC().Format(time.RFC3339),
		})
	}

	taskIDs := list.TaskIDs
	if taskIDs == nil {
		taskIDs = []string{}
	}

	return Snapshot{
		ID:            list.ID,
		Name:          list.Name,
		Description:   list.Description,
		OwnerID:       list.OwnerID,
		Collaborators: collaborators,
		TaskIDs:       taskIDs,
		IsPublic:      list.IsPublic,
		ShareCode:     shareCode,
		CreatedAt:     list.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     updatedAt,
		ChangeHistory: entries,
	}
}
