package store

import (
	"time"

	"sharelist/api/internal/rbac"
)

// Collaborator is one membership entry of a shared list.
type Collaborator struct {
	UserID     string
	UserName   string
	Permission rbac.Permission
}

// SharedList is the stored state of one shared task list. Version is the
// optimistic-concurrency token compared on every mutation.
type SharedList struct {
	ID            string
	Name          string
	Description   string
	OwnerID       string
	Collaborators map[string]Collaborator
	TaskIDs       []string
	IsPublic      bool
	// ShareCode is set iff IsPublic. A revoked code is cleared, never reused.
	ShareCode string
	Version   int64
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// Clone returns a deep copy, so callers can mutate a snapshot without
// touching shared state.
func (l SharedList) Clone() SharedList {
	out := l
	out.Collaborators = make(map[string]Collaborator, len(l.Collaborators))
	for id, collab := range l.Collaborators {
		out.Collaborators[id] = collab
	}
	out.TaskIDs = append([]string(nil), l.TaskIDs...)
	if l.UpdatedAt != nil {
		updatedAt := *l.UpdatedAt
		out.UpdatedAt = &updatedAt
	}
	return out
}

// HasTask reports whether taskID is already referenced by the list.
func (l SharedList) HasTask(taskID string) bool {
	for _, id := range l.TaskIDs {
		if id == taskID {
			return true
		}
	}
	return false
}
