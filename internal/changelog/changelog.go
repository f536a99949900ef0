// Package changelog defines the append-only audit records attached to every
// shared-list mutation.
package changelog

import (
	"encoding/json"
	"fmt"
	"time"

	"sharelist/api/internal/rbac"
)

type ChangeType string

const (
	TaskCreated         ChangeType = "taskCreated"
	TaskUpdated         ChangeType = "taskUpdated"
	TaskCompleted       ChangeType = "taskCompleted"
	TaskDeleted         ChangeType = "taskDeleted"
	CollaboratorAdded   ChangeType = "collaboratorAdded"
	CollaboratorRemoved ChangeType = "collaboratorRemoved"
	PermissionChanged   ChangeType = "permissionChanged"
)

// Payload is the typed data carried by a record. Each ChangeType has exactly
// one payload variant.
type Payload interface {
	ChangeType() ChangeType
}

type TaskCreatedPayload struct {
	TaskID string `json:"taskId"`
}

type TaskUpdatedPayload struct {
	TaskID string `json:"taskId"`
}

type TaskCompletedPayload struct {
	TaskID string `json:"taskId"`
}

type TaskDeletedPayload struct {
	TaskID string `json:"taskId"`
}

type CollaboratorAddedPayload struct {
	UserID     string          `json:"userId"`
	UserName   string          `json:"userName"`
	Permission rbac.Permission `json:"permission"`
}

type CollaboratorRemovedPayload struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type PermissionChangedPayload struct {
	UserID        string          `json:"userId"`
	OldPermission rbac.Permission `json:"oldPermission"`
	NewPermission rbac.Permission `json:"newPermission"`
}

func (TaskCreatedPayload) ChangeType() ChangeType         { return TaskCreated }
func (TaskUpdatedPayload) ChangeType() ChangeType         { return TaskUpdated }
func (TaskCompletedPayload) ChangeType() ChangeType       { return TaskCompleted }
func (TaskDeletedPayload) ChangeType() ChangeType         { return TaskDeleted }
func (CollaboratorAddedPayload) ChangeType() ChangeType   { return CollaboratorAdded }
func (CollaboratorRemovedPayload) ChangeType() ChangeType { return CollaboratorRemoved }
func (PermissionChangedPayload) ChangeType() ChangeType   { return PermissionChanged }

// Record is one immutable audit entry. Seq is assigned by the store and
// defines the total order; Timestamp ties are broken by Seq.
type Record struct {
	ID        string
	ListID    string
	UserID    string
	UserName  string
	Type      ChangeType
	Payload   Payload
	Seq       int64
	Timestamp time.Time
}

// EncodePayload serializes a payload for storage.
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", p.ChangeType(), err)
	}
	return data, nil
}

// DecodePayload deserializes a stored payload into its typed variant.
func DecodePayload(changeType ChangeType, raw []byte) (Payload, error) {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	var (
		payload Payload
		err     error
	)
	switch changeType {
	case TaskCreated:
		var p TaskCreatedPayload
		err = json.Unmarshal(raw, &p)
		payload = p
	case TaskUpdated:
		var p TaskUpdatedPayload
		err = json.Unmarshal(raw, &p)
		payload = p
	case TaskCompleted:
		var p TaskCompletedPayload
		err = json.Unmarshal(raw, &p)
		payload = p
	case TaskDeleted:
		var p TaskDeletedPayload
		err = json.Unmarshal(raw, &p)
		payload = p
	case CollaboratorAdded:
		var p CollaboratorAddedPayload
		err = json.Unmarshal(raw, &p)
		payload = p
	case CollaboratorRemoved:
		var p CollaboratorRemovedPayload
		err = json.Unmarshal(raw, &p)
		payload = p
	case PermissionChanged:
		var p PermissionChangedPayload
		err = json.Unmarshal(raw, &p)
		payload = p
	default:
		return nil, fmt.Errorf("unknown change type %q", changeType)
	}
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", changeType, err)
	}
	return payload, nil
}
