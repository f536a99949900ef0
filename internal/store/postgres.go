package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"sharelist/api/internal/changelog"
	"sharelist/api/internal/rbac"
)

var (
	// ErrNotFound marks an unknown list ID or share code.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a version mismatch on an optimistic update.
	ErrConflict = errors.New("version conflict")
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

type collaboratorRow struct {
	UserName   string `json:"userName"`
	Permission string `json:"permission"`
}

func encodeCollaborators(collaborators map[string]Collaborator) ([]byte, error) {
	rows := make(map[string]collaboratorRow, len(collaborators))
	for id, collab := range collaborators {
		rows[id] = collaboratorRow{UserName: collab.UserName, Permission: string(collab.Permission)}
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("marshal collaborators: %w", err)
	}
	return data, nil
}

func decodeCollaborators(raw []byte) (map[string]Collaborator, error) {
	rows := make(map[string]collaboratorRow)
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("unmarshal collaborators: %w", err)
	}
	out := make(map[string]Collaborator, len(rows))
	for id, row := range rows {
		out[id] = Collaborator{
			UserID:     id,
			UserName:   row.UserName,
			Permission: rbac.Normalize(row.Permission),
		}
	}
	return out, nil
}

func encodeTaskIDs(taskIDs []string) ([]byte, error) {
	if taskIDs == nil {
		taskIDs = []string{}
	}
	data, err := json.Marshal(taskIDs)
	if err != nil {
		return nil, fmt.Errorf("marshal task ids: %w", err)
	}
	return data, nil
}

const listColumns = `id, name, description, owner_id, collaborators, task_ids, is_public, COALESCE(share_code, ''), version, created_at, updated_at`

func scanList(scan func(dest ...any) error) (SharedList, error) {
	var (
		item             SharedList
		collaboratorsRaw []byte
		taskIDsRaw       []byte
	)
	if err := scan(
		&item.ID,
		&item.Name,
		&item.Description,
		&item.OwnerID,
		&collaboratorsRaw,
		&taskIDsRaw,
		&item.IsPublic,
		&item.ShareCode,
		&item.Version,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		return SharedList{}, err
	}
	collaborators, err := decodeCollaborators(collaboratorsRaw)
	if err != nil {
		return SharedList{}, err
	}
	item.Collaborators = collaborators
	if err := json.Unmarshal(taskIDsRaw, &item.TaskIDs); err != nil {
		return SharedList{}, fmt.Errorf("unmarshal task ids: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) CreateList(ctx context.Context, list SharedList) (SharedList, error) {
	collaboratorsRaw, err := encodeCollaborators(list.Collaborators)
	if err != nil {
		return SharedList{}, err
	}
	taskIDsRaw, err := encodeTaskIDs(list.TaskIDs)
	if err != nil {
		return SharedList{}, err
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO shared_lists (id, name, description, owner_id, collaborators, task_ids, is_public, share_code, version)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb, $7, NULLIF($8, ''), 1)
		RETURNING version, created_at
	`, list.ID, list.Name, list.Description, list.OwnerID, collaboratorsRaw, taskIDsRaw, list.IsPublic, list.ShareCode).
		Scan(&list.Version, &list.CreatedAt)
	if err != nil {
		return SharedList{}, fmt.Errorf("insert shared list: %w", err)
	}
	list.UpdatedAt = nil
	return list, nil
}

func (s *PostgresStore) GetList(ctx context.Context, listID string) (SharedList, error) {
	item, err := scanList(s.db.QueryRowContext(ctx, `
		SELECT `+listColumns+`
		FROM shared_lists
		WHERE id=$1
	`, listID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return SharedList{}, ErrNotFound
	}
	if err != nil {
		return SharedList{}, fmt.Errorf("get shared list: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) GetListByShareCode(ctx context.Context, code string) (SharedList, error) {
	item, err := scanList(s.db.QueryRowContext(ctx, `
		SELECT `+listColumns+`
		FROM shared_lists
		WHERE share_code=$1 AND is_public
	`, code).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return SharedList{}, ErrNotFound
	}
	if err != nil {
		return SharedList{}, fmt.Errorf("get list by share code: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) ListsForUser(ctx context.Context, userID string) ([]SharedList, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+listColumns+`
		FROM shared_lists
		WHERE collaborators ? $1
		ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list shared lists: %w", err)
	}
	defer rows.Close()

	items := make([]SharedList, 0)
	for rows.Next() {
		item, err := scanList(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan shared list: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shared lists: %w", err)
	}
	return items, nil
}

// UpdateList writes the mutated snapshot and, when record is non-nil, appends
// the audit record in the same transaction. The stored version must still
// equal list.Version or the whole update fails with ErrConflict.
func (s *PostgresStore) UpdateList(ctx context.Context, list SharedList, record *changelog.Record) (SharedList, error) {
	collaboratorsRaw, err := encodeCollaborators(list.Collaborators)
	if err != nil {
		return SharedList{}, err
	}
	taskIDsRaw, err := encodeTaskIDs(list.TaskIDs)
	if err != nil {
		return SharedList{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SharedList{}, fmt.Errorf("begin update tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	updated := list
	err = tx.QueryRowContext(ctx, `
		UPDATE shared_lists
		SET name=$3, description=$4, owner_id=$5, collaborators=$6::jsonb, task_ids=$7::jsonb,
			is_public=$8, share_code=NULLIF($9, ''), version=version+1, updated_at=NOW()
		WHERE id=$1 AND version=$2
		RETURNING version, created_at, updated_at
	`, list.ID, list.Version, list.Name, list.Description, list.OwnerID,
		collaboratorsRaw, taskIDsRaw, list.IsPublic, list.ShareCode).
		Scan(&updated.Version, &updated.CreatedAt, &updated.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if checkErr := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM shared_lists WHERE id=$1)`, list.ID).Scan(&exists); checkErr != nil {
			return SharedList{}, fmt.Errorf("check shared list: %w", checkErr)
		}
		if !exists {
			return SharedList{}, ErrNotFound
		}
		return SharedList{}, ErrConflict
	}
	if err != nil {
		return SharedList{}, fmt.Errorf("update shared list: %w", err)
	}

	if record != nil {
		payload, err := changelog.EncodePayload(record.Payload)
		if err != nil {
			return SharedList{}, err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO change_log (id, list_id, user_id, user_name, change_type, payload)
			VALUES ($1, $2, $3, $4, $5, $6::jsonb)
		`, record.ID, record.ListID, record.UserID, record.UserName, string(record.Type), payload); err != nil {
			return SharedList{}, fmt.Errorf("append change record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return SharedList{}, fmt.Errorf("commit update tx: %w", err)
	}
	return updated, nil
}

func (s *PostgresStore) ListChanges(ctx context.Context, listID string) ([]changelog.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, list_id, user_id, user_name, change_type, payload, created_at
		FROM change_log
		WHERE list_id=$1
		ORDER BY seq ASC
	`, listID)
	if err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}
	defer rows.Close()

	items := make([]changelog.Record, 0)
	for rows.Next() {
		var (
			item       changelog.Record
			changeType string
			payloadRaw []byte
		)
		if err := rows.Scan(
			&item.Seq,
			&item.ID,
			&item.ListID,
			&item.UserID,
			&item.UserName,
			&changeType,
			&payloadRaw,
			&item.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan change record: %w", err)
		}
		item.Type = changelog.ChangeType(changeType)
		payload, err := changelog.DecodePayload(item.Type, payloadRaw)
		if err != nil {
			return nil, err
		}
		item.Payload = payload
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate change records: %w", err)
	}
	return items, nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
