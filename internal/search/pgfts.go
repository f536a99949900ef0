package search

import (
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true - if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search runs plainto_tsquery over the shared_lists fts column with
// ts_headline snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	where := `l.fts @@ plainto_tsquery('english', $1)`
	args := []any{q.Text}
	if q.UserID != "" {
		where += ` AND l.collaborators ? $2`
		args = append(args, q.UserID)
	}

	countQuery := `SELECT COUNT(*) FROM shared_lists l WHERE ` + where
	var total int
	if err := p.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count list search: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT l.id, l.name,
			ts_headline('english', coalesce(l.description, ''), plainto_tsquery('english', $1), 'MaxFragments=1,MaxWords=30') AS snippet,
			l.owner_id
		FROM shared_lists l
		WHERE %s
		ORDER BY ts_rank(l.fts, plainto_tsquery('english', $1)) DESC, l.created_at ASC
		LIMIT %d OFFSET %d
	`, where, limit, offset)

	rows, err := p.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list search: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0)
	for rows.Next() {
		var item Result
		if err := rows.Scan(&item.ID, &item.Name, &item.Snippet, &item.OwnerID); err != nil {
			return nil, 0, fmt.Errorf("scan list search result: %w", err)
		}
		results = append(results, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate list search results: %w", err)
	}
	return results, total, nil
}
