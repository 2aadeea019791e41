package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"chocolata/internal/domain"

	"github.com/google/uuid"
)

const (
	DefaultActivityLimit = 100
	MaxActivityLimit     = 500
)

// ActivityLogRepository is the append-only audit trail shown to admins
type ActivityLogRepository interface {
	Record(ctx context.Context, entry *domain.ActivityEntry) error
	List(ctx context.Context, filter domain.ActivityFilter) ([]*domain.ActivityEntry, error)
}

type activityLogRepository struct {
	db *sql.DB
}

// NewActivityLogRepository creates a new instance of ActivityLogRepository
func NewActivityLogRepository(db *sql.DB) ActivityLogRepository {
	return &activityLogRepository{db: db}
}

func (r *activityLogRepository) Record(ctx context.Context, entry *domain.ActivityEntry) error {
	changes, err := json.Marshal(entry.Changes)
	if err != nil {
		return fmt.Errorf("failed to encode activity changes: %w", err)
	}
	if entry.Changes == nil {
		changes = []byte("{}")
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO activity_log (id, user_id, action_type, table_name, record_id, changes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		entry.ID,
		entry.UserID,
		entry.Action,
		entry.TableName,
		entry.RecordID,
		string(changes),
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

// List returns the newest entries first, joined with the acting user's name
func (r *activityLogRepository) List(ctx context.Context, filter domain.ActivityFilter) ([]*domain.ActivityEntry, error) {
	var (
		where []string
		args  []any
	)
	if filter.Action != "" {
		args = append(args, filter.Action)
		where = append(where, fmt.Sprintf("a.action_type = $%d", len(args)))
	}
	if filter.Table != "" {
		args = append(args, filter.Table)
		where = append(where, fmt.Sprintf("a.table_name = $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	args = append(args, min(limit, MaxActivityLimit))

	query := `
		SELECT a.id, a.user_id, COALESCE(u.email, ''), COALESCE(u.full_name, ''),
		       a.action_type, a.table_name, a.record_id, a.changes, a.created_at
		FROM activity_log a
		LEFT JOIN users u ON u.id = a.user_id`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf("\n\t\tORDER BY a.created_at DESC, a.id\n\t\tLIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	entries := []*domain.ActivityEntry{}
	for rows.Next() {
		entry := &domain.ActivityEntry{}
		var (
			userID  uuid.NullUUID
			action  string
			changes []byte
		)
		if err := rows.Scan(
			&entry.ID,
			&userID,
			&entry.UserEmail,
			&entry.UserName,
			&action,
			&entry.TableName,
			&entry.RecordID,
			&changes,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		if userID.Valid {
			entry.UserID = &userID.UUID
		}
		entry.Action = domain.ActivityAction(action)
		if err := json.Unmarshal(changes, &entry.Changes); err != nil {
			return nil, fmt.Errorf("failed to decode activity changes: %w", err)
		}
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity: %w", err)
	}

	return entries, nil
}
