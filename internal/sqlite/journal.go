package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rpggio/phasefold/internal/domain/journal"
)

// JournalRepository implements journal.Repository for SQLite
type JournalRepository struct {
	db *DB
}

var _ journal.Repository = (*JournalRepository)(nil)

// NewJournalRepository creates a new JournalRepository
func NewJournalRepository(db *DB) *JournalRepository {
	return &JournalRepository{db: db}
}

// Append inserts a new journal entry
func (r *JournalRepository) Append(ctx context.Context, entry *journal.Entry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO journal (
			entry_type, run_id, path, summary, details, created_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		entry.Type,
		entry.RunID,
		entry.Path,
		entry.Summary,
		entry.Details,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append journal entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err == nil {
		entry.ID = id
	}
	entry.CreatedAt = createdAt

	return nil
}

// List returns journal entries matching the given filters, newest first
func (r *JournalRepository) List(ctx context.Context, opts journal.ListOptions) ([]journal.Entry, error) {
	query := `
		SELECT id, entry_type, run_id, path, summary, details, created_at
		FROM journal
	`

	args := []any{}
	conditions := []string{}

	if opts.Type != nil {
		conditions = append(conditions, "entry_type = ?")
		args = append(args, *opts.Type)
	}
	if opts.RunID != nil {
		conditions = append(conditions, "run_id = ?")
		args = append(args, *opts.RunID)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY created_at DESC, id DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal: %w", err)
	}
	defer rows.Close()

	var entries []journal.Entry
	for rows.Next() {
		var entry journal.Entry
		var runID sql.NullString
		if err := rows.Scan(
			&entry.ID,
			&entry.Type,
			&runID,
			&entry.Path,
			&entry.Summary,
			&entry.Details,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		if runID.Valid {
			entry.RunID = &runID.String
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journal rows: %w", err)
	}

	return entries, nil
}
