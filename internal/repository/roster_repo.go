package repository

import (
	"context"
	"fmt"
	"time"
)

// RosterImport records one ingested roster file.
type RosterImport struct {
	ID          string
	Format      string
	FileHash    string
	RecordCount int
	ImportedAt  time.Time
}

type RosterRepo struct {
	db DBTX
}

func NewRosterRepo(db DBTX) *RosterRepo {
	return &RosterRepo{db: db}
}

// ExistsByHash checks whether a roster with the given file hash has
// already been imported.
func (r *RosterRepo) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM roster_imports WHERE file_hash = ?", hash,
	).Scan(&count)
	return count > 0, err
}

func (r *RosterRepo) Insert(ctx context.Context, imp *RosterImport) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO roster_imports (id, format, file_hash, record_count, imported_at)
		VALUES (?,?,?,?,?)`,
		imp.ID, imp.Format, imp.FileHash, imp.RecordCount, formatTime(imp.ImportedAt),
	)
	if err != nil {
		return fmt.Errorf("insert roster import: %w", err)
	}
	return nil
}
