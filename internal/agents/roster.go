package agents

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/brokerage/commission/internal/domain"
	"github.com/brokerage/commission/internal/repository"
)

const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// RosterRow is one agent in an imported roster file.
type RosterRow struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Tier        string `json:"tier"`
	RecruiterID string `json:"recruiter_id"`
}

type ImportResult struct {
	ImportID          string `json:"import_id"`
	RecordsImported   int    `json:"records_imported"`
	DuplicatesSkipped int    `json:"duplicates_skipped"`
	AlreadyImported   bool   `json:"already_imported"`
}

// ImportRoster parses a roster file and inserts its agents in a single
// database transaction. A file whose hash was imported before is a no-op.
// Rows whose id already exists are skipped. Recruiters are inserted before
// their recruits regardless of row order; a recruiter must be either in the
// file or already stored.
func (s *Service) ImportRoster(ctx context.Context, data []byte, format string) (*ImportResult, error) {
	hash := fmt.Sprintf("%x", sha256.Sum256(data))
	exists, err := s.store.Rosters.ExistsByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("check hash: %w", err)
	}
	if exists {
		return &ImportResult{AlreadyImported: true}, nil
	}

	var rows []RosterRow
	switch format {
	case FormatCSV:
		rows, err = ParseRosterCSV(data)
	case FormatJSON:
		rows, err = ParseRosterJSON(data)
	default:
		return nil, &domain.ValidationError{Field: "format", Reason: "unsupported format " + format}
	}
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	result := &ImportResult{ImportID: uuid.NewString()}

	err = s.store.WithTx(ctx, func(r *repository.Repos) error {
		// A concurrent import of the same file may have committed since the
		// check above.
		dup, err := r.Rosters.ExistsByHash(ctx, hash)
		if err != nil {
			return err
		}
		if dup {
			result = &ImportResult{AlreadyImported: true}
			return nil
		}

		var fresh []RosterRow
		for _, row := range rows {
			exists, err := r.Agents.Exists(ctx, row.ID)
			if err != nil {
				return err
			}
			if exists {
				result.DuplicatesSkipped++
				continue
			}
			fresh = append(fresh, row)
		}

		ordered, err := parentsFirst(fresh)
		if err != nil {
			return err
		}
		for _, row := range ordered {
			a := &domain.Agent{
				ID:          row.ID,
				Name:        row.Name,
				Email:       row.Email,
				Tier:        domain.AgentTier(row.Tier),
				RecruiterID: row.RecruiterID,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := insertAgent(ctx, r, a); err != nil {
				return fmt.Errorf("roster row %s: %w", row.ID, err)
			}
			result.RecordsImported++
		}

		return r.Rosters.Insert(ctx, &repository.RosterImport{
			ID:          result.ImportID,
			Format:      format,
			FileHash:    hash,
			RecordCount: len(rows),
			ImportedAt:  now,
		})
	})
	if err != nil {
		return nil, err
	}

	if !result.AlreadyImported {
		s.log.Info("roster imported",
			"import_id", result.ImportID,
			"format", format,
			"records", result.RecordsImported,
			"duplicates", result.DuplicatesSkipped,
		)
	}
	return result, nil
}

// parentsFirst orders rows so every recruiter present in the batch comes
// before its recruits. Recruiters outside the batch are left to the
// insert-time check. Rows that can never be placed form a cycle.
func parentsFirst(rows []RosterRow) ([]RosterRow, error) {
	inBatch := make(map[string]bool, len(rows))
	for _, row := range rows {
		inBatch[row.ID] = true
	}

	placed := make(map[string]bool, len(rows))
	out := make([]RosterRow, 0, len(rows))
	pending := rows
	for len(pending) > 0 {
		var next []RosterRow
		for _, row := range pending {
			if row.RecruiterID == "" || !inBatch[row.RecruiterID] || placed[row.RecruiterID] {
				placed[row.ID] = true
				out = append(out, row)
				continue
			}
			next = append(next, row)
		}
		if len(next) == len(pending) {
			ids := make([]string, len(next))
			for i, row := range next {
				ids[i] = row.ID
			}
			return nil, &domain.CycleDetectedError{AgentID: next[0].ID, Path: ids}
		}
		pending = next
	}
	return out, nil
}

// normalizeRow trims fields and applies defaults. line is used in errors.
func normalizeRow(row RosterRow, line string) (RosterRow, error) {
	row.ID = strings.TrimSpace(row.ID)
	row.Name = strings.TrimSpace(row.Name)
	row.Email = strings.TrimSpace(row.Email)
	row.Tier = strings.TrimSpace(row.Tier)
	row.RecruiterID = strings.TrimSpace(row.RecruiterID)
	if row.Tier == "" {
		row.Tier = string(domain.TierAdvisor)
	}
	if row.ID == "" {
		return row, &domain.ValidationError{Field: "id", Reason: line + ": is required"}
	}

	err := validateAgent(NewAgent{
		ID:          row.ID,
		Name:        row.Name,
		Email:       row.Email,
		Tier:        domain.AgentTier(row.Tier),
		RecruiterID: row.RecruiterID,
	})
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		ve.Reason = line + ": " + ve.Reason
		return row, ve
	}
	return row, err
}
