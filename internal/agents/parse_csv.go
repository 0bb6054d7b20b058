package agents

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/brokerage/commission/internal/domain"
)

var rosterColumns = []string{"id", "name", "email", "tier", "recruiter_id"}

// ParseRosterCSV parses a roster CSV. Columns are matched by header name
// and may appear in any order; recruiter_id and tier may be blank.
//
// Expected header:
//
//	id,name,email,tier,recruiter_id
func ParseRosterCSV(data []byte) ([]RosterRow, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, &domain.ValidationError{Field: "roster", Reason: fmt.Sprintf("read header: %v", err)}
	}
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range rosterColumns {
		if _, ok := index[col]; !ok {
			return nil, &domain.ValidationError{Field: "roster", Reason: "missing column " + col}
		}
	}

	var rows []RosterRow
	seen := make(map[string]bool)
	lineNum := 1
	for {
		lineNum++
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &domain.ValidationError{Field: "roster", Reason: fmt.Sprintf("line %d: %v", lineNum, err)}
		}
		if isBlank(rec) {
			continue
		}

		get := func(col string) string {
			if i := index[col]; i < len(rec) {
				return rec[i]
			}
			return ""
		}
		row, err := normalizeRow(RosterRow{
			ID:          get("id"),
			Name:        get("name"),
			Email:       get("email"),
			Tier:        get("tier"),
			RecruiterID: get("recruiter_id"),
		}, fmt.Sprintf("line %d", lineNum))
		if err != nil {
			return nil, err
		}
		if seen[row.ID] {
			return nil, &domain.ValidationError{Field: "id", Reason: fmt.Sprintf("line %d: duplicate id %s", lineNum, row.ID)}
		}
		seen[row.ID] = true
		rows = append(rows, row)
	}
	return rows, nil
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
