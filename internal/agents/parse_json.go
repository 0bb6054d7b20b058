package agents

import (
	"encoding/json"
	"fmt"

	"github.com/brokerage/commission/internal/domain"
)

type rosterFile struct {
	Agents []RosterRow `json:"agents"`
}

// ParseRosterJSON parses either {"agents": [...]} or a bare array of
// agents.
func ParseRosterJSON(data []byte) ([]RosterRow, error) {
	var raw []RosterRow
	var file rosterFile
	if err := json.Unmarshal(data, &file); err == nil {
		raw = file.Agents
	} else if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &domain.ValidationError{Field: "roster", Reason: fmt.Sprintf("unmarshal: %v", err)}
	}

	rows := make([]RosterRow, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, r := range raw {
		row, err := normalizeRow(r, fmt.Sprintf("record %d", i))
		if err != nil {
			return nil, err
		}
		if seen[row.ID] {
			return nil, &domain.ValidationError{Field: "id", Reason: fmt.Sprintf("record %d: duplicate id %s", i, row.ID)}
		}
		seen[row.ID] = true
		rows = append(rows, row)
	}
	return rows, nil
}
