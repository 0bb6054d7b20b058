// Command generate writes the agent roster used to seed a fresh database.
// The tree is fixed: two supreme leaders, and every leader below them
// recruits two agents of the next tier down, ending with advisors.
package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/brokerage/commission/internal/agents"
	"github.com/brokerage/commission/internal/domain"
)

var firstNames = []string{
	"Amara", "Bilal", "Chen", "Dalia", "Emeka", "Farah", "Goran", "Hana",
	"Ines", "Jonah", "Kemi", "Luis", "Mira", "Nikhil", "Olga", "Pablo",
}

var lastNames = []string{
	"Okafor", "Haddad", "Wei", "Novak", "Silva", "Tanaka", "Mensah",
	"Kowalski", "Rahman", "Dubois", "Ivanova", "Murphy", "Costa",
}

// tiers from the top of the tree down.
var tiers = []domain.AgentTier{
	domain.TierSupremeLeader,
	domain.TierGroupLeader,
	domain.TierTeamLeader,
	domain.TierSalesLeader,
	domain.TierAdvisor,
}

const (
	roots      = 2
	fanOut     = 2
	emailHost  = "brokerage.example"
	seedFile   = "seed.json"
	rosterFile = "roster.csv"
)

func main() {
	baseDir := findTestdataDir()
	rows := buildTree()

	writeJSONFile(filepath.Join(baseDir, seedFile), map[string]any{"agents": rows})
	fmt.Printf("Generated %d agents -> %s\n", len(rows), seedFile)

	writeCSVFile(filepath.Join(baseDir, rosterFile), rows)
	fmt.Printf("Generated %d agents -> %s\n", len(rows), rosterFile)
}

// buildTree lays the roster out breadth first, so recruiters always
// precede their recruits.
func buildTree() []agents.RosterRow {
	var rows []agents.RosterRow
	newRow := func(t domain.AgentTier, recruiterID string) agents.RosterRow {
		n := len(rows)
		first := firstNames[n%len(firstNames)]
		last := lastNames[(n*7)%len(lastNames)]
		id := fmt.Sprintf("AGT-%03d", n+1)
		row := agents.RosterRow{
			ID:          id,
			Name:        first + " " + last,
			Email:       fmt.Sprintf("%s.%s.%03d@%s", strings.ToLower(first), strings.ToLower(last), n+1, emailHost),
			Tier:        string(t),
			RecruiterID: recruiterID,
		}
		rows = append(rows, row)
		return row
	}

	level := make([]string, 0, roots)
	for range roots {
		level = append(level, newRow(tiers[0], "").ID)
	}
	for _, t := range tiers[1:] {
		var next []string
		for _, parent := range level {
			for range fanOut {
				next = append(next, newRow(t, parent).ID)
			}
		}
		level = next
	}
	return rows
}

func writeJSONFile(path string, v any) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		panic(err)
	}
}

func writeCSVFile(path string, rows []agents.RosterRow) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	w.Write([]string{"id", "name", "email", "tier", "recruiter_id"})
	for _, r := range rows {
		w.Write([]string{r.ID, r.Name, r.Email, r.Tier, r.RecruiterID})
	}
}

func findTestdataDir() string {
	for _, c := range []string{"testdata", "../testdata", "../../testdata"} {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c
		}
	}
	return "testdata"
}
