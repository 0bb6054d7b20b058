// Package testutil holds shared fixtures for package tests.
package testutil

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/brokerage/commission/internal/domain"
	"github.com/brokerage/commission/internal/repository"
)

// Epoch is the fixed start time of fake clocks.
var Epoch = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

func NewLogger() *slog.Logger {
	var level slog.Level
	switch os.Getenv("DEBUG") {
	case "2":
		level = slog.LevelDebug
	case "1":
		level = slog.LevelInfo
	default:
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func NewClock() *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(Epoch)
}

// NewStore opens a migrated SQLite database in a temp dir.
func NewStore(t *testing.T) *repository.Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db")
	db, err := repository.InitDB(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return repository.NewStore(db)
}

// AddAgent inserts an agent directly, bypassing recruiter validation.
func AddAgent(t *testing.T, store *repository.Store, id string, tier domain.AgentTier, recruiterID string) domain.Agent {
	t.Helper()
	a := domain.Agent{
		ID:          id,
		Name:        "Agent " + id,
		Email:       id + "@example.com",
		Tier:        tier,
		RecruiterID: recruiterID,
		CreatedAt:   Epoch,
		UpdatedAt:   Epoch,
	}
	require.NoError(t, store.Agents.Insert(context.Background(), &a))
	return a
}

// AddTransaction inserts a transaction in the given status.
func AddTransaction(t *testing.T, store *repository.Store, id, agentID, amount string, status domain.TransactionStatus) domain.Transaction {
	t.Helper()
	tx := domain.Transaction{
		ID:               id,
		AgentID:          agentID,
		PropertyAddress:  "1 Main St",
		ClientName:       "Client " + id,
		MarketType:       domain.MarketSecondary,
		TransactionType:  domain.TransactionSale,
		CommissionAmount: decimal.RequireFromString(amount),
		CommissionType:   domain.CommissionFixed,
		Status:           status,
		CreatedAt:        Epoch,
		UpdatedAt:        Epoch,
	}
	require.NoError(t, store.Transactions.Insert(context.Background(), &tx))
	return tx
}

// SetRecruiter rewires a recruiter link with raw SQL so tests can build
// graphs the services refuse to create, such as cycles.
func SetRecruiter(t *testing.T, store *repository.Store, agentID, recruiterID string) {
	t.Helper()
	_, err := store.DB().ExecContext(context.Background(),
		"UPDATE agents SET recruiter_id = ? WHERE id = ?", recruiterID, agentID)
	require.NoError(t, err)
}
