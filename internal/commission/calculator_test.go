package commission

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brokerage/commission/internal/domain"
	"github.com/brokerage/commission/internal/tier"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestComputeSplit_SalesLeaderExample(t *testing.T) {
	t.Parallel()

	split, err := ComputeSplit(dec(t, "12500.00"), domain.TierSalesLeader)
	require.NoError(t, err)
	assert.True(t, split.AgentShare.Equal(dec(t, "10000.00")), split.AgentShare.String())
	assert.True(t, split.CompanyShare.Equal(dec(t, "2500.00")), split.CompanyShare.String())
}

func TestComputeSplit_AdvisorExample(t *testing.T) {
	t.Parallel()

	split, err := ComputeSplit(dec(t, "5000.00"), domain.TierAdvisor)
	require.NoError(t, err)
	assert.True(t, split.AgentShare.Equal(dec(t, "3500.00")))
	assert.True(t, split.CompanyShare.Equal(dec(t, "1500.00")))
}

func TestComputeSplit_RoundsHalfEven(t *testing.T) {
	t.Parallel()

	// 0.25 * 70% = 0.175 -> 0.18 (8 is even); 0.35 * 70% = 0.245 -> 0.24.
	split, err := ComputeSplit(dec(t, "0.25"), domain.TierAdvisor)
	require.NoError(t, err)
	assert.Equal(t, "0.18", split.AgentShare.StringFixed(2))
	assert.Equal(t, "0.07", split.CompanyShare.StringFixed(2))

	split, err = ComputeSplit(dec(t, "0.35"), domain.TierAdvisor)
	require.NoError(t, err)
	assert.Equal(t, "0.24", split.AgentShare.StringFixed(2))
	assert.Equal(t, "0.11", split.CompanyShare.StringFixed(2))
}

func TestComputeSplit_RejectsNonPositive(t *testing.T) {
	t.Parallel()

	for _, amt := range []string{"0", "-1", "-0.01"} {
		_, err := ComputeSplit(dec(t, amt), domain.TierAdvisor)
		assert.True(t, errors.Is(err, domain.ErrValidation), amt)
	}
}

func TestComputeSplit_UnknownTier(t *testing.T) {
	t.Parallel()

	_, err := ComputeSplit(dec(t, "100"), "bogus")
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestComputeSplit_SharesSumToAmount(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(7, 11))

	for i := 0; i < 2000; i++ {
		cents := rng.Int64N(100_000_000) + 1
		amount := decimal.New(cents, -2)
		for _, cfg := range tier.All() {
			split, err := ComputeSplit(amount, cfg.Tier)
			require.NoError(t, err)
			require.True(t, split.AgentShare.Add(split.CompanyShare).Equal(amount),
				"amount=%s tier=%s", amount, cfg.Tier)
			require.True(t, split.AgentShare.Equal(split.AgentShare.Round(2)))
		}
	}
}
