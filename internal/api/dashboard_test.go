package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brokerage/commission/internal/domain"
	"github.com/brokerage/commission/internal/testutil"
)

func TestDashboard_LateCacheFillDuringWriteIsNotServed(t *testing.T) {
	store := testutil.NewStore(t)
	h := &Handlers{store: store, log: testutil.NewLogger(), dashCache: cache.New(time.Hour, time.Hour)}
	testutil.AddAgent(t, store, "a", domain.TierAdvisor, "")

	// A read computes pre-write numbers and only stores them once the write
	// has finished.
	readerKey := h.dashboardKey()
	stale := dashboard{Agents: 1}

	write := h.invalidateDashboard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		testutil.AddAgent(t, store, "b", domain.TierAdvisor, "")
		w.WriteHeader(http.StatusCreated)
	}))
	write.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	h.dashCache.Set(readerKey, stale, cache.DefaultExpiration)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.GetDashboard(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Agents int `json:"agents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 2, got.Agents)
}
