package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/to-wer/media-renamer/internal/library"
)

type fakeStats struct {
	stats library.Stats
	err   error
}

func (f fakeStats) Stats(context.Context) (library.Stats, error) {
	return f.stats, f.err
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ProposalCreated("pending")
	m.Executed("processed", time.Second)
	m.CycleDone(time.Second, 1, 1)
	m.ResolverMiss()
}

func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ProposalCreated("pending")
	m.ProposalCreated("pending")
	m.ProposalCreated("error")
	m.Executed("processed", 10*time.Millisecond)
	m.CycleDone(time.Second, 2, 3)
	m.ResolverMiss()

	body := scrape(t, reg)
	assert.Contains(t, body, `mediarenamer_proposals_created_total{status="pending"} 2`)
	assert.Contains(t, body, `mediarenamer_proposals_created_total{status="error"} 1`)
	assert.Contains(t, body, `mediarenamer_executor_executions_total{status="processed"} 1`)
	assert.Contains(t, body, `mediarenamer_watcher_cycles_total 1`)
	assert.Contains(t, body, `mediarenamer_watcher_file_errors_total 2`)
	assert.Contains(t, body, `mediarenamer_watcher_stale_removed_total 3`)
	assert.Contains(t, body, `mediarenamer_resolver_misses_total 1`)
}

func TestProposalCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewProposalCollector(fakeStats{stats: library.Stats{
		Total:  3,
		Counts: map[library.Status]int{library.StatusPending: 2, library.StatusProcessed: 1},
	}}))

	body := scrape(t, reg)
	assert.Contains(t, body, `mediarenamer_proposals{status="pending"} 2`)
	assert.Contains(t, body, `mediarenamer_proposals{status="processed"} 1`)
	assert.Contains(t, body, `mediarenamer_proposals{status="rejected"} 0`)
	assert.Contains(t, body, `mediarenamer_proposals_total_stored 3`)
	assert.Contains(t, body, `mediarenamer_store_up 1`)
}

func TestProposalCollectorStoreDown(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewProposalCollector(fakeStats{err: errors.New("db closed")}))

	body := scrape(t, reg)
	assert.Contains(t, body, `mediarenamer_store_up 0`)
	assert.NotContains(t, body, `mediarenamer_proposals{`)
}
