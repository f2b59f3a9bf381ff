package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/to-wer/media-renamer/internal/library"
)

// StatsSource is the part of the proposal store the collector reads.
type StatsSource interface {
	Stats(ctx context.Context) (library.Stats, error)
}

// ProposalCollector implements prometheus.Collector for proposal counts.
// It queries the store on each scrape rather than keeping its own state.
type ProposalCollector struct {
	source  StatsSource
	timeout time.Duration
	log     *slog.Logger

	byStatus *prometheus.Desc
	total    *prometheus.Desc
	up       *prometheus.Desc
}

// NewProposalCollector creates a collector that reads proposal stats on demand.
func NewProposalCollector(source StatsSource) *ProposalCollector {
	return &ProposalCollector{
		source:  source,
		timeout: 5 * time.Second,
		log:     slog.With("component", "proposal-collector"),

		byStatus: prometheus.NewDesc(
			"mediarenamer_proposals",
			"Number of proposals per status.",
			[]string{"status"}, nil,
		),
		total: prometheus.NewDesc(
			"mediarenamer_proposals_total_stored",
			"Total number of stored proposals.",
			nil, nil,
		),
		up: prometheus.NewDesc(
			"mediarenamer_store_up",
			"Whether the last stats query succeeded.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *ProposalCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.byStatus
	ch <- c.total
	ch <- c.up
}

// Collect implements prometheus.Collector.
func (c *ProposalCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	stats, err := c.source.Stats(ctx)
	if err != nil {
		c.log.Warn("Failed to collect proposal stats", "error", err)
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
		return
	}

	for _, status := range library.AllStatuses {
		ch <- prometheus.MustNewConstMetric(c.byStatus, prometheus.GaugeValue, float64(stats.Count(status)), string(status))
	}
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(stats.Total))
	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1)
}
