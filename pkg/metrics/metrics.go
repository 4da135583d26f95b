// Package metrics defines the Prometheus collectors of the block indexer and
// exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for a run.
type Metrics struct {
	BlocksParsedTotal    prometheus.Counter
	BlocksFailedTotal    prometheus.Counter
	DocumentsParsedTotal prometheus.Counter
	TokensProcessedTotal prometheus.Counter
	PostingListsWritten  prometheus.Counter
	BlockParseDuration   prometheus.Histogram
	BlockDistinctTerms   prometheus.Histogram
	ActiveWorkers        prometheus.Gauge
	VocabularySize       prometheus.Gauge
	MergeInputReadyTotal prometheus.Counter
}

// New creates all collectors and registers them on reg. A nil reg leaves
// them unregistered, which tests use to avoid global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BlocksParsedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bsbi_blocks_parsed_total",
			Help: "Blocks whose partial index was written and reported.",
		}),
		BlocksFailedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bsbi_blocks_failed_total",
			Help: "Blocks aborted by a read, stem, vocabulary or write failure.",
		}),
		DocumentsParsedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bsbi_documents_parsed_total",
			Help: "Documents read and folded into a block index.",
		}),
		TokensProcessedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bsbi_tokens_processed_total",
			Help: "Raw tokens stemmed, before stopword removal.",
		}),
		PostingListsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bsbi_posting_lists_written_total",
			Help: "Term entries appended to block index files.",
		}),
		BlockParseDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bsbi_block_parse_duration_seconds",
			Help:    "Wall time to parse and persist one block.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}),
		BlockDistinctTerms: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bsbi_block_distinct_terms",
			Help:    "Distinct terms per block index.",
			Buckets: prometheus.ExponentialBuckets(10, 4, 8),
		}),
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bsbi_active_block_workers",
			Help: "Block workers currently running.",
		}),
		VocabularySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bsbi_vocabulary_size",
			Help: "Term ids allocated so far.",
		}),
		MergeInputReadyTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bsbi_merge_input_ready_total",
			Help: "Runs that signalled merge readiness.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.BlocksParsedTotal,
			m.BlocksFailedTotal,
			m.DocumentsParsedTotal,
			m.TokensProcessedTotal,
			m.PostingListsWritten,
			m.BlockParseDuration,
			m.BlockDistinctTerms,
			m.ActiveWorkers,
			m.VocabularySize,
			m.MergeInputReadyTotal,
		)
	}
	return m
}

// Handler returns the scrape handler for the given gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
