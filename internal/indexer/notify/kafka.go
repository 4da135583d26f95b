// Package notify tells the downstream merge phase that every block index of
// a run is on disk.
package notify

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/stats"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/kafka"
)

const EventMergeReady = "merge_input_ready"

type MergeReadyEvent struct {
	Type     string        `json:"type"`
	RunID    string        `json:"run_id"`
	IndexDir string        `json:"index_dir"`
	Summary  stats.Summary `json:"summary"`
}

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, runID string, event any) error
}

var _ Publisher = (*kafka.Producer)(nil)

// Kafka publishes one MergeReadyEvent per run, keyed by run id.
type Kafka struct {
	publisher Publisher
	runID     string
	indexDir  string
	logger    *slog.Logger
}

func NewKafka(publisher Publisher, runID string, indexDir string) *Kafka {
	return &Kafka{
		publisher: publisher,
		runID:     runID,
		indexDir:  indexDir,
		logger:    slog.Default().With("component", "merge-notifier"),
	}
}

func (k *Kafka) MergeInputReady(ctx context.Context, summary stats.Summary) error {
	event := MergeReadyEvent{
		Type:     EventMergeReady,
		RunID:    k.runID,
		IndexDir: k.indexDir,
		Summary:  summary,
	}
	if err := k.publisher.Publish(ctx, k.runID, event); err != nil {
		return err
	}
	k.logger.Info("merge-ready event published", "run_id", k.runID, "blocks", len(summary.Blocks))
	return nil
}
