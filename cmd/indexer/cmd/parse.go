package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/collection"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/idstore"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/notify"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/progress"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/stats"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/stemmer"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/stopwords"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/vocabulary"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/resilience"
)

const redisVocabularyCacheSize = 1 << 16

func newParseCmd() *cobra.Command {
	var (
		collectionDir string
		glob          string
		blockSize     int
		outputDir     string
		stopwordsFile string
		jsonOutput    bool
	)

	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Build one partial index per block of the collection",
		Long: `Partition the collection into blocks of --block-size documents, index every
block concurrently and write each block index under --output. The document
map and vocabulary are saved to the configured id store, and the merge-ready
event is published when Kafka is enabled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFrom(cmd.Context())
			flags := cmd.Flags()
			if flags.Changed("collection") {
				cfg.Indexer.CollectionDir = collectionDir
			}
			if flags.Changed("glob") {
				cfg.Indexer.DocumentGlob = glob
			}
			if flags.Changed("block-size") {
				cfg.Indexer.BlockSize = blockSize
			}
			if flags.Changed("output") {
				cfg.Indexer.OutputDir = outputDir
			}
			if flags.Changed("stopwords") {
				cfg.Indexer.StopwordsFile = stopwordsFile
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			summary, err := runParse(cmd.Context(), cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return printSummary(cmd.OutOrStdout(), summary, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&collectionDir, "collection", "", "collection root directory")
	cmd.Flags().StringVar(&glob, "glob", "", "doublestar pattern selecting documents under the root")
	cmd.Flags().IntVar(&blockSize, "block-size", 0, "documents per block")
	cmd.Flags().StringVar(&outputDir, "output", "", "directory block indexes are written to")
	cmd.Flags().StringVar(&stopwordsFile, "stopwords", "", "newline-delimited stopword list (empty disables filtering)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the run summary as JSON")
	return cmd
}

// ParseSummary is what a successful parse run reports.
type ParseSummary struct {
	RunID      string        `json:"run_id"`
	Blocks     int           `json:"blocks"`
	Documents  int           `json:"documents"`
	Terms      int           `json:"terms"`
	OutputDir  string        `json:"output_dir"`
	Duration   time.Duration `json:"duration_ns"`
	Statistics stats.Summary `json:"statistics"`
}

// runParse wires the configured backends and runs one parse. progressOut
// receives the progress bar when enabled.
func runParse(ctx context.Context, cfg *config.Config, progressOut io.Writer) (*ParseSummary, error) {
	start := time.Now()
	runID := start.UTC().Format("20060102T150405.000Z")
	logger := slog.Default().With("component", "parse-cmd", "run_id", runID)

	filter := stopwords.New()
	if cfg.Indexer.StopwordsFile != "" {
		var err error
		if filter, err = stopwords.Load(cfg.Indexer.StopwordsFile); err != nil {
			return nil, err
		}
	}
	extractor, err := tokenizer.ByName(cfg.Indexer.Tokenizer)
	if err != nil {
		return nil, err
	}
	stemmers, err := stemmer.FactoryByName(cfg.Indexer.Stemmer)
	if err != nil {
		return nil, err
	}

	checker := health.NewChecker()
	store, err := openIDStore(ctx, cfg, checker)
	if err != nil {
		return nil, err
	}
	if store != nil {
		defer store.Close()
	}

	vocab, snapshot, closeVocab, err := openVocabulary(ctx, cfg, store, checker)
	if err != nil {
		return nil, err
	}
	defer closeVocab()

	blocks, docs, err := collection.Partition(cfg.Indexer.CollectionDir, cfg.Indexer.DocumentGlob, cfg.Indexer.BlockSize)
	if err != nil {
		return nil, err
	}

	var notifier stats.Notifier
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(cfg.Kafka)
		if err != nil {
			return nil, err
		}
		defer producer.Close()
		if err := resilience.Retry(ctx, "kafka-dial", resilience.StartupConfig(nil), func() error {
			return producer.Ping(ctx)
		}); err != nil {
			return nil, err
		}
		checker.Register("kafka", health.Ping(producer.Ping))
		notifier = notify.NewKafka(producer, runID, cfg.Indexer.OutputDir)
	}
	aggregator := stats.NewAggregator(notifier)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, reg, checker)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(shutdownCtx)
		}()
	}

	reporter := progress.Multi{progress.NewLog(logger)}
	if cfg.Indexer.ShowProgress {
		reporter = append(reporter, progress.NewBar(progressOut))
	}

	manager, err := indexer.NewManager(indexer.Options{
		OutputDir: cfg.Indexer.OutputDir,
		Stopwords: filter,
		Extractor: extractor,
		Stemmers:  stemmers,
		Stats:     aggregator,
		Progress:  reporter,
		Metrics:   m,
	})
	if err != nil {
		return nil, err
	}

	completions, err := manager.Parse(ctx, &collection.Collection{
		Blocks:     blocks,
		Documents:  docs,
		Vocabulary: vocab,
	})
	if err != nil {
		if blockPath, ok := apperrors.FailedBlock(err); ok {
			logger.Error("parse run aborted, id store left untouched", "failed_block", blockPath)
		}
		return nil, err
	}

	terms, err := snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshotting vocabulary: %w", err)
	}
	if store != nil {
		if err := store.SaveDocuments(ctx, docs); err != nil {
			return nil, fmt.Errorf("saving document map: %w", err)
		}
		if err := store.SaveVocabulary(ctx, terms); err != nil {
			return nil, fmt.Errorf("saving vocabulary: %w", err)
		}
	}

	return &ParseSummary{
		RunID:      runID,
		Blocks:     len(completions),
		Documents:  len(docs),
		Terms:      len(terms),
		OutputDir:  cfg.Indexer.OutputDir,
		Duration:   time.Since(start),
		Statistics: aggregator.Summary(),
	}, nil
}

func openIDStore(ctx context.Context, cfg *config.Config, checker *health.Checker) (idstore.Store, error) {
	switch cfg.Indexer.IDStore {
	case config.BackendBolt:
		store, err := idstore.OpenBolt(cfg.Indexer.IDStorePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendPostgres:
		client, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		store, err := idstore.NewPostgres(ctx, client)
		if err != nil {
			client.Close()
			return nil, err
		}
		checker.Register("postgres", health.Ping(client.DB.PingContext))
		return store, nil
	default:
		return nil, nil
	}
}

type snapshotFunc func(ctx context.Context) (map[string]index.TermID, error)

// openVocabulary returns the shared term id service. The in-memory backend
// is seeded from the id store so ids stay stable across runs.
func openVocabulary(ctx context.Context, cfg *config.Config, store idstore.Store, checker *health.Checker) (vocabulary.Service, snapshotFunc, func(), error) {
	if cfg.Indexer.Vocabulary == config.BackendRedis {
		client, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, nil, err
		}
		vocab, err := vocabulary.NewRedis(client, cfg.Redis.KeyPrefix, redisVocabularyCacheSize)
		if err != nil {
			client.Close()
			return nil, nil, nil, err
		}
		if store != nil {
			terms, err := store.LoadVocabulary(ctx)
			if err != nil {
				client.Close()
				return nil, nil, nil, fmt.Errorf("loading vocabulary: %w", err)
			}
			added, err := vocab.Reconcile(ctx, terms)
			if err != nil {
				client.Close()
				return nil, nil, nil, err
			}
			slog.Info("redis vocabulary reconciled with id store", "stored_terms", len(terms), "seeded", added)
		}
		checker.Register("redis", health.Ping(client.Ping))
		return vocab, vocab.Snapshot, func() { client.Close() }, nil
	}

	vocab := vocabulary.NewMemory(vocabulary.DefaultSegments)
	if store != nil {
		terms, err := store.LoadVocabulary(ctx)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("loading vocabulary: %w", err)
		}
		vocab.Restore(terms)
	}
	snapshot := func(context.Context) (map[string]index.TermID, error) {
		return vocab.Snapshot(), nil
	}
	return vocab, snapshot, func() {}, nil
}

func printSummary(w io.Writer, s *ParseSummary, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	fmt.Fprintf(w, "run %s: %d blocks, %d documents, %d terms in %s\n",
		s.RunID, s.Blocks, s.Documents, s.Terms, s.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "posting lists: %d  postings: %d  occurrences: %d  max df: %d\n",
		s.Statistics.PostingLists, s.Statistics.Postings, s.Statistics.Occurrences, s.Statistics.MaxDocFreq)
	fmt.Fprintf(w, "block indexes written to %s\n", s.OutputDir)
	return nil
}
