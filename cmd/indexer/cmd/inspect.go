package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/idstore"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/config"
)

func newInspectCmd() *cobra.Command {
	var (
		limit   int
		resolve bool
	)

	cmd := &cobra.Command{
		Use:   "inspect <block file>",
		Short: "Dump a block index",
		Long: `Print the header of a block index and its term entries in on-disk order.
With --resolve, term ids are mapped back to terms through the bolt id store.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var terms map[index.TermID]string
			if resolve {
				var err error
				if terms, err = loadTermNames(cmd, configFrom(cmd.Context())); err != nil {
					return err
				}
			}
			return runInspect(cmd.OutOrStdout(), args[0], limit, terms)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "print at most this many entries (0 prints all)")
	cmd.Flags().BoolVar(&resolve, "resolve", false, "show terms next to term ids")
	return cmd
}

func loadTermNames(cmd *cobra.Command, cfg *config.Config) (map[index.TermID]string, error) {
	if cfg.Indexer.IDStore != config.BackendBolt {
		return nil, fmt.Errorf("--resolve needs the bolt id store, configured %q", cfg.Indexer.IDStore)
	}
	store, err := idstore.OpenBolt(cfg.Indexer.IDStorePath)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	vocab, err := store.LoadVocabulary(cmd.Context())
	if err != nil {
		return nil, err
	}
	names := make(map[index.TermID]string, len(vocab))
	for term, id := range vocab {
		names[id] = term
	}
	return names, nil
}

func runInspect(w io.Writer, path string, limit int, terms map[index.TermID]string) error {
	r, err := segment.OpenReader(path)
	if err != nil {
		return err
	}
	defer r.Close()

	h := r.Header()
	fmt.Fprintf(w, "block index %s\n", path)
	fmt.Fprintf(w, "version: %d  entries: %d  expected: %d  created: %s\n\n",
		h.Version, h.Entries, h.ExpectedEntries, time.Unix(h.CreatedAt, 0).UTC().Format(time.RFC3339))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if terms != nil {
		fmt.Fprintln(tw, "POSITION\tTERM ID\tTERM\tDF\tPOSTINGS")
	} else {
		fmt.Fprintln(tw, "POSITION\tTERM ID\tDF\tPOSTINGS")
	}
	for i, pos := range r.Positions() {
		if limit > 0 && i >= limit {
			break
		}
		entry, err := r.ReadAt(pos)
		if err != nil {
			return err
		}
		if terms != nil {
			fmt.Fprintf(tw, "%d\t%d\t%s\t%d\t%s\n", pos, entry.TermID, terms[entry.TermID], len(entry.Postings), formatPostings(entry.Postings))
		} else {
			fmt.Fprintf(tw, "%d\t%d\t%d\t%s\n", pos, entry.TermID, len(entry.Postings), formatPostings(entry.Postings))
		}
	}
	return tw.Flush()
}

func formatPostings(pl index.PostingList) string {
	const maxShown = 8
	out := ""
	for i, p := range pl {
		if i == maxShown {
			out += fmt.Sprintf(" ...(+%d)", len(pl)-maxShown)
			break
		}
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%d:%d", p.DocID, p.Frequency)
	}
	return out
}
