// Package progress reports block-parsing progress. Reporters only observe;
// nothing in the indexer depends on what they do.
package progress

import (
	"io"
	"log/slog"

	"github.com/schollz/progressbar/v3"
)

type Reporter interface {
	ReportStart(blockCount int)
	ReportBlockDone(completed int)
}

type Nop struct{}

func (Nop) ReportStart(int)     {}
func (Nop) ReportBlockDone(int) {}

// Log writes one structured record per finished block. The start of a run
// is already logged by the manager, so ReportStart only records the total.
type Log struct {
	logger *slog.Logger
	total  int
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger.With("component", "progress")}
}

func (l *Log) ReportStart(blockCount int) {
	l.total = blockCount
}

func (l *Log) ReportBlockDone(completed int) {
	percent := 100
	if l.total > 0 {
		percent = completed * 100 / l.total
	}
	l.logger.Info("blocks completed", "completed", completed, "total", l.total, "percent", percent)
}

// Bar draws a terminal progress bar over the number of blocks.
type Bar struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

func NewBar(out io.Writer) *Bar {
	return &Bar{out: out}
}

func (b *Bar) ReportStart(blockCount int) {
	b.bar = progressbar.NewOptions(blockCount,
		progressbar.OptionSetWriter(b.out),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Parsing blocks[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			io.WriteString(b.out, "\n")
		}),
	)
}

func (b *Bar) ReportBlockDone(completed int) {
	if b.bar == nil {
		return
	}
	b.bar.Set(completed)
}

// Multi fans progress out to several reporters.
type Multi []Reporter

func (m Multi) ReportStart(blockCount int) {
	for _, r := range m {
		r.ReportStart(blockCount)
	}
}

func (m Multi) ReportBlockDone(completed int) {
	for _, r := range m {
		r.ReportBlockDone(completed)
	}
}
