package segment

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/errors"
)

// MagicBytes identifies a block index file.
const (
	MagicBytes    uint32 = 0x42534249
	FormatVersion uint32 = 1
	HeaderSize    int    = 32
	FooterSize    int    = 8
)

// Header is the fixed 32-byte header at the start of every block index file.
type Header struct {
	Magic           uint32
	Version         uint32
	ExpectedEntries uint32
	Entries         uint32
	PositionsOffset int64
	CreatedAt       int64
}

func (h Header) encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.ExpectedEntries)
	binary.LittleEndian.PutUint32(buf[12:16], h.Entries)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(h.PositionsOffset))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(h.CreatedAt))
	return buf
}

func decodeHeader(buf []byte) Header {
	return Header{
		Magic:           binary.LittleEndian.Uint32(buf[0:4]),
		Version:         binary.LittleEndian.Uint32(buf[4:8]),
		ExpectedEntries: binary.LittleEndian.Uint32(buf[8:12]),
		Entries:         binary.LittleEndian.Uint32(buf[12:16]),
		PositionsOffset: int64(binary.LittleEndian.Uint64(buf[16:24])),
		CreatedAt:       int64(binary.LittleEndian.Uint64(buf[24:32])),
	}
}

// Writer appends term entries to a block index file in strictly ascending
// term id order. The file is built under a .tmp name and only renamed into
// place by Close, so a failed block never leaves a visible partial index.
//
// Layout: header | entries (uvarint length + JSON) | positions (uint64 each)
// | footer (crc32 of positions, entry count).
type Writer struct {
	path      string
	tmpPath   string
	file      *os.File
	buf       *bufio.Writer
	header    Header
	offset    int64
	positions []int64
	lastTerm  index.TermID
	closed    bool
}

// Open creates the output for a block expected to hold expectedEntries terms.
func Open(path string, expectedEntries int) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating index directory: %v", apperrors.ErrIndexWrite, err)
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("%w: creating temp index file: %v", apperrors.ErrIndexWrite, err)
	}
	w := &Writer{
		path:    path,
		tmpPath: tmpPath,
		file:    f,
		buf:     bufio.NewWriterSize(f, 64*1024),
		header: Header{
			Magic:           MagicBytes,
			Version:         FormatVersion,
			ExpectedEntries: uint32(expectedEntries),
			CreatedAt:       time.Now().Unix(),
		},
		positions: make([]int64, 0, expectedEntries),
	}
	if _, err := w.buf.Write(w.header.encode()); err != nil {
		return nil, w.fail(fmt.Errorf("%w: writing header: %v", apperrors.ErrIndexWrite, err))
	}
	w.offset = int64(HeaderSize)
	return w, nil
}

// Append writes one term entry. Term ids must strictly increase.
func (w *Writer) Append(entry index.TermEntry) error {
	if w.closed {
		return fmt.Errorf("%w: append after close", apperrors.ErrIndexWrite)
	}
	if len(w.positions) > 0 && entry.TermID <= w.lastTerm {
		return fmt.Errorf("%w: term %d after term %d", apperrors.ErrOutOfOrder, entry.TermID, w.lastTerm)
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: marshaling term %d: %v", apperrors.ErrIndexWrite, entry.TermID, err)
	}
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(payload)))
	if _, err := w.buf.Write(lenBuf[:n]); err != nil {
		return fmt.Errorf("%w: writing term %d: %v", apperrors.ErrIndexWrite, entry.TermID, err)
	}
	if _, err := w.buf.Write(payload); err != nil {
		return fmt.Errorf("%w: writing term %d: %v", apperrors.ErrIndexWrite, entry.TermID, err)
	}
	w.positions = append(w.positions, w.offset)
	w.offset += int64(n + len(payload))
	w.lastTerm = entry.TermID
	return nil
}

// Close finalises the file and returns the offset of every appended entry,
// in append order.
func (w *Writer) Close() ([]int64, error) {
	if w.closed {
		return nil, fmt.Errorf("%w: writer already closed", apperrors.ErrIndexWrite)
	}
	table := make([]byte, 8*len(w.positions))
	for i, pos := range w.positions {
		binary.LittleEndian.PutUint64(table[i*8:], uint64(pos))
	}
	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(table))
	binary.LittleEndian.PutUint32(footer[4:8], uint32(len(w.positions)))

	if _, err := w.buf.Write(table); err != nil {
		return nil, w.fail(fmt.Errorf("%w: writing positions: %v", apperrors.ErrIndexWrite, err))
	}
	if _, err := w.buf.Write(footer); err != nil {
		return nil, w.fail(fmt.Errorf("%w: writing footer: %v", apperrors.ErrIndexWrite, err))
	}
	if err := w.buf.Flush(); err != nil {
		return nil, w.fail(fmt.Errorf("%w: flushing index file: %v", apperrors.ErrIndexWrite, err))
	}

	w.header.Entries = uint32(len(w.positions))
	w.header.PositionsOffset = w.offset
	if _, err := w.file.WriteAt(w.header.encode(), 0); err != nil {
		return nil, w.fail(fmt.Errorf("%w: updating header: %v", apperrors.ErrIndexWrite, err))
	}
	if err := w.file.Sync(); err != nil {
		return nil, w.fail(fmt.Errorf("%w: syncing index file: %v", apperrors.ErrIndexWrite, err))
	}
	if err := w.file.Close(); err != nil {
		return nil, w.fail(fmt.Errorf("%w: closing index file: %v", apperrors.ErrIndexWrite, err))
	}
	if err := os.Rename(w.tmpPath, w.path); err != nil {
		return nil, w.fail(fmt.Errorf("%w: renaming index file: %v", apperrors.ErrIndexWrite, err))
	}
	w.closed = true
	return w.positions, nil
}

// Abort discards everything written so far. It is safe to call after a
// failed Close and is a no-op after a successful one.
func (w *Writer) Abort() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.file.Close()
	if err := os.Remove(w.tmpPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing temp index file: %w", err)
	}
	return nil
}

// fail aborts the writer and returns err, joined with any cleanup failure.
func (w *Writer) fail(err error) error {
	if abortErr := w.Abort(); abortErr != nil {
		return errors.Join(err, abortErr)
	}
	return err
}

// Path returns the final location of the block index.
func (w *Writer) Path() string {
	return w.path
}
