package segment

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/errors"
)

// Reader gives random access to the entries of a finished block index, by
// the positions its Writer returned.
type Reader struct {
	file      *os.File
	filePath  string
	header    Header
	positions []int64
}

func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening block index: %w", err)
	}
	r, err := newReader(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func newReader(f *os.File, path string) (*Reader, error) {
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, fmt.Errorf("%w: reading header of %s: %v", apperrors.ErrCorruptSegment, path, err)
	}
	header := decodeHeader(headerBytes)
	if header.Magic != MagicBytes {
		return nil, fmt.Errorf("%w: bad magic bytes %x in %s", apperrors.ErrCorruptSegment, header.Magic, path)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d in %s", apperrors.ErrCorruptSegment, header.Version, path)
	}

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	tailSize := 8*int64(header.Entries) + int64(FooterSize)
	if header.PositionsOffset < int64(HeaderSize) || header.PositionsOffset+tailSize != info.Size() {
		return nil, fmt.Errorf("%w: %d entries at offset %d do not fit %d bytes in %s",
			apperrors.ErrCorruptSegment, header.Entries, header.PositionsOffset, info.Size(), path)
	}
	tail := make([]byte, tailSize)
	if _, err := f.ReadAt(tail, header.PositionsOffset); err != nil {
		return nil, fmt.Errorf("%w: reading positions of %s: %v", apperrors.ErrCorruptSegment, path, err)
	}
	table := tail[:len(tail)-FooterSize]
	footer := tail[len(tail)-FooterSize:]
	if crc32.ChecksumIEEE(table) != binary.LittleEndian.Uint32(footer[0:4]) {
		return nil, fmt.Errorf("%w: positions checksum mismatch in %s", apperrors.ErrCorruptSegment, path)
	}
	if binary.LittleEndian.Uint32(footer[4:8]) != header.Entries {
		return nil, fmt.Errorf("%w: entry count mismatch in %s", apperrors.ErrCorruptSegment, path)
	}
	positions := make([]int64, header.Entries)
	for i := range positions {
		positions[i] = int64(binary.LittleEndian.Uint64(table[i*8:]))
	}
	return &Reader{
		file:      f,
		filePath:  path,
		header:    header,
		positions: positions,
	}, nil
}

// ReadAt decodes the entry stored at position.
func (r *Reader) ReadAt(position int64) (index.TermEntry, error) {
	var entry index.TermEntry
	if position < int64(HeaderSize) || position >= r.header.PositionsOffset {
		return entry, fmt.Errorf("%w: position %d outside entries of %s", apperrors.ErrCorruptSegment, position, r.filePath)
	}
	var lenBuf [binary.MaxVarintLen64]byte
	n, err := r.file.ReadAt(lenBuf[:], position)
	if err != nil && !(errors.Is(err, io.EOF) && n > 0) {
		return entry, fmt.Errorf("reading entry length at %d: %w", position, err)
	}
	size, width := binary.Uvarint(lenBuf[:n])
	if width <= 0 {
		return entry, fmt.Errorf("%w: bad entry length at %d in %s", apperrors.ErrCorruptSegment, position, r.filePath)
	}
	remaining := r.header.PositionsOffset - position - int64(width)
	if remaining < 0 || size > uint64(remaining) {
		return entry, fmt.Errorf("%w: entry at %d claims %d bytes past the entry region of %s",
			apperrors.ErrCorruptSegment, position, size, r.filePath)
	}
	payload := make([]byte, size)
	if _, err := r.file.ReadAt(payload, position+int64(width)); err != nil {
		return entry, fmt.Errorf("reading entry at %d: %w", position, err)
	}
	if err := json.Unmarshal(payload, &entry); err != nil {
		return entry, fmt.Errorf("%w: decoding entry at %d: %v", apperrors.ErrCorruptSegment, position, err)
	}
	return entry, nil
}

// Entries decodes every entry in file order.
func (r *Reader) Entries() ([]index.TermEntry, error) {
	entries := make([]index.TermEntry, 0, len(r.positions))
	for _, pos := range r.positions {
		entry, err := r.ReadAt(pos)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (r *Reader) Positions() []int64 {
	out := make([]int64, len(r.positions))
	copy(out, r.positions)
	return out
}

func (r *Reader) Len() int {
	return len(r.positions)
}

func (r *Reader) Header() Header {
	return r.header
}

func (r *Reader) Close() error {
	return r.file.Close()
}
