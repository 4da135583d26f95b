package index

// DocID identifies a document across the whole collection.
type DocID uint32

// TermID is the dense, globally shared identifier of a stemmed term.
type TermID uint32

type Posting struct {
	DocID     DocID  `json:"d"`
	Frequency uint32 `json:"f"`
}

// PostingList keeps postings in the order their documents were processed.
type PostingList []Posting

// Occurrences sums the frequencies of every posting.
func (pl PostingList) Occurrences() uint64 {
	var total uint64
	for _, p := range pl {
		total += uint64(p.Frequency)
	}
	return total
}

type TermEntry struct {
	TermID   TermID      `json:"t"`
	Postings PostingList `json:"p"`
}
