package index

import (
	"sort"
)

// BlockIndex is the in-memory inverted index of a single block. It is owned
// by exactly one worker and is not safe for concurrent use.
type BlockIndex struct {
	postings map[TermID]PostingList
	docCount int
}

func NewBlockIndex() *BlockIndex {
	return &BlockIndex{
		postings: make(map[TermID]PostingList),
	}
}

// Add appends (docID, frequency) to the posting list of termID.
func (b *BlockIndex) Add(termID TermID, docID DocID, frequency uint32) {
	b.postings[termID] = append(b.postings[termID], Posting{
		DocID:     docID,
		Frequency: frequency,
	})
}

// DocumentDone counts a processed document, including documents that only
// contained stopwords.
func (b *BlockIndex) DocumentDone() {
	b.docCount++
}

// Postings returns the posting list of termID, or nil.
func (b *BlockIndex) Postings(termID TermID) PostingList {
	return b.postings[termID]
}

// Len returns the number of distinct terms.
func (b *BlockIndex) Len() int {
	return len(b.postings)
}

func (b *BlockIndex) DocCount() int {
	return b.docCount
}

// Each calls fn for every posting list in unspecified order.
func (b *BlockIndex) Each(fn func(termID TermID, postings PostingList)) {
	for termID, postings := range b.postings {
		fn(termID, postings)
	}
}

// Entries returns every term entry sorted by ascending term id.
func (b *BlockIndex) Entries() []TermEntry {
	entries := make([]TermEntry, 0, len(b.postings))
	for termID, postings := range b.postings {
		entries = append(entries, TermEntry{
			TermID:   termID,
			Postings: postings,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].TermID < entries[j].TermID
	})
	return entries
}
