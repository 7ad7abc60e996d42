package sample

import (
	"fmt"

	"github.com/jacentio/docsample/store"
)

// Record is the document the sample writes.
type Record struct {
	ID        string `json:"id"`
	Number    uint64 `json:"number"`
	Timestamp int64  `json:"timestamp"`
}

func (r Record) DocumentID() string               { return r.ID }
func (r Record) PartitionKey() store.PartitionKey { return store.PartitionKey(r.Number) }

// NewRecord builds the record for loop index i.
func NewRecord(prefix string, i int, step uint64, unix int64) Record {
	return Record{
		ID:        fmt.Sprintf("%s%d", prefix, i),
		Number:    uint64(i) * step,
		Timestamp: unix,
	}
}
