// Package rover defines how records of reference chains enter the node.
package rover

import (
	"strings"

	"github.com/anchorchain/anchord/domain/consensus/model/externalapi"
)

// Rover streams the headers of one reference chain. The stream may
// replay records after a reconnect; deduplication happens downstream.
type Rover interface {
	SourceID() externalapi.SourceID
	Records() <-chan *externalapi.SourceRecord
	Start() error
	Stop()
}

// RawRecord is a header as a rover receives it, before validation
type RawRecord struct {
	SourceID   string `json:"sourceId"`
	Height     uint64 `json:"height"`
	Hash       string `json:"hash"`
	PrevHash   string `json:"prevHash"`
	MerkleRoot string `json:"merkleRoot,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

// Normalize validates raw and turns it into a SourceRecord. Hex fields
// are lowercased and stripped of a 0x prefix and surrounding spaces.
func Normalize(raw *RawRecord) (*externalapi.SourceRecord, error) {
	return externalapi.NewSourceRecord(
		externalapi.SourceID(strings.TrimSpace(raw.SourceID)),
		raw.Height,
		normalizeHex(raw.Hash),
		normalizeHex(raw.PrevHash),
		normalizeHex(raw.MerkleRoot),
		raw.Timestamp)
}

// FromRecord is the inverse of Normalize
func FromRecord(record *externalapi.SourceRecord) *RawRecord {
	return &RawRecord{
		SourceID:   string(record.SourceID()),
		Height:     record.Height(),
		Hash:       record.Hash(),
		PrevHash:   record.PrevHash(),
		MerkleRoot: record.MerkleRoot(),
		Timestamp:  record.Timestamp(),
	}
}

func normalizeHex(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimPrefix(s, "0x")
}
