package externalapi

import (
	"fmt"

	"github.com/anchorchain/anchord/domain/consensus/ruleerrors"
)

// SourceRecord is a block header observed on a reference chain.
// It is immutable once built.
type SourceRecord struct {
	sourceID   SourceID
	height     uint64
	hash       string
	prevHash   string
	merkleRoot string
	timestamp  int64
}

// NewSourceRecord validates the given fields and returns a SourceRecord.
// Hashes must be lowercase hex. prevHash may only be empty at height 0
// and merkleRoot is optional.
func NewSourceRecord(sourceID SourceID, height uint64, hash, prevHash, merkleRoot string,
	timestamp int64) (*SourceRecord, error) {

	if !sourceID.IsValid() {
		return nil, ruleerrors.NewErrValidation("invalid source id %q", sourceID)
	}
	if !IsLowerHex(hash) {
		return nil, ruleerrors.NewErrValidation("%s record at height %d: hash %q is not lowercase hex",
			sourceID, height, hash)
	}
	if prevHash == "" {
		if height != 0 {
			return nil, ruleerrors.NewErrValidation("%s record at height %d: missing prevHash", sourceID, height)
		}
	} else if !IsLowerHex(prevHash) {
		return nil, ruleerrors.NewErrValidation("%s record at height %d: prevHash %q is not lowercase hex",
			sourceID, height, prevHash)
	}
	if merkleRoot != "" && !IsLowerHex(merkleRoot) {
		return nil, ruleerrors.NewErrValidation("%s record at height %d: merkleRoot %q is not lowercase hex",
			sourceID, height, merkleRoot)
	}
	if timestamp <= 0 {
		return nil, ruleerrors.NewErrValidation("%s record at height %d: non-positive timestamp %d",
			sourceID, height, timestamp)
	}

	return &SourceRecord{
		sourceID:   sourceID,
		height:     height,
		hash:       hash,
		prevHash:   prevHash,
		merkleRoot: merkleRoot,
		timestamp:  timestamp,
	}, nil
}

// SourceID returns the id of the chain the record was observed on
func (r *SourceRecord) SourceID() SourceID { return r.sourceID }

// Height returns the record's block height on its source chain
func (r *SourceRecord) Height() uint64 { return r.height }

// Hash returns the record's block hash
func (r *SourceRecord) Hash() string { return r.hash }

// PrevHash returns the hash of the record's parent
func (r *SourceRecord) PrevHash() string { return r.prevHash }

// MerkleRoot returns the record's merkle root, or "" if the source has none
func (r *SourceRecord) MerkleRoot() string { return r.merkleRoot }

// Timestamp returns the record's block time in unix seconds
func (r *SourceRecord) Timestamp() int64 { return r.timestamp }

// Equal returns whether the two records carry the same payload
func (r *SourceRecord) Equal(other *SourceRecord) bool {
	if r == nil || other == nil {
		return r == other
	}
	return *r == *other
}

func (r *SourceRecord) String() string {
	return fmt.Sprintf("%s:%d:%s", r.sourceID, r.height, r.hash)
}

// IsLowerHex returns whether s is a non-empty even-length lowercase hex string
func IsLowerHex(s string) bool {
	if len(s) == 0 || len(s)%2 != 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
