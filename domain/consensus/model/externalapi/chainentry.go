package externalapi

import (
	"fmt"
	"math/big"

	"github.com/anchorchain/anchord/domain/consensus/ruleerrors"
)

// ChainEntry is a node of the multiverse forest
type ChainEntry struct {
	height               uint64
	blockHash            *DomainHash
	prevHash             *DomainHash
	difficulty           *big.Int
	cumulativeDifficulty *big.Int
	distance             uint64
	timestamp            int64
	candidate            *Candidate
	difficultyState      *DifficultyState
}

// NewChainEntry builds the entry a candidate produces on top of parent
func NewChainEntry(candidate *Candidate, parent *ChainEntry) (*ChainEntry, error) {
	if candidate == nil || parent == nil {
		return nil, ruleerrors.NewErrValidation("chain entry needs both a candidate and a parent")
	}
	workSet := candidate.workSet
	if !workSet.previousHash.Equal(parent.blockHash) || workSet.targetHeight != parent.height+1 {
		return nil, ruleerrors.NewErrValidation("candidate %s doesn't extend %s at height %d",
			candidate.blockHash, parent.blockHash, parent.height)
	}
	difficulty := workSet.Difficulty()
	cumulativeDifficulty := new(big.Int).Add(parent.cumulativeDifficulty, difficulty)

	return &ChainEntry{
		height:               workSet.targetHeight,
		blockHash:            candidate.blockHash,
		prevHash:             parent.blockHash,
		difficulty:           difficulty,
		cumulativeDifficulty: cumulativeDifficulty,
		distance:             candidate.distance,
		timestamp:            workSet.timestamp,
		candidate:            candidate,
		difficultyState:      workSet.difficultyState,
	}, nil
}

// NewGenesisEntry builds the root entry of the multiverse
func NewGenesisEntry(blockHash *DomainHash, difficultyState *DifficultyState) (*ChainEntry, error) {
	if blockHash == nil || difficultyState == nil {
		return nil, ruleerrors.NewErrValidation("genesis needs both a hash and a difficulty state")
	}
	return &ChainEntry{
		height:               0,
		blockHash:            blockHash,
		difficulty:           difficultyState.Difficulty(),
		cumulativeDifficulty: difficultyState.Difficulty(),
		timestamp:            difficultyState.Timestamp(),
		difficultyState:      difficultyState,
	}, nil
}

// Height returns the entry's height
func (e *ChainEntry) Height() uint64 { return e.height }

// BlockHash returns the entry's block hash
func (e *ChainEntry) BlockHash() *DomainHash { return e.blockHash }

// PrevHash returns the parent's block hash, or nil for genesis
func (e *ChainEntry) PrevHash() *DomainHash { return e.prevHash }

// Difficulty returns the entry's own difficulty
func (e *ChainEntry) Difficulty() *big.Int { return new(big.Int).Set(e.difficulty) }

// CumulativeDifficulty returns the sum of difficulties from genesis up to and including the entry
func (e *ChainEntry) CumulativeDifficulty() *big.Int { return new(big.Int).Set(e.cumulativeDifficulty) }

// Distance returns the gating score of the candidate that produced the entry
func (e *ChainEntry) Distance() uint64 { return e.distance }

// Timestamp returns the entry's block time in unix seconds
func (e *ChainEntry) Timestamp() int64 { return e.timestamp }

// Candidate returns the candidate that produced the entry, or nil for genesis
func (e *ChainEntry) Candidate() *Candidate { return e.candidate }

// DifficultyState returns the entry's difficulty state
func (e *ChainEntry) DifficultyState() *DifficultyState { return e.difficultyState }

// IsGenesis returns whether the entry is the root of the multiverse
func (e *ChainEntry) IsGenesis() bool { return e.height == 0 }

// Less returns whether e ranks below other under the head selection rule:
// greater cumulative difficulty wins, ties go to the lower block hash.
func (e *ChainEntry) Less(other *ChainEntry) bool {
	switch e.cumulativeDifficulty.Cmp(other.cumulativeDifficulty) {
	case -1:
		return true
	case 1:
		return false
	}
	return other.blockHash.Less(e.blockHash)
}

// Equal returns whether the two entries carry the same payload
func (e *ChainEntry) Equal(other *ChainEntry) bool {
	if e == nil || other == nil {
		return e == other
	}
	if e.height != other.height ||
		!e.blockHash.Equal(other.blockHash) ||
		!e.prevHash.Equal(other.prevHash) ||
		e.difficulty.Cmp(other.difficulty) != 0 ||
		e.cumulativeDifficulty.Cmp(other.cumulativeDifficulty) != 0 ||
		e.distance != other.distance ||
		e.timestamp != other.timestamp {
		return false
	}
	if (e.candidate == nil) != (other.candidate == nil) {
		return false
	}
	if e.candidate != nil && (e.candidate.nonce != other.candidate.nonce ||
		e.candidate.workSet.minerAddress != other.candidate.workSet.minerAddress) {
		return false
	}
	return e.difficultyState.Equal(other.difficultyState)
}

func (e *ChainEntry) String() string {
	return fmt.Sprintf("entry %s at height %d (difficulty %s, cumulative %s)",
		e.blockHash, e.height, e.difficulty, e.cumulativeDifficulty)
}
