package externalapi

import (
	"fmt"

	"github.com/anchorchain/anchord/domain/consensus/ruleerrors"
)

// Candidate is a nonce a worker found to clear its work set's threshold.
// It is created once and never mutated.
type Candidate struct {
	workSet   *WorkSet
	nonce     uint64
	digest    string
	blockHash *DomainHash
	distances map[SourceID]uint64
	distance  uint64
	workerID  int
}

// NewCandidate validates the given values and returns a Candidate.
// distances must hold a value for every source of the work set and for
// SelfSourceID. distance is the gating score the distances reduce to.
func NewCandidate(workSet *WorkSet, nonce uint64, digest string, blockHash *DomainHash,
	distances map[SourceID]uint64, distance uint64, workerID int) (*Candidate, error) {

	if workSet == nil {
		return nil, ruleerrors.NewErrValidation("candidate is missing its work set")
	}
	if !IsLowerHex(digest) {
		return nil, ruleerrors.NewErrValidation("candidate digest %q is not lowercase hex", digest)
	}
	if blockHash == nil {
		return nil, ruleerrors.NewErrValidation("candidate is missing its block hash")
	}
	if len(distances) != len(workSet.sourceRefs)+1 {
		return nil, ruleerrors.NewErrValidation("candidate has %d distances, expected %d",
			len(distances), len(workSet.sourceRefs)+1)
	}
	distancesCopy := make(map[SourceID]uint64, len(distances))
	for sourceID, sourceDistance := range distances {
		if _, ok := workSet.sourceRefs[sourceID]; !ok && sourceID != SelfSourceID {
			return nil, ruleerrors.NewErrValidation("candidate has a distance for unreferenced source %s", sourceID)
		}
		if sourceDistance > MaxDistance {
			return nil, ruleerrors.NewErrValidation("distance %d of %s is out of range", sourceDistance, sourceID)
		}
		distancesCopy[sourceID] = sourceDistance
	}
	if distance > MaxDistance {
		return nil, ruleerrors.NewErrValidation("candidate distance %d is out of range", distance)
	}

	return &Candidate{
		workSet:   workSet,
		nonce:     nonce,
		digest:    digest,
		blockHash: blockHash,
		distances: distancesCopy,
		distance:  distance,
		workerID:  workerID,
	}, nil
}

// WorkSet returns the work set the candidate was mined on
func (c *Candidate) WorkSet() *WorkSet { return c.workSet }

// WorkSetID returns the id of the work set the candidate was mined on
func (c *Candidate) WorkSetID() uint64 { return c.workSet.id }

// Nonce returns the winning nonce
func (c *Candidate) Nonce() uint64 { return c.nonce }

// Digest returns the hex nonce digest the distances were computed on
func (c *Candidate) Digest() string { return c.digest }

// BlockHash returns the hash of the block the candidate produces
func (c *Candidate) BlockHash() *DomainHash { return c.blockHash }

// Distance returns the gating score in parts per billion
func (c *Candidate) Distance() uint64 { return c.distance }

// Distances returns a copy of the per-source distances
func (c *Candidate) Distances() map[SourceID]uint64 {
	distances := make(map[SourceID]uint64, len(c.distances))
	for sourceID, distance := range c.distances {
		distances[sourceID] = distance
	}
	return distances
}

// MinerAddress returns the address the candidate was mined for
func (c *Candidate) MinerAddress() string { return c.workSet.minerAddress }

// WorkerID returns the id of the worker that found the candidate
func (c *Candidate) WorkerID() int { return c.workerID }

func (c *Candidate) String() string {
	return fmt.Sprintf("candidate %s (work set %d, nonce %d, distance %d, worker %d)",
		c.blockHash, c.workSet.id, c.nonce, c.distance, c.workerID)
}
