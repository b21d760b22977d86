package multiverse

import (
	"github.com/anchorchain/anchord/domain/consensus/model/externalapi"
	"github.com/anchorchain/anchord/domain/consensus/processes/distance"
	"github.com/anchorchain/anchord/domain/consensus/ruleerrors"
	"github.com/anchorchain/anchord/domain/consensus/utils/hashes"
	"github.com/pkg/errors"
)

// validateCandidate recomputes the digest, distances and block hash of a
// candidate from its work set and nonce, and checks them against what
// the candidate claims
func validateCandidate(candidate *externalapi.Candidate) error {
	workSet := candidate.WorkSet()
	fingerprint := hashes.WorkSetFingerprint(workSet)

	digest := hashes.NonceDigest(workSet.MinerAddress(), fingerprint, candidate.Nonce())
	if digest != candidate.Digest() {
		return ruleerrors.NewErrValidation("candidate %s claims digest %s, nonce %d produces %s",
			candidate.BlockHash(), candidate.Digest(), candidate.Nonce(), digest)
	}

	blockHash := hashes.BlockHash(fingerprint, digest)
	if !blockHash.Equal(candidate.BlockHash()) {
		return errors.Wrapf(ruleerrors.ErrBadBlockHash, "candidate claims block hash %s, recomputed %s",
			candidate.BlockHash(), blockHash)
	}

	evaluation, err := distance.Evaluate(workSet, hashes.References(workSet), digest)
	if err != nil {
		return ruleerrors.NewErrValidation("cannot score candidate %s: %s", candidate.BlockHash(), err)
	}
	if !evaluation.Passed {
		return evaluation.Err(workSet.DistanceThreshold(), workSet.Gating())
	}
	if evaluation.Score != candidate.Distance() {
		return ruleerrors.NewErrValidation("candidate %s claims distance %d, recomputed %d",
			candidate.BlockHash(), candidate.Distance(), evaluation.Score)
	}
	return nil
}

// samePayload returns whether entry was produced from the same work as candidate
func samePayload(entry *externalapi.ChainEntry, candidate *externalapi.Candidate) bool {
	existing := entry.Candidate()
	if existing == nil {
		return false
	}
	workSet := candidate.WorkSet()
	return entry.Height() == workSet.TargetHeight() &&
		entry.PrevHash().Equal(workSet.PreviousHash()) &&
		entry.Difficulty().Cmp(workSet.Difficulty()) == 0 &&
		entry.Timestamp() == workSet.Timestamp() &&
		existing.Nonce() == candidate.Nonce() &&
		existing.MinerAddress() == candidate.MinerAddress() &&
		entry.DifficultyState().Equal(workSet.DifficultyState())
}
