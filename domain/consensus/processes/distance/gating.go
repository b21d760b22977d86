package distance

import (
	"github.com/anchorchain/anchord/domain/consensus/model/externalapi"
	"github.com/anchorchain/anchord/domain/consensus/ruleerrors"
)

// Evaluation is the outcome of scoring one nonce digest
type Evaluation struct {
	Distances map[externalapi.SourceID]uint64
	Score     uint64
	Passed    bool

	// Failing is the source with the lowest distance when Passed is false
	Failing externalapi.SourceID
}

// Gate reduces distances to a score under the given gating mode and checks
// it against threshold. Per-source gating scores by the minimum distance,
// aggregate gating by the mean.
func Gate(distances map[externalapi.SourceID]uint64, threshold uint64,
	gating externalapi.GatingMode) (score uint64, failing externalapi.SourceID, passed bool) {

	if len(distances) == 0 {
		return 0, "", false
	}

	var sum uint64
	first := true
	for sourceID, sourceDistance := range distances {
		sum += sourceDistance
		if first || sourceDistance < score || (sourceDistance == score && sourceID < failing) {
			score, failing = sourceDistance, sourceID
			first = false
		}
	}
	if gating == externalapi.GatingAggregate {
		score = sum / uint64(len(distances))
	}
	return score, failing, score >= threshold
}

// Evaluate scores digest against every reference and gates the result by
// the work set's threshold and gating mode.
func Evaluate(workSet *externalapi.WorkSet, references map[externalapi.SourceID]string,
	digest string) (*Evaluation, error) {

	distances := make(map[externalapi.SourceID]uint64, len(references))
	for sourceID, reference := range references {
		sourceDistance, err := Distance(workSet.Algorithm(), digest, reference)
		if err != nil {
			return nil, err
		}
		distances[sourceID] = ToFixed(sourceDistance)
	}

	score, failing, passed := Gate(distances, workSet.DistanceThreshold(), workSet.Gating())
	evaluation := &Evaluation{
		Distances: distances,
		Score:     score,
		Passed:    passed,
	}
	if !passed {
		evaluation.Failing = failing
	}
	return evaluation, nil
}

// Err returns the rule error describing a failed evaluation, or nil
func (e *Evaluation) Err(threshold uint64, gating externalapi.GatingMode) error {
	if e.Passed {
		return nil
	}
	source := string(e.Failing)
	if gating == externalapi.GatingAggregate {
		source = "the aggregate"
	}
	return ruleerrors.NewErrDistanceBelowThreshold(source, e.Score, threshold)
}
