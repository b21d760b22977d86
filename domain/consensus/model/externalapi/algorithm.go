package externalapi

import "github.com/pkg/errors"

// MaxDistance is the fixed-point representation of a distance of 1.
// Distances and thresholds are carried in parts per billion.
const MaxDistance uint64 = 1_000_000_000

// DistanceAlgorithm selects the metric used to score nonce digests
type DistanceAlgorithm uint8

// The supported distance algorithms
const (
	DistanceAlgorithmCosine DistanceAlgorithm = iota
	DistanceAlgorithmJaroWinkler
)

var distanceAlgorithmNames = map[DistanceAlgorithm]string{
	DistanceAlgorithmCosine:      "cosine",
	DistanceAlgorithmJaroWinkler: "jarowinkler",
}

func (a DistanceAlgorithm) String() string {
	name, ok := distanceAlgorithmNames[a]
	if !ok {
		return "unknown"
	}
	return name
}

// ParseDistanceAlgorithm returns the algorithm with the given name
func ParseDistanceAlgorithm(name string) (DistanceAlgorithm, error) {
	for algorithm, algorithmName := range distanceAlgorithmNames {
		if algorithmName == name {
			return algorithm, nil
		}
	}
	return 0, errors.Errorf("unknown distance algorithm %q", name)
}

// GatingMode selects how per-source distances are reduced to the score
// that must clear a work set's threshold.
type GatingMode uint8

// The supported gating modes
const (
	// GatingPerSource requires every distance to clear the threshold
	GatingPerSource GatingMode = iota
	// GatingAggregate requires the mean distance to clear the threshold
	GatingAggregate
)

var gatingModeNames = map[GatingMode]string{
	GatingPerSource: "pertarget",
	GatingAggregate: "aggregate",
}

func (g GatingMode) String() string {
	name, ok := gatingModeNames[g]
	if !ok {
		return "unknown"
	}
	return name
}

// ParseGatingMode returns the gating mode with the given name
func ParseGatingMode(name string) (GatingMode, error) {
	for mode, modeName := range gatingModeNames {
		if modeName == name {
			return mode, nil
		}
	}
	return 0, errors.Errorf("unknown gating mode %q", name)
}
