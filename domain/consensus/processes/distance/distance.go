// Package distance scores nonce digests against reference digests.
package distance

import (
	"math"

	"github.com/anchorchain/anchord/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
	"github.com/xrash/smetrics"
	"gonum.org/v1/gonum/floats"
)

// ChunkSize is the number of characters compared as one vector by Cosine
const ChunkSize = 32

const (
	jaroWinklerBoostThreshold = 0.7
	jaroWinklerPrefixSize     = 4
)

// ErrUndefined is returned for inputs the metrics are not defined over
var ErrUndefined = errors.New("distance is undefined")

func checkInputs(a, b string) error {
	if len(a) == 0 || len(b) == 0 {
		return errors.Wrap(ErrUndefined, "empty input")
	}
	if len(a) != len(b) {
		return errors.Wrapf(ErrUndefined, "inputs of unequal length %d and %d", len(a), len(b))
	}
	return nil
}

// Cosine splits both strings into chunks of ChunkSize characters, takes
// the cosine similarity of the character codes of each pair of chunks and
// returns one minus the mean similarity.
func Cosine(a, b string) (float64, error) {
	err := checkInputs(a, b)
	if err != nil {
		return 0, err
	}
	if a == b {
		return 0, nil
	}

	var totalSimilarity float64
	chunks := 0
	for start := 0; start < len(a); start += ChunkSize {
		end := min(start+ChunkSize, len(a))
		totalSimilarity += chunkSimilarity(a[start:end], b[start:end])
		chunks++
	}
	return clamp(1 - totalSimilarity/float64(chunks)), nil
}

func chunkSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	x, y := codes(a), codes(b)
	xNorm, yNorm := floats.Norm(x, 2), floats.Norm(y, 2)
	if xNorm == 0 || yNorm == 0 {
		return 0
	}
	return floats.Dot(x, y) / (xNorm * yNorm)
}

func codes(s string) []float64 {
	codes := make([]float64, len(s))
	for i := 0; i < len(s); i++ {
		codes[i] = float64(s[i])
	}
	return codes
}

// JaroWinkler returns one minus the Jaro-Winkler similarity of a and b
func JaroWinkler(a, b string) (float64, error) {
	err := checkInputs(a, b)
	if err != nil {
		return 0, err
	}
	if a == b {
		return 0, nil
	}
	return clamp(1 - smetrics.JaroWinkler(a, b, jaroWinklerBoostThreshold, jaroWinklerPrefixSize)), nil
}

// Distance computes the distance between a and b with the given algorithm
func Distance(algorithm externalapi.DistanceAlgorithm, a, b string) (float64, error) {
	switch algorithm {
	case externalapi.DistanceAlgorithmCosine:
		return Cosine(a, b)
	case externalapi.DistanceAlgorithmJaroWinkler:
		return JaroWinkler(a, b)
	}
	return 0, errors.Errorf("unknown distance algorithm %d", algorithm)
}

// ToFixed converts a distance in [0,1] to parts per billion. Out of
// range values are clamped.
func ToFixed(distance float64) uint64 {
	if math.IsNaN(distance) {
		return 0
	}
	return uint64(math.Floor(clamp(distance) * float64(externalapi.MaxDistance)))
}

func clamp(distance float64) float64 {
	switch {
	case distance < 0 || math.IsNaN(distance):
		return 0
	case distance > 1:
		return 1
	}
	return distance
}
