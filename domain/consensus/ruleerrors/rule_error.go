package ruleerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// These constants are used to identify a specific RuleError.
var (
	// ErrValidation indicates a malformed record or value, or one that is
	// missing a required field.
	ErrValidation = newRuleError("ErrValidation")

	// ErrStaleWork indicates a candidate or metric that refers to a work
	// set which has since been superseded.
	ErrStaleWork = newRuleError("ErrStaleWork")

	// ErrUnknownPrevHash indicates a candidate whose previous hash doesn't
	// resolve to an entry one height below its target height.
	ErrUnknownPrevHash = newRuleError("ErrUnknownPrevHash")

	// ErrDuplicateEntry indicates a candidate whose block hash is already
	// known with a different payload.
	ErrDuplicateEntry = newRuleError("ErrDuplicateEntry")

	// ErrDistanceBelowThreshold indicates a candidate whose recomputed
	// distances don't clear its work set's threshold.
	ErrDistanceBelowThreshold = newRuleError("ErrDistanceBelowThreshold")

	// ErrBadBlockHash indicates a candidate whose block hash doesn't match
	// the hash recomputed from its work set and nonce.
	ErrBadBlockHash = newRuleError("ErrBadBlockHash")

	// ErrArithmetic indicates a difficulty computation over invalid inputs.
	// It is never propagated past the difficulty engine.
	ErrArithmetic = newRuleError("ErrArithmetic")
)

// RuleError identifies a rule violation. It is used to indicate that
// processing of a record or candidate failed due to one of the many
// validation rules. The caller can use errors.As or errors.Is to
// determine if a failure was specifically due to a rule violation.
type RuleError struct {
	message string
	inner   error
}

// Error satisfies the error interface and prints human-readable errors.
func (e RuleError) Error() string {
	if e.inner != nil {
		return e.message + ": " + e.inner.Error()
	}
	return e.message
}

// Unwrap satisfies the errors.Unwrap interface
func (e RuleError) Unwrap() error {
	return e.inner
}

// Cause satisfies the github.com/pkg/errors.Cause interface
func (e RuleError) Cause() error {
	return e.inner
}

// Is reports whether target is the sentinel RuleError of the same kind,
// so that errors.Is(err, ErrStaleWork) holds for detailed errors too.
func (e RuleError) Is(target error) bool {
	var targetRuleError RuleError
	if !errors.As(target, &targetRuleError) {
		return false
	}
	return targetRuleError.inner == nil && targetRuleError.message == e.message
}

func newRuleError(message string) RuleError {
	return RuleError{message: message, inner: nil}
}

// NewErrValidation creates a new ErrValidation error carrying the
// formatted detail.
func NewErrValidation(format string, args ...interface{}) error {
	return errors.WithStack(RuleError{
		message: "ErrValidation",
		inner:   errors.Errorf(format, args...),
	})
}

// ErrStaleWorkSet indicates a message produced for a work set that is no
// longer the current one.
type ErrStaleWorkSet struct {
	WorkSetID        uint64
	CurrentWorkSetID uint64
}

func (e ErrStaleWorkSet) Error() string {
	return fmt.Sprintf("work set %d was superseded by work set %d", e.WorkSetID, e.CurrentWorkSetID)
}

// NewErrStaleWork creates a new ErrStaleWorkSet error wrapped in a RuleError
func NewErrStaleWork(workSetID, currentWorkSetID uint64) error {
	return errors.WithStack(RuleError{
		message: "ErrStaleWork",
		inner:   ErrStaleWorkSet{WorkSetID: workSetID, CurrentWorkSetID: currentWorkSetID},
	})
}

// ErrMissingPrevHash indicates a candidate points to an unknown previous entry.
type ErrMissingPrevHash struct {
	PrevHash     string
	TargetHeight uint64
}

func (e ErrMissingPrevHash) Error() string {
	return fmt.Sprintf("no entry %s at height %d to extend at height %d",
		e.PrevHash, e.TargetHeight-1, e.TargetHeight)
}

// NewErrUnknownPrevHash creates a new ErrMissingPrevHash error wrapped in a RuleError
func NewErrUnknownPrevHash(prevHash string, targetHeight uint64) error {
	return errors.WithStack(RuleError{
		message: "ErrUnknownPrevHash",
		inner:   ErrMissingPrevHash{PrevHash: prevHash, TargetHeight: targetHeight},
	})
}

// ErrConflictingEntry indicates two different payloads were submitted
// under the same block hash.
type ErrConflictingEntry struct {
	BlockHash string
	Height    uint64
}

func (e ErrConflictingEntry) Error() string {
	return fmt.Sprintf("entry %s at height %d is already known with a different payload",
		e.BlockHash, e.Height)
}

// NewErrDuplicateEntry creates a new ErrConflictingEntry error wrapped in a RuleError
func NewErrDuplicateEntry(blockHash string, height uint64) error {
	return errors.WithStack(RuleError{
		message: "ErrDuplicateEntry",
		inner:   ErrConflictingEntry{BlockHash: blockHash, Height: height},
	})
}

// ErrInsufficientDistance indicates a distance score that doesn't clear
// the required threshold. Both values are in parts per billion.
type ErrInsufficientDistance struct {
	Source    string
	Distance  uint64
	Threshold uint64
}

func (e ErrInsufficientDistance) Error() string {
	return fmt.Sprintf("distance %d of %s is below threshold %d", e.Distance, e.Source, e.Threshold)
}

// NewErrDistanceBelowThreshold creates a new ErrInsufficientDistance error wrapped in a RuleError
func NewErrDistanceBelowThreshold(source string, distance, threshold uint64) error {
	return errors.WithStack(RuleError{
		message: "ErrDistanceBelowThreshold",
		inner:   ErrInsufficientDistance{Source: source, Distance: distance, Threshold: threshold},
	})
}

// NewErrArithmetic creates a new ErrArithmetic error carrying the
// formatted detail.
func NewErrArithmetic(format string, args ...interface{}) error {
	return errors.WithStack(RuleError{
		message: "ErrArithmetic",
		inner:   errors.Errorf(format, args...),
	})
}
