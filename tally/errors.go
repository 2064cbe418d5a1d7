package tally

import (
	"errors"
	"fmt"

	"github.com/vocdoni/davinci-ballotbox/types"
)

var (
	// ErrDecryption is the error every per-ballot DecryptionError unwraps to.
	ErrDecryption = errors.New("ballot decryption failed")
	// ErrElectionMismatch is returned for a ballot cast for another election.
	ErrElectionMismatch = errors.New("ballot belongs to another election")
	// ErrResultMismatch is returned when a published result does not match
	// its decryption proofs.
	ErrResultMismatch = errors.New("result does not match decryption proofs")
)

// DecryptionError reports a ballot that could not be decrypted into a valid
// candidate. The ballot is left out of the count and the batch continues.
type DecryptionError struct {
	Index    int
	BallotID types.HexBytes
	Err      error
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("ballot %d (%s): %v", e.Index, e.BallotID.Hex(), e.Err)
}

// Unwrap makes both ErrDecryption and the underlying cause reachable with
// errors.Is.
func (e *DecryptionError) Unwrap() []error {
	return []error{ErrDecryption, e.Err}
}
