package elgamal

import "errors"

var (
	// ErrInvalidCurveType is returned when a curve identifier is not supported.
	ErrInvalidCurveType = errors.New("invalid curve type")
	// ErrEntropyFailure is returned when the randomness source cannot provide
	// a scalar. Callers must treat it as fatal and never retry.
	ErrEntropyFailure = errors.New("entropy source failure")
	// ErrMalformedKey is returned when a public or private key cannot be
	// parsed or does not belong to the expected curve.
	ErrMalformedKey = errors.New("malformed key")
	// ErrMalformedCiphertext is returned when a serialized ciphertext does not
	// decode to two valid curve points.
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
	// ErrPlaintextOutOfRange is returned when a decrypted point does not map
	// to any candidate of the table.
	ErrPlaintextOutOfRange = errors.New("plaintext out of candidate range")
	// ErrInvalidCandidateCount is returned when the number of candidates is
	// outside [1, MaxCandidates].
	ErrInvalidCandidateCount = errors.New("invalid candidate count")
	// ErrInvalidProof is returned when a decryption proof does not verify.
	ErrInvalidProof = errors.New("invalid decryption proof")
)
