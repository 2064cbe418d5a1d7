//nolint:lll
package api

import (
	"fmt"
	"net/http"
)

// The custom Error type satisfies the error interface.
// Error() returns a human-readable description of the error.
//
// Error codes in the 40001-49999 range are the user's fault,
// and they return HTTP Status 400, 404 or 409, whatever is most appropriate.
//
// Error codes 50001-59999 are the server's fault
// and they return HTTP Status 500 or 503, or something else if appropriate.
//
// NEVER change any of the current error codes, only append new errors after the current last 4XXX or 5XXX.
// If there is a gap in the list, don't fill it: that code was used in the past and shouldn't be reused.
// There's no correlation between Code and HTTP Status.
var (
	ErrResourceNotFound            = Error{Code: 40001, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}
	ErrMalformedBody               = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrMalformedElectionID         = Error{Code: 40006, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed election ID")}
	ErrElectionNotFound            = Error{Code: 40007, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("election not found")}
	ErrInvalidBallotProof          = Error{Code: 40009, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid ballot proof")}
	ErrMalformedParam              = Error{Code: 40015, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed parameter")}
	ErrBallotAlreadySubmitted      = Error{Code: 40018, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("ballot already submitted")}
	ErrElectionNotAcceptingBallots = Error{Code: 40020, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("election is not accepting ballots")}
	ErrInvalidCurve                = Error{Code: 40023, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid curve type")}
	ErrInvalidCandidateCount       = Error{Code: 40024, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid candidate count")}
	ErrInvalidChoice               = Error{Code: 40025, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid choice")}
	ErrInvalidBallot               = Error{Code: 40026, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid ballot")}
	ErrElectionAlreadyExists       = Error{Code: 40027, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("election already exists")}
	ErrResultsNotFound             = Error{Code: 40028, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("results not found")}
	ErrJobNotFound                 = Error{Code: 40029, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("job not found")}
	ErrInvalidEndTime              = Error{Code: 40030, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid end time")}
	ErrElectionNotClosed           = Error{Code: 40031, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("election is not closed yet")}
	ErrElectionKeyExists           = Error{Code: 40032, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("election key already exists")}

	ErrMarshalingServerJSONFailed  = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError  = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
	ErrKeyGenerationFailed         = Error{Code: 50003, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("key generation failed")}
	ErrEncryptionFailed            = Error{Code: 50004, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("ballot encryption failed")}
	ErrTallyUnavailable            = Error{Code: 50005, HTTPstatus: http.StatusServiceUnavailable, Err: fmt.Errorf("tally service unavailable")}
)
