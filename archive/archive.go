// Package archive builds the public record of a tallied election: its
// parameters, every encrypted ballot and the result. The record is content
// addressed, so anyone holding the CID can check the published bytes.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"github.com/vocdoni/davinci-ballotbox/ballot"
	"github.com/vocdoni/davinci-ballotbox/storage"
	"github.com/vocdoni/davinci-ballotbox/tally"
)

// ErrCIDMismatch is returned when an archive body does not hash to its CID.
var ErrCIDMismatch = errors.New("archive content does not match its CID")

// Archive is the published record of an election.
type Archive struct {
	Election *storage.Election         `json:"election"`
	Ballots  []*ballot.EncryptedBallot `json:"ballots"`
	Result   *tally.Result             `json:"result"`

	// CID is the CIDv1 of Body.
	CID cid.Cid `json:"-"`
	// Body is the JSON encoding of the archive.
	Body []byte `json:"-"`
}

// Exporter publishes archives.
type Exporter interface {
	// Export stores the archive and returns where it can be fetched.
	Export(ctx context.Context, a *Archive) (location string, err error)
}

// Build assembles the archive of an election and computes its CID.
func Build(e *storage.Election, ballots []*ballot.EncryptedBallot, res *tally.Result) (*Archive, error) {
	if e == nil || res == nil {
		return nil, fmt.Errorf("election and result are required")
	}
	if e.ID != res.ElectionID {
		return nil, fmt.Errorf("result of election %d does not belong to election %d", res.ElectionID, e.ID)
	}
	if ballots == nil {
		ballots = []*ballot.EncryptedBallot{}
	}
	a := &Archive{
		Election: e,
		Ballots:  ballots,
		Result:   res,
	}
	body, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode archive: %w", err)
	}
	id, err := ContentID(body)
	if err != nil {
		return nil, err
	}
	a.Body = body
	a.CID = id
	return a, nil
}

// Parse decodes an archive body and checks it against the expected CID.
func Parse(body []byte, expected cid.Cid) (*Archive, error) {
	id, err := ContentID(body)
	if err != nil {
		return nil, err
	}
	if !id.Equals(expected) {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrCIDMismatch, id, expected)
	}
	a := new(Archive)
	if err := json.Unmarshal(body, a); err != nil {
		return nil, fmt.Errorf("decode archive: %w", err)
	}
	a.Body = body
	a.CID = id
	return a, nil
}

// ContentID returns the CIDv1 (raw codec, sha2-256) of data.
func ContentID(data []byte) (cid.Cid, error) {
	digest, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, fmt.Errorf("hash archive: %w", err)
	}
	return cid.NewCidV1(cid.Raw, digest), nil
}

// FileName is the name under which exporters store an archive.
func (a *Archive) FileName() string {
	return a.CID.String() + ".json"
}
