package storage

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/vocdoni/davinci-ballotbox/log"
)

// ArtifactEncoding selects the serialization of stored artifacts.
type ArtifactEncoding int

const (
	// ArtifactEncodingCBOR is the deterministic CBOR encoding, used by
	// default.
	ArtifactEncodingCBOR ArtifactEncoding = iota
	// ArtifactEncodingJSON is the JSON encoding.
	ArtifactEncodingJSON
)

// String implements fmt.Stringer.
func (e ArtifactEncoding) String() string {
	switch e {
	case ArtifactEncodingCBOR:
		return "cbor"
	case ArtifactEncodingJSON:
		return "json"
	default:
		return fmt.Sprintf("unknown(%d)", int(e))
	}
}

var cborEncMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// EncodeArtifact encodes an artifact with the given encoding, CBOR if none
// is specified. A JSON failure falls back to CBOR.
func EncodeArtifact(a any, encoding ...ArtifactEncoding) ([]byte, error) {
	enc := ArtifactEncodingCBOR
	if len(encoding) > 0 {
		enc = encoding[0]
	}
	switch enc {
	case ArtifactEncodingCBOR:
		return cborEncMode.Marshal(a)
	case ArtifactEncodingJSON:
		data, err := json.Marshal(a)
		if err != nil {
			log.Warnw("falling back to CBOR encoding", "error", err.Error())
			return cborEncMode.Marshal(a)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unknown artifact encoding: %s", enc)
	}
}

// DecodeArtifact decodes data into out with the given encoding, CBOR if none
// is specified. A JSON failure falls back to CBOR, which mirrors
// EncodeArtifact.
func DecodeArtifact(data []byte, out any, encoding ...ArtifactEncoding) error {
	enc := ArtifactEncodingCBOR
	if len(encoding) > 0 {
		enc = encoding[0]
	}
	switch enc {
	case ArtifactEncodingCBOR:
		return cbor.Unmarshal(data, out)
	case ArtifactEncodingJSON:
		if err := json.Unmarshal(data, out); err != nil {
			log.Debugw("falling back to CBOR decoding", "error", err.Error())
			return cbor.Unmarshal(data, out)
		}
		return nil
	default:
		return fmt.Errorf("unknown artifact encoding: %s", enc)
	}
}
