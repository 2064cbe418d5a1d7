package storage

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/davinci-ballotbox/crypto/ecc/secp256k1"
	"github.com/vocdoni/davinci-ballotbox/types"
)

func TestEncodeDecodeArtifact(t *testing.T) {
	c := qt.New(t)
	artifact := &Election{
		ID:             42,
		CandidateCount: 3,
		Curve:          secp256k1.CurveType,
		PublicKey:      types.HexBytes{0x02, 0xaa, 0xbb},
		CreatedAt:      1700000000,
		EndTime:        1700003600,
		Status:         ElectionStatusOpen,
	}

	for _, enc := range []ArtifactEncoding{ArtifactEncodingCBOR, ArtifactEncodingJSON} {
		c.Run(enc.String(), func(c *qt.C) {
			encoded, err := EncodeArtifact(artifact, enc)
			c.Assert(err, qt.IsNil)
			decoded := new(Election)
			c.Assert(DecodeArtifact(encoded, decoded, enc), qt.IsNil)
			c.Assert(decoded, qt.DeepEquals, artifact)
		})
	}

	c.Run("default is cbor", func(c *qt.C) {
		def, err := EncodeArtifact(artifact)
		c.Assert(err, qt.IsNil)
		explicit, err := EncodeArtifact(artifact, ArtifactEncodingCBOR)
		c.Assert(err, qt.IsNil)
		c.Assert(def, qt.DeepEquals, explicit)
	})

	c.Run("json decoder reads cbor", func(c *qt.C) {
		encoded, err := EncodeArtifact(artifact)
		c.Assert(err, qt.IsNil)
		decoded := new(Election)
		c.Assert(DecodeArtifact(encoded, decoded, ArtifactEncodingJSON), qt.IsNil)
		c.Assert(decoded, qt.DeepEquals, artifact)
	})

	c.Run("invalid encoding", func(c *qt.C) {
		_, err := EncodeArtifact(artifact, ArtifactEncoding(100))
		c.Assert(err, qt.ErrorMatches, "unknown artifact encoding: unknown\\(100\\)")
		c.Assert(DecodeArtifact([]byte{0xa0}, new(Election), ArtifactEncoding(100)), qt.IsNotNil)
	})
}
