package ballot

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/vocdoni/davinci-ballotbox/types"
)

// ProofKind identifies the proof system of a ballot proof.
type ProofKind string

const (
	ProofKindNone    ProofKind = "none"
	ProofKindGroth16 ProofKind = "groth16"
	ProofKindPlonk   ProofKind = "plonk"
)

// Proof is the proof attached to an encrypted ballot. Proofs are produced by
// external zk-SNARK tooling and carried as-is; only their shape is checked.
// The concrete types are Groth16Proof, PlonkProof and NoProof.
type Proof interface {
	Kind() ProofKind
	Validate() error
}

// Groth16Proof is a Groth16 proof in the snarkjs JSON layout.
type Groth16Proof struct {
	PiA           []string   `json:"pi_a"                    cbor:"1,keyasint"`
	PiB           [][]string `json:"pi_b"                    cbor:"2,keyasint"`
	PiC           []string   `json:"pi_c"                    cbor:"3,keyasint"`
	Protocol      string     `json:"protocol,omitempty"      cbor:"4,keyasint,omitempty"`
	Curve         string     `json:"curve,omitempty"         cbor:"5,keyasint,omitempty"`
	PublicSignals []string   `json:"publicSignals,omitempty" cbor:"6,keyasint,omitempty"`
}

// Kind implements Proof.
func (*Groth16Proof) Kind() ProofKind { return ProofKindGroth16 }

// Validate checks the snarkjs layout: three projective coordinates for A and
// C, and three pairs for B.
func (p *Groth16Proof) Validate() error {
	if len(p.PiA) != 3 || len(p.PiC) != 3 {
		return fmt.Errorf("%w: groth16 pi_a and pi_c need 3 coordinates", ErrInvalidProofFormat)
	}
	if len(p.PiB) != 3 {
		return fmt.Errorf("%w: groth16 pi_b needs 3 coordinate pairs", ErrInvalidProofFormat)
	}
	for _, pair := range p.PiB {
		if len(pair) != 2 {
			return fmt.Errorf("%w: groth16 pi_b needs 3 coordinate pairs", ErrInvalidProofFormat)
		}
	}
	if p.Protocol != "" && p.Protocol != string(ProofKindGroth16) {
		return fmt.Errorf("%w: unexpected protocol %q", ErrInvalidProofFormat, p.Protocol)
	}
	return nil
}

// PlonkProof is a serialized PLONK proof with its public signals.
type PlonkProof struct {
	Data          types.HexBytes `json:"data"                    cbor:"1,keyasint"`
	PublicSignals []string       `json:"publicSignals,omitempty" cbor:"2,keyasint,omitempty"`
}

// Kind implements Proof.
func (*PlonkProof) Kind() ProofKind { return ProofKindPlonk }

// Validate checks that the proof carries data.
func (p *PlonkProof) Validate() error {
	if len(p.Data) == 0 {
		return fmt.Errorf("%w: empty plonk proof", ErrInvalidProofFormat)
	}
	return nil
}

// NoProof marks a ballot submitted without proof, for the non-anonymous
// ballot variants.
type NoProof struct{}

// Kind implements Proof.
func (NoProof) Kind() ProofKind { return ProofKindNone }

// Validate implements Proof.
func (NoProof) Validate() error { return nil }

// IsNoProof reports whether p is nil or a NoProof.
func IsNoProof(p Proof) bool {
	return p == nil || p.Kind() == ProofKindNone
}

type proofEnvelopeJSON struct {
	Type ProofKind       `json:"type"`
	Data json.RawMessage `json:"data"`
}

type proofEnvelopeCBOR struct {
	Type ProofKind       `cbor:"1,keyasint"`
	Data cbor.RawMessage `cbor:"2,keyasint"`
}

// MarshalProofJSON encodes a proof as {"type": kind, "data": proof}. It
// returns nil for NoProof, so that the field can be omitted.
func MarshalProofJSON(p Proof) (json.RawMessage, error) {
	if IsNoProof(p) {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(proofEnvelopeJSON{Type: p.Kind(), Data: data})
}

// UnmarshalProofJSON decodes the output of MarshalProofJSON. An empty or
// null input decodes to NoProof.
func UnmarshalProofJSON(raw json.RawMessage) (Proof, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return NoProof{}, nil
	}
	var env proofEnvelopeJSON
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProofFormat, err)
	}
	p, err := newProof(env.Type)
	if err != nil {
		return nil, err
	}
	if _, ok := p.(NoProof); ok {
		return p, nil
	}
	if err := json.Unmarshal(env.Data, p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProofFormat, err)
	}
	return p, nil
}

// MarshalProofCBOR encodes a proof inside a CBOR envelope. NoProof encodes
// to nil.
func MarshalProofCBOR(p Proof) (cbor.RawMessage, error) {
	if IsNoProof(p) {
		return nil, nil
	}
	data, err := cbor.Marshal(p)
	if err != nil {
		return nil, err
	}
	return cbor.Marshal(proofEnvelopeCBOR{Type: p.Kind(), Data: data})
}

// UnmarshalProofCBOR decodes the output of MarshalProofCBOR.
func UnmarshalProofCBOR(raw cbor.RawMessage) (Proof, error) {
	if len(raw) == 0 {
		return NoProof{}, nil
	}
	var env proofEnvelopeCBOR
	if err := cbor.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProofFormat, err)
	}
	p, err := newProof(env.Type)
	if err != nil {
		return nil, err
	}
	if _, ok := p.(NoProof); ok {
		return p, nil
	}
	if err := cbor.Unmarshal(env.Data, p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProofFormat, err)
	}
	return p, nil
}

func newProof(kind ProofKind) (Proof, error) {
	switch kind {
	case ProofKindGroth16:
		return &Groth16Proof{}, nil
	case ProofKindPlonk:
		return &PlonkProof{}, nil
	case ProofKindNone, "":
		return NoProof{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProofType, kind)
	}
}
