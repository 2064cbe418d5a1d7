package types

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// HexBytes is a []byte which encodes as hexadecimal in json, as opposed to the
// base64 default. The encoding carries no "0x" prefix, but one is accepted
// when decoding.
type HexBytes []byte

// Hex returns the hexadecimal string representation of the HexBytes.
func (b HexBytes) Hex() string {
	return hex.EncodeToString(b)
}

// String returns the hexadecimal string representation of the HexBytes.
func (b HexBytes) String() string {
	return b.Hex()
}

// Bytes returns the underlying byte slice of the HexBytes.
func (b HexBytes) Bytes() []byte {
	return b
}

// LeftPad returns a new HexBytes padded with leading zeros to the specified
// length n. If the length of b is already n or greater, it returns a copy of b.
func (b HexBytes) LeftPad(n int) HexBytes {
	if len(b) >= n {
		return bytes.Clone(b)
	}
	out := make(HexBytes, n)
	copy(out[n-len(b):], b)
	return out
}

// Equal reports whether both byte slices hold the same content.
func (b HexBytes) Equal(other HexBytes) bool {
	return bytes.Equal(b, other)
}

// MarshalText implements encoding.TextMarshaler, so HexBytes can also be used
// as a JSON map key.
func (b HexBytes) MarshalText() ([]byte, error) {
	enc := make([]byte, hex.EncodedLen(len(b)))
	hex.Encode(enc, b)
	return enc, nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It expects a hexadecimal
// string, optionally prefixed with "0x".
func (b *HexBytes) UnmarshalText(data []byte) error {
	dec, err := HexStringToHexBytes(string(data))
	if err != nil {
		return err
	}
	*b = dec
	return nil
}

// HexStringToHexBytes converts a hex string to a HexBytes. Leading and
// trailing whitespace and a "0x" prefix are ignored.
func HexStringToHexBytes(hexString string) (HexBytes, error) {
	hexString = TrimHex(strings.TrimSpace(hexString))
	b, err := hex.DecodeString(hexString)
	if err != nil {
		return nil, fmt.Errorf("invalid hex string %q: %w", hexString, err)
	}
	return b, nil
}

// HexOrBase64ToHexBytes decodes s as hexadecimal and, if that fails, as
// standard base64. Hex wins when the input is valid in both alphabets.
func HexOrBase64ToHexBytes(s string) (HexBytes, error) {
	if b, err := HexStringToHexBytes(s); err == nil {
		return b, nil
	}
	b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid hex or base64 string: %w", err)
	}
	return b, nil
}

// TrimHex trims the '0x' prefix from a hex string.
func TrimHex(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
