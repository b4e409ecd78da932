// Package codec holds the canonical wire encoding shared by every backend
// and the per-backend conventions for moving values into and out of a
// guest program.
//
// The canonical encoding is RLP. RLP items are self-delimiting, so a decoder
// always knows how many bytes a value occupied; this is what lets the
// concatenated input convention work without explicit length prefixes.
package codec

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// ErrEncoding is wrapped by every serialization error.
var ErrEncoding = errors.New("codec: encoding mismatch")

// Marshal returns the canonical encoding of v.
func Marshal(v any) ([]byte, error) {
	b, err := rlp.EncodeToBytes(v)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal %T: %v", ErrEncoding, v, err)
	}

	return b, nil
}

// Unmarshal decodes exactly one value from b into v.
func Unmarshal(b []byte, v any) error {
	if err := rlp.DecodeBytes(b, v); err != nil {
		return fmt.Errorf("%w: unmarshal %T: %v", ErrEncoding, v, err)
	}

	return nil
}

// UnmarshalPrefix decodes the value at the start of b into v and returns
// the number of bytes it occupied.
func UnmarshalPrefix(b []byte, v any) (int, error) {
	n, err := ValueLen(b)
	if err != nil {
		return 0, err
	}

	if err := Unmarshal(b[:n], v); err != nil {
		return 0, err
	}

	return n, nil
}

// ValueLen returns the length of the encoded value at the start of b.
func ValueLen(b []byte) (int, error) {
	_, _, rest, err := rlp.Split(b)
	if err != nil {
		return 0, fmt.Errorf("%w: split value: %v", ErrEncoding, err)
	}

	return len(b) - len(rest), nil
}
