package codec

import (
	"encoding/binary"
	"fmt"
)

// WordSize is the number of bytes published per revealed word.
const WordSize = 4

// ChunkWords splits b into little-endian 32-bit words. The last word is
// zero padded when len(b) is not a multiple of WordSize.
func ChunkWords(b []byte) []uint32 {
	words := make([]uint32, 0, (len(b)+WordSize-1)/WordSize)

	for i := 0; i < len(b); i += WordSize {
		var chunk [WordSize]byte
		copy(chunk[:], b[i:])
		words = append(words, binary.LittleEndian.Uint32(chunk[:]))
	}

	return words
}

// JoinWords concatenates words back into bytes and truncates the result to
// n bytes.
func JoinWords(words []uint32, n int) ([]byte, error) {
	if n < 0 || n > len(words)*WordSize {
		return nil, fmt.Errorf("%w: %d bytes requested from %d words",
			ErrEncoding, n, len(words))
	}

	out := make([]byte, 0, len(words)*WordSize)
	for _, w := range words {
		out = binary.LittleEndian.AppendUint32(out, w)
	}

	return out[:n], nil
}
