package codec

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Word is one revealed 32-bit public value and its position.
type Word struct {
	Index uint32 `json:"index"`
	Value uint32 `json:"value"`
}

// Output is what a guest commits as its public values.
type Output struct {
	Format string        `json:"format"`
	Words  []Word        `json:"words,omitempty"`
	Data   hexutil.Bytes `json:"data,omitempty"`
}

// Bytes returns a stable byte form of o, used as the public values digest
// input.
func (o Output) Bytes() []byte {
	if len(o.Words) == 0 {
		return bytes.Clone(o.Data)
	}

	out := make([]byte, 0, len(o.Words)*8)
	for _, w := range o.Words {
		out = binary.BigEndian.AppendUint32(out, w.Index)
		out = binary.BigEndian.AppendUint32(out, w.Value)
	}

	return out
}

// OutputCodec is a convention for committing a value from inside a guest
// and reading it back on the host.
type OutputCodec interface {
	Name() string
	Commit(v any) (Output, error)
	Open(o Output, v any) error
}

func checkOutput(c OutputCodec, o Output) error {
	if o.Format != c.Name() {
		return fmt.Errorf("%w: output format %q, want %q", ErrEncoding, o.Format, c.Name())
	}

	return nil
}

// WordReveal publishes the canonical encoding as indexed 32-bit words. The
// host reassembles them in index order.
type WordReveal struct{}

func (WordReveal) Name() string { return "word-reveal" }

func (c WordReveal) Commit(v any) (Output, error) {
	b, err := Marshal(v)
	if err != nil {
		return Output{}, err
	}

	chunks := ChunkWords(b)
	words := make([]Word, len(chunks))
	for i, w := range chunks {
		words[i] = Word{Index: uint32(i), Value: w}
	}

	return Output{Format: c.Name(), Words: words}, nil
}

func (c WordReveal) Open(o Output, v any) error {
	if err := checkOutput(c, o); err != nil {
		return err
	}

	if len(o.Words) == 0 {
		return fmt.Errorf("%w: no revealed words", ErrEncoding)
	}

	words := make([]Word, len(o.Words))
	copy(words, o.Words)
	sort.Slice(words, func(i, j int) bool { return words[i].Index < words[j].Index })

	values := make([]uint32, len(words))
	for i, w := range words {
		if w.Index != uint32(i) {
			return fmt.Errorf("%w: word %d missing or duplicated", ErrEncoding, i)
		}
		values[i] = w.Value
	}

	raw, err := JoinWords(values, len(values)*WordSize)
	if err != nil {
		return err
	}

	n, err := ValueLen(raw)
	if err != nil {
		return err
	}

	pad := raw[n:]
	if len(pad) >= WordSize || len(bytes.Trim(pad, "\x00")) != 0 {
		return fmt.Errorf("%w: %d bytes of trailing data after value", ErrEncoding, len(pad))
	}

	return Unmarshal(raw[:n], v)
}

// ByteBuffer commits the canonical encoding as one contiguous buffer.
type ByteBuffer struct{}

func (ByteBuffer) Name() string { return "byte-buffer" }

func (c ByteBuffer) Commit(v any) (Output, error) {
	b, err := Marshal(v)
	if err != nil {
		return Output{}, err
	}

	return Output{Format: c.Name(), Data: b}, nil
}

func (c ByteBuffer) Open(o Output, v any) error {
	if err := checkOutput(c, o); err != nil {
		return err
	}

	return Unmarshal(o.Data, v)
}

// TypedRecord frames the canonical encoding with a little-endian u32 length.
type TypedRecord struct{}

// maxRecordLen is the largest body a record frame can describe.
var maxRecordLen uint64 = math.MaxUint32

func (TypedRecord) Name() string { return "typed-record" }

func (c TypedRecord) Commit(v any) (Output, error) {
	b, err := Marshal(v)
	if err != nil {
		return Output{}, err
	}

	if uint64(len(b)) > maxRecordLen {
		return Output{}, fmt.Errorf("%w: %d bytes do not fit a record frame", ErrEncoding, len(b))
	}

	data := binary.LittleEndian.AppendUint32(make([]byte, 0, 4+len(b)), uint32(len(b)))
	data = append(data, b...)

	return Output{Format: c.Name(), Data: data}, nil
}

func (c TypedRecord) Open(o Output, v any) error {
	if err := checkOutput(c, o); err != nil {
		return err
	}

	if len(o.Data) < 4 {
		return fmt.Errorf("%w: record shorter than its frame", ErrEncoding)
	}

	n := binary.LittleEndian.Uint32(o.Data)
	body := o.Data[4:]
	if uint64(n) != uint64(len(body)) {
		return fmt.Errorf("%w: record frame says %d bytes, got %d", ErrEncoding, n, len(body))
	}

	return Unmarshal(body, v)
}

// JSONOutput writes the committed value as a JSON document on the output
// tape.
type JSONOutput struct{}

func (JSONOutput) Name() string { return "json-tape" }

func (c JSONOutput) Commit(v any) (Output, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Output{}, fmt.Errorf("%w: marshal %T: %v", ErrEncoding, v, err)
	}

	return Output{Format: c.Name(), Data: b}, nil
}

func (c JSONOutput) Open(o Output, v any) error {
	if err := checkOutput(c, o); err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(o.Data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: unmarshal %T: %v", ErrEncoding, v, err)
	}

	// The tape holds exactly one document.
	if err := dec.Decode(&json.RawMessage{}); err != io.EOF {
		return fmt.Errorf("%w: trailing data after %T document", ErrEncoding, v)
	}

	return nil
}
