package codec

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Input is what a host hands to a guest program: either one byte stream or
// a sequence of independent records.
type Input struct {
	Format  string          `json:"format"`
	Data    hexutil.Bytes   `json:"data,omitempty"`
	Records []hexutil.Bytes `json:"records,omitempty"`
}

// Size returns the number of input bytes.
func (in Input) Size() int {
	n := len(in.Data)
	for _, r := range in.Records {
		n += len(r)
	}

	return n
}

// InputCodec is a convention for passing the network state followed by the
// batch header to a guest program. Encode runs on the host, Split is what
// the guest's read primitive does.
type InputCodec interface {
	Name() string
	Encode(state, header any) (Input, error)
	Split(in Input) (state, header []byte, err error)
}

// DecodeInput reads the state and the header out of in, in that order.
func DecodeInput(c InputCodec, in Input, state, header any) error {
	if r, ok := c.(valueReader); ok {
		return r.Read(in, state, header)
	}

	s, h, err := c.Split(in)
	if err != nil {
		return err
	}

	if err := Unmarshal(s, state); err != nil {
		return fmt.Errorf("read state: %w", err)
	}

	if err := Unmarshal(h, header); err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	return nil
}

// valueReader is implemented by conventions whose guest decodes values
// straight off the stream instead of splitting it first.
type valueReader interface {
	Read(in Input, state, header any) error
}

func marshalPair(state, header any) ([]byte, []byte, error) {
	s, err := Marshal(state)
	if err != nil {
		return nil, nil, err
	}

	h, err := Marshal(header)
	if err != nil {
		return nil, nil, err
	}

	return s, h, nil
}

func checkFormat(c InputCodec, in Input) error {
	if in.Format != c.Name() {
		return fmt.Errorf("%w: input format %q, want %q", ErrEncoding, in.Format, c.Name())
	}

	return nil
}

// Concat serializes the state and the header back to back into one byte
// stream. The reader finds the header where decoding the state stopped.
type Concat struct{}

func (Concat) Name() string { return "concat" }

func (c Concat) Encode(state, header any) (Input, error) {
	s, h, err := marshalPair(state, header)
	if err != nil {
		return Input{}, err
	}

	data := make([]byte, 0, len(s)+len(h))
	data = append(data, s...)
	data = append(data, h...)

	return Input{Format: c.Name(), Data: data}, nil
}

func (c Concat) Split(in Input) ([]byte, []byte, error) {
	if err := checkFormat(c, in); err != nil {
		return nil, nil, err
	}

	offset, err := ValueLen(in.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("read state: %w", err)
	}

	rest := in.Data[offset:]

	n, err := ValueLen(rest)
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	if n != len(rest) {
		return nil, nil, fmt.Errorf("%w: %d trailing bytes after header",
			ErrEncoding, len(rest)-n)
	}

	return in.Data[:offset], rest, nil
}

// Read decodes the state, then the header from where the state ended.
func (c Concat) Read(in Input, state, header any) error {
	if err := checkFormat(c, in); err != nil {
		return err
	}

	offset, err := UnmarshalPrefix(in.Data, state)
	if err != nil {
		return fmt.Errorf("read state: %w", err)
	}

	rest := in.Data[offset:]

	n, err := UnmarshalPrefix(rest, header)
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if n != len(rest) {
		return fmt.Errorf("%w: %d trailing bytes after header", ErrEncoding, len(rest)-n)
	}

	return nil
}

// Records writes the state and the header as two independent records that
// the guest reads back with two typed reads.
type Records struct{}

func (Records) Name() string { return "records" }

func (c Records) Encode(state, header any) (Input, error) {
	s, h, err := marshalPair(state, header)
	if err != nil {
		return Input{}, err
	}

	return Input{Format: c.Name(), Records: []hexutil.Bytes{s, h}}, nil
}

func (c Records) Split(in Input) ([]byte, []byte, error) {
	if err := checkFormat(c, in); err != nil {
		return nil, nil, err
	}

	if len(in.Records) != 2 {
		return nil, nil, fmt.Errorf("%w: %d records, want 2", ErrEncoding, len(in.Records))
	}

	return in.Records[0], in.Records[1], nil
}

// JSONTape writes a JSON document to the guest's input tape. The document
// carries the canonical encodings so the header bytes are the same as with
// every other convention.
type JSONTape struct{}

type tapeInput struct {
	InitialState     hexutil.Bytes `json:"initial_state"`
	MultiBatchHeader hexutil.Bytes `json:"multi_batch_header"`
}

func (JSONTape) Name() string { return "json-tape" }

func (c JSONTape) Encode(state, header any) (Input, error) {
	s, h, err := marshalPair(state, header)
	if err != nil {
		return Input{}, err
	}

	data, err := json.Marshal(tapeInput{InitialState: s, MultiBatchHeader: h})
	if err != nil {
		return Input{}, fmt.Errorf("%w: marshal tape: %v", ErrEncoding, err)
	}

	return Input{Format: c.Name(), Data: data}, nil
}

func (c JSONTape) Split(in Input) ([]byte, []byte, error) {
	if err := checkFormat(c, in); err != nil {
		return nil, nil, err
	}

	var tape tapeInput
	if err := json.Unmarshal(in.Data, &tape); err != nil {
		return nil, nil, fmt.Errorf("%w: parse tape: %v", ErrEncoding, err)
	}

	if len(tape.InitialState) == 0 || len(tape.MultiBatchHeader) == 0 {
		return nil, nil, fmt.Errorf("%w: tape misses state or header", ErrEncoding)
	}

	return tape.InitialState, tape.MultiBatchHeader, nil
}
