package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var (
	// ErrUnknownKind is returned for envelopes whose kind is not recognized.
	ErrUnknownKind = errors.New("wire: unknown frame kind")

	// ErrMalformed is returned for envelopes that cannot be decoded.
	ErrMalformed = errors.New("wire: malformed frame")
)

// Codec marshals frames to and from their envelope encoding.
type Codec interface {
	Name() string
	Marshal(f Frame) ([]byte, error)
	Unmarshal(b []byte) (Frame, error)
}

var (
	JSON Codec = jsonCodec{}
	CBOR Codec = cborCodec{}
)

// ParseCodec maps a configured codec name to a Codec. The empty string
// selects JSON.
func ParseCodec(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSON, nil
	case "cbor":
		return CBOR, nil
	default:
		return nil, fmt.Errorf("wire: unknown codec %q", name)
	}
}

type jsonEnvelope struct {
	Kind Kind            `json:"kind"`
	Body json.RawMessage `json:"body"`
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(f Frame) ([]byte, error) {
	body, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return json.Marshal(jsonEnvelope{Kind: f.Kind(), Body: body})
}

func (jsonCodec) Unmarshal(b []byte) (Frame, error) {
	var env jsonEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	v, ok := newFrame(env.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}
	if len(env.Body) == 0 || bytes.Equal(env.Body, []byte("null")) {
		return nil, fmt.Errorf("%w: %s frame without body", ErrMalformed, env.Kind)
	}
	if err := json.Unmarshal(env.Body, v); err != nil {
		return nil, fmt.Errorf("%w: %s body: %v", ErrMalformed, env.Kind, err)
	}
	return deref(v), nil
}

type cborEnvelope struct {
	Kind Kind            `cbor:"kind"`
	Body cbor.RawMessage `cbor:"body"`
}

type cborCodec struct{}

func (cborCodec) Name() string { return "cbor" }

func (cborCodec) Marshal(f Frame) ([]byte, error) {
	body, err := cbor.Marshal(f)
	if err != nil {
		return nil, err
	}
	return cbor.Marshal(cborEnvelope{Kind: f.Kind(), Body: body})
}

func (cborCodec) Unmarshal(b []byte) (Frame, error) {
	var env cborEnvelope
	if err := cbor.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	v, ok := newFrame(env.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}
	// 0xf6 is CBOR null.
	if len(env.Body) == 0 || bytes.Equal(env.Body, []byte{0xf6}) {
		return nil, fmt.Errorf("%w: %s frame without body", ErrMalformed, env.Kind)
	}
	if err := cbor.Unmarshal(env.Body, v); err != nil {
		return nil, fmt.Errorf("%w: %s body: %v", ErrMalformed, env.Kind, err)
	}
	return deref(v), nil
}
