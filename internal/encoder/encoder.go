// Package encoder turns samples into the bytes written to the broadcast peer.
// Encoders are pure and deterministic: the same input always yields the same
// bytes, and no input makes them panic.
package encoder

import (
	"errors"
	"fmt"

	"github.com/uell/livelink/pkg/core"
)

// ErrUnknownEncoding is returned by New for unsupported encoding names.
var ErrUnknownEncoding = errors.New("unknown encoding")

// Encoder serializes one entity sample.
type Encoder interface {
	Encode(subject string, s core.Sample) []byte
	Name() string
}

// New returns the encoder registered under name.
func New(name string) (Encoder, error) {
	switch name {
	case "", LineName:
		return Line{}, nil
	case BinaryName:
		return Binary{}, nil
	case JSONName:
		return JSON{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}
}
