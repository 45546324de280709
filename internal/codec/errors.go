// internal/codec/errors.go
package codec

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedDatatype  = errors.New("codec: unsupported datatype")
	ErrUnsupportedByteOrder = errors.New("codec: unsupported byte order")
)

// WordCountError reports a word sequence whose length does not match the
// datatype's register footprint.
type WordCountError struct {
	Datatype Datatype
	Want     int
	Got      int
}

func (e *WordCountError) Error() string {
	return fmt.Sprintf("codec: %s needs %d words, got %d", e.Datatype, e.Want, e.Got)
}

// RangeError reports a value that cannot be represented in the target
// width and signedness.
type RangeError struct {
	Datatype Datatype
	Value    any
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("codec: value %v not representable as %s", e.Value, e.Datatype)
}
