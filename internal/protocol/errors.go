package protocol

import (
	"errors"
	"fmt"
)

// Sentinels matched by errors.Is against the typed errors below.
var (
	ErrEnvelope     = errors.New("protocol: envelope parse error")
	ErrBufferDecode = errors.New("protocol: buffer decode error")
	ErrReference    = errors.New("protocol: reference error")
)

// Causes carried inside the typed errors.
var (
	ErrUnknownCodec     = errors.New("protocol: unknown codec")
	ErrUnknownDType     = errors.New("protocol: unknown dtype")
	ErrLaneAlignment    = errors.New("protocol: byte length not a multiple of the lane size")
	ErrMalformedChannel = errors.New("protocol: malformed channel value")
	ErrEnvelopeTooLarge = errors.New("protocol: envelope exceeds size limit")
	ErrMissingData      = errors.New("protocol: envelope missing data")
	ErrMissingShapes    = errors.New("protocol: envelope missing data.shapes")
	ErrRefOutOfRange    = errors.New("protocol: reference index out of range")
	ErrRefMalformed     = errors.New("protocol: malformed reference")
	ErrRefNotAllowed    = errors.New("protocol: reference on non-shapes node")
	ErrMalformedNode    = errors.New("protocol: malformed scene node")
)

// ParseStage names where envelope parsing failed.
type ParseStage string

const (
	StageLimit ParseStage = "limit"
	StageJSON  ParseStage = "json"
	StageShape ParseStage = "shape"
)

// EnvelopeParseError aborts a whole scene update.
type EnvelopeParseError struct {
	Stage  ParseStage
	Offset int64
	Err    error
}

func (e *EnvelopeParseError) Error() string {
	if e.Offset > 0 {
		return fmt.Sprintf("protocol: envelope %s: offset=%d: %v", e.Stage, e.Offset, e.Err)
	}
	return fmt.Sprintf("protocol: envelope %s: %v", e.Stage, e.Err)
}

func (e *EnvelopeParseError) Unwrap() error { return e.Err }

func (e *EnvelopeParseError) Is(target error) bool { return target == ErrEnvelope }

// BufferDecodeError is local to one channel of one block.
type BufferDecodeError struct {
	Channel string
	Codec   Codec
	DType   DType
	Err     error
}

func (e *BufferDecodeError) Error() string {
	if e.Channel == "" {
		return fmt.Sprintf("protocol: buffer codec=%q dtype=%q: %v", e.Codec, e.DType, e.Err)
	}
	return fmt.Sprintf("protocol: buffer channel=%s codec=%q dtype=%q: %v", e.Channel, e.Codec, e.DType, e.Err)
}

func (e *BufferDecodeError) Unwrap() error { return e.Err }

func (e *BufferDecodeError) Is(target error) bool { return target == ErrBufferDecode }

// ReferenceError leaves the offending node without a shape.
type ReferenceError struct {
	Path  string
	Index int
	Len   int
	Err   error
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("protocol: reference path=%s index=%d instances=%d: %v", e.Path, e.Index, e.Len, e.Err)
}

func (e *ReferenceError) Unwrap() error { return e.Err }

func (e *ReferenceError) Is(target error) bool { return target == ErrReference }
