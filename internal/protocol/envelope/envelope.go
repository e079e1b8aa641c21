package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/jsonc"

	"github.com/danmuck/cadview/internal/protocol"
)

const (
	DefaultMarker   = "D:"
	DefaultMaxBytes = 256 * 1024 * 1024
)

// Options configures envelope repair and parsing.
type Options struct {
	// Marker is stripped when the message starts with it exactly.
	Marker string
	// Lenient strips comments and trailing commas before parsing.
	Lenient bool
	// MaxBytes bounds the raw message size; zero disables the check.
	MaxBytes int
}

func DefaultOptions() Options {
	return Options{
		Marker:   DefaultMarker,
		Lenient:  true,
		MaxBytes: DefaultMaxBytes,
	}
}

// Parser turns raw runtime output into a wire envelope.
type Parser struct {
	opts Options
}

func NewParser(opts Options) *Parser {
	return &Parser{opts: opts}
}

// Repair strips the marker and restores a missing opening brace.
func (p *Parser) Repair(raw string) string {
	if p.opts.Marker != "" && strings.HasPrefix(raw, p.opts.Marker) {
		raw = raw[len(p.opts.Marker):]
	}
	if !strings.HasPrefix(raw, "{") {
		raw = "{" + raw
	}
	return raw
}

// Parse repairs and parses raw. Every failure is an *protocol.EnvelopeParseError.
func (p *Parser) Parse(raw string) (*protocol.Envelope, error) {
	if p.opts.MaxBytes > 0 && len(raw) > p.opts.MaxBytes {
		return nil, &protocol.EnvelopeParseError{
			Stage: protocol.StageLimit,
			Err:   fmt.Errorf("%w: %d > %d", protocol.ErrEnvelopeTooLarge, len(raw), p.opts.MaxBytes),
		}
	}

	text := []byte(p.Repair(raw))
	if p.opts.Lenient {
		text = jsonc.ToJSON(text)
	}

	var env protocol.Envelope
	if err := json.Unmarshal(text, &env); err != nil {
		perr := &protocol.EnvelopeParseError{Stage: protocol.StageJSON, Err: err}
		var syntax *json.SyntaxError
		var typed *json.UnmarshalTypeError
		switch {
		case errors.As(err, &syntax):
			perr.Offset = syntax.Offset
		case errors.As(err, &typed):
			perr.Offset = typed.Offset
		}
		log.Warn().Err(perr).Int("bytes", len(raw)).Msg("envelope.Parser.Parse rejected")
		return nil, perr
	}
	if env.Data == nil {
		return nil, &protocol.EnvelopeParseError{Stage: protocol.StageShape, Err: protocol.ErrMissingData}
	}
	if env.Data.Shapes == nil {
		return nil, &protocol.EnvelopeParseError{Stage: protocol.StageShape, Err: protocol.ErrMissingShapes}
	}

	log.Debug().
		Int("bytes", len(raw)).
		Int("instances", len(env.Data.Instances)).
		Msg("envelope.Parser.Parse ok")
	return &env, nil
}
