package decision

import (
	"errors"
	"strings"
)

// Failure classes surfaced by the pipeline. The HTTP layer maps them with
// errors.Is; request validation failures use policy.ErrInvalid instead.
var (
	ErrWeatherUnavailable = errors.New("weather forecast unavailable")
	ErrModelUnavailable   = errors.New("language model unavailable")
	ErrUpstreamParse      = errors.New("model reply could not be parsed")
	ErrPayout             = errors.New("claim payout failed")
	ErrTimeout            = errors.New("upstream call timed out")
)

// ParseError describes why a model reply was rejected. It matches
// ErrUpstreamParse under errors.Is.
type ParseError struct {
	// Missing lists the reply labels that could not be found.
	Missing []string
	// Reason is set when every label was present but a value was unusable.
	Reason string
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString(ErrUpstreamParse.Error())
	if len(e.Missing) > 0 {
		b.WriteString(": missing ")
		b.WriteString(strings.Join(e.Missing, ", "))
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

func (e *ParseError) Is(target error) bool {
	return target == ErrUpstreamParse
}
