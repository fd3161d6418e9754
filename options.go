package dbf

import (
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// TrimOption selects how Character values are trimmed when decoded.
type TrimOption int

const (
	TrimEnd TrimOption = iota
	TrimBoth
	TrimNone
)

// ParseTrimOption accepts "end", "both" and "none".
func ParseTrimOption(s string) (TrimOption, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "end", "trailing":
		return TrimEnd, nil
	case "both", "begin_end":
		return TrimBoth, nil
	case "none":
		return TrimNone, nil
	}
	return TrimEnd, errors.Errorf("unknown trim option %q", s)
}

func (t TrimOption) String() string {
	switch t {
	case TrimBoth:
		return "both"
	case TrimNone:
		return "none"
	default:
		return "end"
	}
}

// Options represents the options that can be set when opening or creating a table.
type Options struct {
	// Trim controls whitespace removal on Character values.
	Trim TrimOption

	// Encoding overrides the codepage mark of the header. When nil the
	// encoding is derived from the header.
	Encoding Encoding

	// Strict rejects tables whose record counter disagrees with the file
	// length and aborts a record on the first undecodable field. When false
	// the file length is trusted and bad fields are returned as absent.
	Strict bool

	// Logger receives warnings about tolerated quirks. Defaults to the
	// logrus standard logger.
	Logger log.FieldLogger
}

// DefaultOptions returns lenient options with trailing-space trimming.
func DefaultOptions() *Options {
	return &Options{
		Trim:   TrimEnd,
		Logger: log.StandardLogger(),
	}
}

func (o *Options) withDefaults() *Options {
	if o == nil {
		return DefaultOptions()
	}
	c := *o
	if c.Logger == nil {
		c.Logger = log.StandardLogger()
	}
	return &c
}
