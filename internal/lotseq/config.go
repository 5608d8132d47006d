package lotseq

import (
	"fmt"
	"time"
)

// DateFormat selects the calendar-day encoding embedded in lot codes.
type DateFormat string

const (
	DateYYYYMMDD DateFormat = "YYYYMMDD"
	DateYYMMDD   DateFormat = "YYMMDD"
	DateMMDDYY   DateFormat = "MMDDYY"
)

func (f DateFormat) layout() (string, bool) {
	switch f {
	case DateYYYYMMDD:
		return "20060102", true
	case DateYYMMDD:
		return "060102", true
	case DateMMDDYY:
		return "010206", true
	}
	return "", false
}

// Config is the lot-code template. Zero-valued fields are filled from the
// built-in defaults, so a partially specified config is always usable.
type Config struct {
	Prefix         string     `yaml:"prefix" json:"prefix"`
	DateFormat     DateFormat `yaml:"date_format" json:"date_format"`
	SequenceLength int        `yaml:"sequence_length" json:"sequence_length"`
	Separator      string     `yaml:"separator" json:"separator"`
	IncludeShift   bool       `yaml:"include_shift" json:"include_shift"`
	CustomSuffix   string     `yaml:"custom_suffix" json:"custom_suffix"`
}

// DefaultConfig returns the built-in template used when callers omit fields.
func DefaultConfig() Config {
	return Config{
		Prefix:         "LOT",
		DateFormat:     DateYYYYMMDD,
		SequenceLength: 4,
		Separator:      "-",
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Prefix == "" {
		c.Prefix = def.Prefix
	}
	if c.DateFormat == "" {
		c.DateFormat = def.DateFormat
	}
	if c.SequenceLength == 0 {
		c.SequenceLength = def.SequenceLength
	}
	if c.Separator == "" {
		c.Separator = def.Separator
	}
	return c
}

// Validate rejects malformed templates. These are programmer errors and fail
// fast at mint time rather than degrading.
func (c Config) Validate() error {
	if _, ok := c.DateFormat.layout(); !ok {
		return fmt.Errorf("invalid lot config: unknown date format %q", c.DateFormat)
	}
	if c.SequenceLength < 1 || c.SequenceLength > 9 {
		return fmt.Errorf("invalid lot config: sequence length %d out of range [1,9]", c.SequenceLength)
	}
	return nil
}

func (c Config) formatDate(t time.Time) string {
	layout, _ := c.DateFormat.layout()
	return t.Format(layout)
}

// ShiftCode maps a local hour to the production shift letter:
// [06:00,14:00) A, [14:00,22:00) B, otherwise C.
func ShiftCode(t time.Time) string {
	switch h := t.Hour(); {
	case h >= 6 && h < 14:
		return "A"
	case h >= 14 && h < 22:
		return "B"
	default:
		return "C"
	}
}
