package human

import (
	"encoding"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"time"

	yaml "gopkg.in/yaml.v3"
)

const (
	Nanosecond  Duration = 1
	Microsecond Duration = 1000 * Nanosecond
	Millisecond Duration = 1000 * Microsecond
	Second      Duration = 1000 * Millisecond
	Minute      Duration = 60 * Second
	Hour        Duration = 60 * Minute
	Day         Duration = 24 * Hour
	Week        Duration = 7 * Day
)

// Duration is based on time.Duration, but supports parsing and formatting
// more human-friendly representations.
//
// Here are examples of supported values:
//
//	5m30s
//	1.5h
//	4 weeks
//	1w2d
//	...
//
// Units range from nanoseconds to weeks. The months and years of
// calendars have no fixed length in nanoseconds and are not accepted.
type Duration time.Duration

func ParseDuration(s string) (Duration, error) {
	input := s
	if s == "0" {
		return 0, nil
	}

	var d Duration
	for len(s) != 0 {
		n, r, err := parseFloat(s)
		if err != nil {
			return 0, fmt.Errorf("malformed duration: %q: %w", input, err)
		}
		if r == "" {
			return 0, fmt.Errorf("malformed duration: %q: missing time unit", input)
		}
		var name string
		name, s = parseNextToken(r)
		scale, ok := durationScale(name)
		if !ok {
			return 0, fmt.Errorf("malformed duration: %q: unknown time unit %q", input, name)
		}
		d += Duration(n * float64(scale))
	}
	return d, nil
}

func durationScale(name string) (Duration, bool) {
	switch {
	case name == "ns":
		return Nanosecond, true
	case name == "us", name == "µs":
		return Microsecond, true
	case name == "ms":
		return Millisecond, true
	case match(name, "weeks"):
		return Week, true
	case match(name, "days"):
		return Day, true
	case match(name, "hours"):
		return Hour, true
	case match(name, "minutes"):
		return Minute, true
	case match(name, "seconds"):
		return Second, true
	case match(name, "nanoseconds"):
		return Nanosecond, true
	case match(name, "microseconds"):
		return Microsecond, true
	case match(name, "milliseconds"):
		return Millisecond, true
	default:
		return 0, false
	}
}

func (d Duration) String() string {
	switch {
	case d == 0:
		return "0s"
	case d < 0:
		return "-" + (-d).String()
	}

	var scale Duration
	var unit string
	switch {
	case d < Microsecond:
		scale, unit = Nanosecond, "ns"
	case d < Millisecond:
		scale, unit = Microsecond, "µs"
	case d < Second:
		scale, unit = Millisecond, "ms"
	case d < Minute:
		scale, unit = Second, "s"
	case d < Hour:
		scale, unit = Minute, "m"
	case d < Day:
		scale, unit = Hour, "h"
	case d < Week:
		scale, unit = Day, "d"
	default:
		scale, unit = Week, "w"
	}
	return ftoa(float64(d), float64(scale)) + unit
}

func (d Duration) GoString() string {
	return fmt.Sprintf("human.Duration(%d)", int64(d))
}

// Format satisfies the fmt.Formatter interface.
//
// The method supports the following formatting verbs:
//
//	s	outputs a string representation of the duration (same as calling String)
//	v	same as the 's' format, unless '#' is set to print the go value
func (d Duration) Format(w fmt.State, v rune) {
	_, _ = io.WriteString(w, d.format(w, v))
}

func (d Duration) format(w fmt.State, v rune) string {
	switch v {
	case 's':
		return d.String()
	case 'v':
		if w.Flag('#') {
			return d.GoString()
		}
		return d.format(w, 's')
	default:
		return printError(v, d, int64(d))
	}
}

func (d *Duration) Set(s string) error {
	p, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = p
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d))
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	return json.Unmarshal(b, (*time.Duration)(d))
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(y *yaml.Node) error {
	var s string
	if err := y.Decode(&s); err != nil {
		return err
	}
	p, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(p)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	return d.Set(string(b))
}

var (
	_ fmt.Formatter  = Duration(0)
	_ fmt.GoStringer = Duration(0)
	_ fmt.Stringer   = Duration(0)

	_ json.Marshaler   = Duration(0)
	_ json.Unmarshaler = (*Duration)(nil)

	_ yaml.Marshaler   = Duration(0)
	_ yaml.Unmarshaler = (*Duration)(nil)

	_ encoding.TextMarshaler   = Duration(0)
	_ encoding.TextUnmarshaler = (*Duration)(nil)
	_ flag.Value               = (*Duration)(nil)
)
