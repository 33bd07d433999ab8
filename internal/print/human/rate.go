package human

import (
	"encoding"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	yaml "gopkg.in/yaml.v3"
)

// Rate represents a count of events per unit of time.
//
// The type supports parsing and formatting values like:
//
//	200/s
//	1 / minute
//	1.5M/s
//	...
//
// Values are normalized to their per-second form when parsed, so Go code
// always manipulates a Rate as a per-second quantity.
type Rate float64

// rateUnits maps the time unit spelled after the slash of a rate to the
// number of seconds it spans. Prefixes are accepted, so "m", "min" and
// "minute" all select minutes.
var rateUnits = []struct {
	name    string
	seconds float64
}{
	{"weeks", 604800},
	{"days", 86400},
	{"hours", 3600},
	{"minutes", 60},
	{"seconds", 1},
}

func ParseRate(s string) (Rate, error) {
	text, unit := s, ""
	if i := strings.IndexByte(s, '/'); i >= 0 {
		text = strings.TrimRightFunc(s[:i], unicode.IsSpace)
		unit = strings.TrimLeftFunc(s[i+1:], unicode.IsSpace)
	}

	c, err := ParseCount(text)
	if err != nil {
		return 0, fmt.Errorf("malformed rate representation: %q", s)
	}
	if unit == "" {
		return Rate(c), nil
	}
	for _, u := range rateUnits {
		if match(unit, u.name) {
			return Rate(float64(c) / u.seconds), nil
		}
	}
	return 0, fmt.Errorf("malformed rate representation: %q", s)
}

func (r Rate) String() string {
	return Count(r).String() + "/s"
}

func (r Rate) GoString() string {
	return fmt.Sprintf("human.Rate(%v)", float64(r))
}

// Format satisfies the fmt.Formatter interface.
//
// The method supports the following formatting verbs:
//
//	e	base 10, unit-less, scientific notation
//	f	base 10, unit-less, decimal notation
//	g	base 10, unit-less, act like 'e' or 'f' depending on scale
//	s	base 10, per second (same as calling String)
//	v	same as the 's' format, unless '#' is set to print the go value
func (r Rate) Format(w fmt.State, v rune) {
	_, _ = io.WriteString(w, r.format(w, v))
}

func (r Rate) format(w fmt.State, v rune) string {
	switch v {
	case 'e', 'f', 'g':
		return strconv.FormatFloat(float64(r), byte(v), -1, 64)
	case 's':
		return r.String()
	case 'v':
		if w.Flag('#') {
			return r.GoString()
		}
		return r.format(w, 's')
	default:
		return printError(v, r, float64(r))
	}
}

func (r *Rate) Set(s string) error {
	p, err := ParseRate(s)
	if err != nil {
		return err
	}
	*r = p
	return nil
}

func (r Rate) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(r))
}

func (r *Rate) UnmarshalJSON(b []byte) error {
	return json.Unmarshal(b, (*float64)(r))
}

func (r Rate) MarshalYAML() (interface{}, error) {
	return r.String(), nil
}

func (r *Rate) UnmarshalYAML(y *yaml.Node) error {
	var s string
	if err := y.Decode(&s); err != nil {
		return err
	}
	return r.Set(s)
}

func (r Rate) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Rate) UnmarshalText(b []byte) error {
	return r.Set(string(b))
}

var (
	_ fmt.Formatter  = Rate(0)
	_ fmt.GoStringer = Rate(0)
	_ fmt.Stringer   = Rate(0)

	_ json.Marshaler   = Rate(0)
	_ json.Unmarshaler = (*Rate)(nil)

	_ yaml.Marshaler   = Rate(0)
	_ yaml.Unmarshaler = (*Rate)(nil)

	_ encoding.TextMarshaler   = Rate(0)
	_ encoding.TextUnmarshaler = (*Rate)(nil)
	_ flag.Value               = (*Rate)(nil)
)
