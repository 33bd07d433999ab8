package human

import (
	"encoding"
	"flag"
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// Path represents a path on the file system.
//
// The special prefix "~/" stands for the home directory of the user the
// program runs as. The prefix is kept as written and only expanded by
// Resolve, so default locations spelled with it work without ever
// passing through a flag.
type Path string

func (p Path) String() string {
	return string(p)
}

// Resolve expands the home directory prefix and returns the resulting
// path.
func (p Path) Resolve() (string, error) {
	s := string(p)
	if s != "~" && !strings.HasPrefix(s, "~"+string(os.PathSeparator)) {
		return s, nil
	}
	home, ok := os.LookupEnv("HOME")
	if !ok {
		u, err := user.Current()
		if err != nil {
			return "", err
		}
		home = u.HomeDir
	}
	return filepath.Join(home, s[1:]), nil
}

func (p *Path) Set(s string) error {
	*p = Path(s)
	return nil
}

func (p *Path) UnmarshalText(b []byte) error {
	return p.Set(string(b))
}

var (
	_ encoding.TextUnmarshaler = (*Path)(nil)
	_ flag.Value               = (*Path)(nil)
)
