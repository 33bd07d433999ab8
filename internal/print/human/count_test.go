package human

import (
	"encoding/json"
	"fmt"
	"testing"

	yaml "gopkg.in/yaml.v3"
)

func TestCountParse(t *testing.T) {
	for _, test := range []struct {
		in  string
		out Count
	}{
		{in: "0", out: 0},
		{in: "256", out: 256},
		{in: "1234", out: 1234},
		{in: "10 K", out: 10000},
		{in: "10.2K", out: 10200},
		{in: "64k", out: 64000},
		{in: "1.5M", out: 1500000},
		{in: "2G", out: 2000000000},
	} {
		t.Run(test.in, func(t *testing.T) {
			c, err := ParseCount(test.in)
			if err != nil {
				t.Fatal(err)
			}
			if c != test.out {
				t.Error("parsed count mismatch:", c, "!=", test.out)
			}
		})
	}
}

func TestCountParseError(t *testing.T) {
	for _, test := range []string{
		"",
		"10x",
		"1.2.3",
	} {
		t.Run(test, func(t *testing.T) {
			if c, err := ParseCount(test); err == nil {
				t.Error("expected error, got", c)
			}
		})
	}
}

func TestCountSet(t *testing.T) {
	c := Count(0)
	if err := c.Set("10.2K"); err != nil {
		t.Fatal(err)
	}
	if c != 10200 {
		t.Error("count mismatch:", c, "!= 10200")
	}
	if err := c.Set("10x"); err == nil {
		t.Error("expected error setting malformed count")
	}
}

func TestCountFormat(t *testing.T) {
	for _, test := range []struct {
		in  Count
		fmt string
		out string
	}{
		{in: 0, fmt: "%v", out: "0"},
		{in: 1234, fmt: "%v", out: "1234"},
		{in: -1234, fmt: "%v", out: "-1234"},
		{in: 9999, fmt: "%v", out: "9999"},
		{in: 10000, fmt: "%v", out: "10K"},
		{in: 10234, fmt: "%v", out: "10.2K"},
		{in: 2500000000, fmt: "%v", out: "2.5G"},
		{in: 123456789, fmt: "%d", out: "123456789"},
		{in: 1234.5, fmt: "%d", out: "1235"},
		{in: 123456789, fmt: "%s", out: "123M"},
		{in: 1.5, fmt: "%g", out: "1.5"},
		{in: 10234, fmt: "%e", out: "1.0234e+04"},
		{in: 123456789, fmt: "%#v", out: "human.Count(1.23456789e+08)"},
	} {
		t.Run(test.out, func(t *testing.T) {
			if s := fmt.Sprintf(test.fmt, test.in); s != test.out {
				t.Error("formatted count mismatch:", s, "!=", test.out)
			}
		})
	}
}

func TestCountJSON(t *testing.T) {
	testCountEncoding(t, Count(10200), json.Marshal, json.Unmarshal)
}

func TestCountYAML(t *testing.T) {
	testCountEncoding(t, Count(10200), yaml.Marshal, yaml.Unmarshal)
}

func testCountEncoding(t *testing.T, x Count, marshal func(any) ([]byte, error), unmarshal func([]byte, any) error) {
	b, err := marshal(x)
	if err != nil {
		t.Fatal("marshal error:", err)
	}

	v := Count(0)
	if err := unmarshal(b, &v); err != nil {
		t.Error("unmarshal error:", err)
	} else if v != x {
		t.Error("value mismatch:", v, "!=", x)
	}
}
