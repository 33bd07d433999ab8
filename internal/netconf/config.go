// Package netconf loads and interprets the netsock configuration file.
//
// The configuration is a yaml document controlling the three tunable layers
// of the program: descriptor tables, the loopback engine, and trace
// recordings. Every field is optional; DefaultConfig returns the values used
// when a field is absent from the file, and zero-config runs work off these
// defaults alone.
package netconf

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/picokern/netsock/internal/engine"
	"github.com/picokern/netsock/internal/print/human"
	"github.com/picokern/netsock/internal/trace"
	"github.com/picokern/netsock/pkg/sock"
)

const defaultConfigPath = "~/.netsock/config.yaml"

// ConfigPath is the path to the netsock configuration; this is exposed as a
// global because it is set by a command line flag ahead of the command
// dispatch, and every command after that point reads the same location.
var ConfigPath human.Path = defaultConfigPath

// Config carries the deserialized representation of the netsock
// configuration file.
type Config struct {
	Sockets struct {
		Capacity Nullable[human.Count] `json:"capacity"`
		Base     Nullable[human.Count] `json:"base"`
	} `json:"sockets"`

	Engine struct {
		Throughput Nullable[human.Rate]  `json:"throughput"`
		BufferSize Nullable[human.Bytes] `json:"buffer-size" yaml:"buffer-size"`
	} `json:"engine"`

	Trace struct {
		BatchSize   Nullable[human.Count] `json:"batch-size" yaml:"batch-size"`
		Compression Nullable[string]      `json:"compression"`
	} `json:"trace"`
}

// DefaultConfig returns the default configuration, which is used when the
// configuration file does not exist or leaves fields unset.
func DefaultConfig() *Config {
	c := new(Config)
	c.Sockets.Capacity = NullableValue[human.Count](sock.DefaultCapacity)
	c.Sockets.Base = NullableValue[human.Count](human.Count(sock.DefaultBase))
	c.Engine.BufferSize = NullableValue[human.Bytes](engine.DefaultBufferSize)
	c.Trace.BatchSize = NullableValue[human.Count](trace.DefaultBatchSize)
	c.Trace.Compression = NullableValue[string]("zstd")
	return c
}

// LoadConfig opens and reads the configuration at ConfigPath.
func LoadConfig() (*Config, error) {
	r, _, err := OpenConfig()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return ReadConfig(r)
}

// OpenConfig opens the configuration file at ConfigPath.
//
// The function returns a reader serializing the default configuration when
// the file does not exist, so a missing file behaves exactly like one
// spelling out the defaults.
func OpenConfig() (io.ReadCloser, string, error) {
	path, err := ConfigPath.Resolve()
	if err != nil {
		return nil, path, err
	}
	f, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, path, err
		}
		c := DefaultConfig()
		b, _ := yaml.Marshal(c)
		return io.NopCloser(bytes.NewReader(b)), path, nil
	}
	return f, path, nil
}

// ReadConfig reads and deserializes the configuration from the given reader.
//
// Unknown fields are rejected so typos in the file surface as errors instead
// of silently falling back to defaults.
func ReadConfig(r io.Reader) (*Config, error) {
	c := DefaultConfig()
	d := yaml.NewDecoder(r)
	d.KnownFields(true)
	if err := d.Decode(c); err != nil {
		return nil, err
	}
	return c, nil
}

// TableOptions returns the descriptor table options selected by the
// configuration.
func (c *Config) TableOptions() []sock.TableOption {
	var opts []sock.TableOption
	if capacity, ok := c.Sockets.Capacity.Value(); ok {
		opts = append(opts, sock.MaxSockets(int(capacity)))
	}
	if base, ok := c.Sockets.Base.Value(); ok {
		opts = append(opts, sock.Base(sock.Sockfd(base)))
	}
	return opts
}

// EngineOptions returns the loopback engine options selected by the
// configuration.
func (c *Config) EngineOptions() []engine.Option {
	var opts []engine.Option
	if throughput, ok := c.Engine.Throughput.Value(); ok {
		// The burst allowance is one second worth of bytes, so short
		// transfers are not throttled at all.
		opts = append(opts, engine.Throttle(rate.Limit(throughput), int(throughput)))
	}
	if size, ok := c.Engine.BufferSize.Value(); ok {
		opts = append(opts, engine.BufferSize(int(size)))
	}
	return opts
}

// TraceOptions returns the batch size and compression format to apply when
// recording trace events.
func (c *Config) TraceOptions() (batchSize int, compression trace.Compression, err error) {
	if n, ok := c.Trace.BatchSize.Value(); ok {
		batchSize = int(n)
	}
	name, _ := c.Trace.Compression.Value()
	compression, err = trace.ParseCompression(name)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid trace configuration: %w", err)
	}
	return batchSize, compression, nil
}

type Nullable[T any] struct {
	value T
	exist bool
}

func NullableValue[T any](v T) Nullable[T] {
	return Nullable[T]{value: v, exist: true}
}

func (v Nullable[T]) Value() (T, bool) {
	return v.value, v.exist
}

func (v Nullable[T]) MarshalJSON() ([]byte, error) {
	if !v.exist {
		return []byte("null"), nil
	}
	return json.Marshal(v.value)
}

func (v Nullable[T]) MarshalYAML() (any, error) {
	if !v.exist {
		return nil, nil
	}
	return v.value, nil
}

func (v *Nullable[T]) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		v.exist = false
		return nil
	} else if err := json.Unmarshal(b, &v.value); err != nil {
		v.exist = false
		return err
	} else {
		v.exist = true
		return nil
	}
}

func (v *Nullable[T]) UnmarshalYAML(node *yaml.Node) error {
	if node.Value == "" || node.Value == "~" || node.Value == "null" {
		v.exist = false
		return nil
	} else if err := node.Decode(&v.value); err != nil {
		v.exist = false
		return err
	} else {
		v.exist = true
		return nil
	}
}
