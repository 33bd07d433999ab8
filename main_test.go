package main_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	. "github.com/picokern/netsock"
)

func TestNetsock(t *testing.T) {
	t.Run("config", config.run)
	t.Run("help", help.run)
	t.Run("root", root.run)
	t.Run("run", run.run)
	t.Run("stress", stress.run)
	t.Run("trace", trace.run)
	t.Run("unknown", unknown.run)
	t.Run("version", version.run)
}

type configuration struct {
	Sockets socketsConfig `yaml:"sockets"`
	Engine  engineConfig  `yaml:"engine"`
	Trace   traceConfig   `yaml:"trace"`
}

type socketsConfig struct {
	Capacity int `yaml:"capacity"`
	Base     int `yaml:"base"`
}

type engineConfig struct {
	BufferSize string `yaml:"buffer-size"`
}

type traceConfig struct {
	BatchSize   int    `yaml:"batch-size"`
	Compression string `yaml:"compression"`
}

type tests map[string]func(*testing.T)

func (suite tests) run(t *testing.T) {
	names := maps.Keys(suite)
	slices.Sort(names)

	for _, name := range names {
		test := suite[name]
		t.Run(name, func(t *testing.T) {
			b, err := yaml.Marshal(configuration{
				Sockets: socketsConfig{
					Capacity: 32,
					Base:     256,
				},
				Engine: engineConfig{
					BufferSize: "64KiB",
				},
				Trace: traceConfig{
					BatchSize:   8,
					Compression: "zstd",
				},
			})
			if err != nil {
				t.Fatal("marshaling netsock configuration:", err)
			}

			configPath := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(configPath, b, 0666); err != nil {
				t.Fatal("writing netsock configuration:", err)
			}

			t.Setenv("NETSOCKCONFIG", configPath)

			test(t)
		})
	}
}

// netsock invokes the program in-process, capturing the standard output and
// standard error streams it produced along with its exit code. The capture
// swaps the process-wide stdout and stderr files, so tests must not run in
// parallel.
func netsock(t *testing.T, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()

	ctx := context.Background()
	deadline, ok := t.Deadline()
	if ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		t.Fatal("creating the stdout pipe:", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		t.Fatal("creating the stderr pipe:", err)
	}

	outbuf := new(strings.Builder)
	errbuf := new(strings.Builder)

	wait := new(sync.WaitGroup)
	wait.Add(2)
	go func() {
		defer wait.Done()
		_, _ = io.Copy(outbuf, stdoutR)
		stdoutR.Close()
	}()
	go func() {
		defer wait.Done()
		_, _ = io.Copy(errbuf, stderrR)
		stderrR.Close()
	}()

	prevStdout, prevStderr := os.Stdout, os.Stderr
	os.Stdout, os.Stderr = stdoutW, stderrW
	exitCode = Root(ctx, args...)
	os.Stdout, os.Stderr = prevStdout, prevStderr

	stdoutW.Close()
	stderrW.Close()
	wait.Wait()

	return outbuf.String(), errbuf.String(), exitCode
}
