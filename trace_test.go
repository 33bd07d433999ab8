package main_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/picokern/netsock/internal/assert"
)

// record runs a small simulation recording its descriptor events, and
// returns the path of the trace file it wrote.
func record(t *testing.T, args ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sim.nstrace")

	args = append([]string{"run", "-q", "-n", "1", "-f", "1", "-m", "2", "-s", "64", "-R", path}, args...)
	_, stderr, exitCode := netsock(t, args...)
	assert.Equal(t, exitCode, 0)
	assert.Equal(t, stderr, "")
	return path
}

var trace = tests{
	"show the trace command help with the short option": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "trace", "-h")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tnetsock trace ")
		assert.Equal(t, stderr, "")
	},

	"show the trace command help with the long option": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "trace", "--help")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tnetsock trace ")
		assert.Equal(t, stderr, "")
	},

	"the trace file argument is required": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "trace")
		assert.Equal(t, exitCode, 2)
		assert.Equal(t, stdout, "")
		assert.HasPrefix(t, stderr, "Expected exactly one trace file as argument")
	},

	"reading a file that does not exist reports an error": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "trace", filepath.Join(t.TempDir(), "nowhere.nstrace"))
		assert.Equal(t, exitCode, 1)
		assert.Equal(t, stdout, "")
		assert.HasPrefix(t, stderr, "ERR: netsock trace: ")
	},

	"a recorded run prints as a table of events": func(t *testing.T) {
		path := record(t)

		stdout, stderr, exitCode := netsock(t, "trace", path)
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "OFFSET")
		assert.Equal(t, stderr, "")

		for _, kind := range []string{
			"table-create",
			"table-share",
			"table-drop",
			"sock-alloc",
			"sock-retain",
			"sock-release",
		} {
			assert.True(t, strings.Contains(stdout, kind))
		}
	},

	"trace events can be printed as json": func(t *testing.T) {
		path := record(t)

		stdout, stderr, exitCode := netsock(t, "trace", "-o", "json", path)
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "{")
		assert.True(t, strings.Contains(stdout, `"kind": "sock-alloc"`))
		assert.Equal(t, stderr, "")
	},

	"trace events can be printed as yaml": func(t *testing.T) {
		path := record(t)

		stdout, stderr, exitCode := netsock(t, "trace", "-o", "yaml", path)
		assert.Equal(t, exitCode, 0)
		assert.True(t, strings.Contains(stdout, "kind: sock-alloc"))
		assert.Equal(t, stderr, "")
	},

	"the verbose text output prints the raw events": func(t *testing.T) {
		path := record(t)

		stdout, stderr, exitCode := netsock(t, "trace", "-v", path)
		assert.Equal(t, exitCode, 0)
		assert.True(t, strings.Contains(stdout, "Kind:sock-alloc"))
		assert.Equal(t, stderr, "")
	},

	"uncompressed recordings read back": func(t *testing.T) {
		path := record(t, "--record-compression", "none")

		stdout, stderr, exitCode := netsock(t, "trace", path)
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "OFFSET")
		assert.Equal(t, stderr, "")
	},

	"snappy compressed recordings read back": func(t *testing.T) {
		path := record(t, "--record-compression", "snappy")

		stdout, stderr, exitCode := netsock(t, "trace", path)
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "OFFSET")
		assert.Equal(t, stderr, "")
	},

	"the record batch size can be overridden": func(t *testing.T) {
		path := record(t, "--record-batch-size", "1")

		stdout, stderr, exitCode := netsock(t, "trace", path)
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "OFFSET")
		assert.Equal(t, stderr, "")
	},
}
