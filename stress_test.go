package main_test

import (
	"strings"
	"testing"

	"github.com/picokern/netsock/internal/assert"
)

var stress = tests{
	"show the stress command help with the short option": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "stress", "-h")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tnetsock stress ")
		assert.Equal(t, stderr, "")
	},

	"show the stress command help with the long option": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "stress", "--help")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tnetsock stress ")
		assert.Equal(t, stderr, "")
	},

	"positional arguments are rejected": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "stress", "whatever")
		assert.Equal(t, exitCode, 2)
		assert.Equal(t, stdout, "")
		assert.HasPrefix(t, stderr, "Expected no positional arguments")
	},

	"the worker count must be positive": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "stress", "-n", "0")
		assert.Equal(t, exitCode, 2)
		assert.Equal(t, stdout, "")
		assert.HasPrefix(t, stderr, "The number of workers and iterations must both be positive")
	},

	"a clean stress run reports no violations": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "stress", "-n", "4", "-i", "2500")
		assert.Equal(t, exitCode, 0)
		assert.Equal(t, stdout, "4 workers performed 10K allocations over 32 slots (0 exhaustions), no violations\n")
		assert.Equal(t, stderr, "")
	},

	"exhaustion is tolerated when workers outnumber the table slots": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "stress", "-n", "64", "-i", "100")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "64 workers performed ")
		assert.True(t, strings.HasSuffix(stdout, "no violations\n"))
		assert.Equal(t, stderr, "")
	},
}
