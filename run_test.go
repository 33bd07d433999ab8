package main_test

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/picokern/netsock/internal/assert"
)

var run = tests{
	"show the run command help with the short option": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "run", "-h")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tnetsock run ")
		assert.Equal(t, stderr, "")
	},

	"show the run command help with the long option": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "run", "--help")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tnetsock run ")
		assert.Equal(t, stderr, "")
	},

	"positional arguments are rejected": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "run", "whatever")
		assert.Equal(t, exitCode, 2)
		assert.Equal(t, stdout, "")
		assert.HasPrefix(t, stderr, "Expected no positional arguments")
	},

	"the task count must be positive": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "run", "-n", "0")
		assert.Equal(t, exitCode, 2)
		assert.Equal(t, stdout, "")
		assert.HasPrefix(t, stderr, "The number of tasks and messages and the message size must all be positive")
	},

	"a message size exceeding the engine buffers is rejected": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "run", "-s", "128KiB")
		assert.Equal(t, exitCode, 2)
		assert.Equal(t, stdout, "")
		assert.HasPrefix(t, stderr, "The message size ")
	},

	"every task reports one line of the table": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "run", "-n", "2", "-m", "4", "-s", "128")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "TASK ID")
		assert.Equal(t, strings.Count(stdout, "\n"), 3)
		assert.Equal(t, stderr, "")
	},

	"quiet mode prints only the task ids": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "run", "-q", "-n", "1", "-m", "1", "-s", "64")
		assert.Equal(t, exitCode, 0)
		assert.Equal(t, stderr, "")

		_, err := uuid.Parse(strings.TrimSpace(stdout))
		assert.OK(t, err)
	},

	"the report can be formatted as json": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "run", "-o", "json", "-n", "1", "-m", "1", "-s", "64")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "{\n  \"id\": \"")
		assert.True(t, strings.Contains(stdout, `"type": "stream"`))
		assert.Equal(t, stderr, "")
	},

	"the report can be formatted as yaml": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "run", "-o", "yaml", "-n", "1", "-m", "1", "-s", "64")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "id: ")
		assert.True(t, strings.Contains(stdout, "type: stream"))
		assert.Equal(t, stderr, "")
	},

	"datagram sockets round trip messages too": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "run", "-t", "dgram", "-n", "1", "-m", "2", "-s", "64", "-q")
		assert.Equal(t, exitCode, 0)
		assert.NotEqual(t, stdout, "")
		assert.Equal(t, stderr, "")
	},

	"without forks the task reads back from the peer descriptor": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "run", "-f", "0", "-n", "1", "-m", "1", "-s", "64", "-q")
		assert.Equal(t, exitCode, 0)
		assert.NotEqual(t, stdout, "")
		assert.Equal(t, stderr, "")
	},

	"every task can fork more than one echo task": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "run", "-f", "3", "-n", "2", "-m", "4", "-s", "64", "-q")
		assert.Equal(t, exitCode, 0)
		assert.Equal(t, strings.Count(stdout, "\n"), 2)
		assert.Equal(t, stderr, "")
	},

	"the engine throughput can be throttled": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "run", "-T", "1M", "-n", "1", "-m", "1", "-s", "64", "-q")
		assert.Equal(t, exitCode, 0)
		assert.NotEqual(t, stdout, "")
		assert.Equal(t, stderr, "")
	},

	"verbose mode logs the engine activity": func(t *testing.T) {
		_, stderr, exitCode := netsock(t, "run", "-v", "-n", "1", "-m", "1", "-s", "64", "-q")
		assert.Equal(t, exitCode, 0)
		assert.NotEqual(t, stderr, "")
	},

	"passing an unsupported socket type causes an error": func(t *testing.T) {
		_, _, exitCode := netsock(t, "run", "-t", "raw")
		assert.Equal(t, exitCode, 2)
	},
}
