package main_test

import (
	"testing"

	"github.com/picokern/netsock/internal/assert"
)

var help = tests{
	"calling help with an unknown command causes an error": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "help", "whatever")
		assert.Equal(t, exitCode, 2)
		assert.Equal(t, stdout, "")
		assert.Equal(t, stderr, "netsock help whatever: unknown command\n")
	},

	"passing an unsupported flag to the command causes an error": func(t *testing.T) {
		_, _, exitCode := netsock(t, "help", "-_")
		assert.Equal(t, exitCode, 2)
	},

	"show the help command help with the short option": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "help", "-h")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tnetsock <command> ")
		assert.Equal(t, stderr, "")
	},

	"show the help command help with the long option": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "help", "--help")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tnetsock <command> ")
		assert.Equal(t, stderr, "")
	},

	"show the help command help after a command name": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "help", "run", "--help")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tnetsock <command> ")
		assert.Equal(t, stderr, "")
	},

	"netsock help config": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "help", "config")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tnetsock config ")
		assert.Equal(t, stderr, "")
	},

	"netsock help help": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "help", "help")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tnetsock <command> ")
		assert.Equal(t, stderr, "")
	},

	"netsock help run": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "help", "run")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tnetsock run ")
		assert.Equal(t, stderr, "")
	},

	"netsock help stress": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "help", "stress")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tnetsock stress ")
		assert.Equal(t, stderr, "")
	},

	"netsock help trace": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "help", "trace")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tnetsock trace ")
		assert.Equal(t, stderr, "")
	},

	"netsock help version": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "help", "version")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tnetsock version\n")
		assert.Equal(t, stderr, "")
	},
}
