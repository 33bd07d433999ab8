package main_test

import (
	"testing"

	"github.com/picokern/netsock/internal/assert"
)

var root = tests{
	"invoking netsock without a command prints the introduction message": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t)
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "netsock - Socket descriptor sandbox\n")
		assert.Equal(t, stderr, "")
	},

	"show the netsock help with the short option": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "-h")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tnetsock <command> ")
		assert.Equal(t, stderr, "")
	},

	"show the netsock help with the long option": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "--help")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tnetsock <command> ")
		assert.Equal(t, stderr, "")
	},
}
