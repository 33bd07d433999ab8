package main_test

import (
	"strings"
	"testing"

	"github.com/picokern/netsock/internal/assert"
)

var version = tests{
	"show the version command help with the short option": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "version", "-h")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tnetsock version\n")
		assert.Equal(t, stderr, "")
	},

	"show the version command help with the long option": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "version", "--help")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tnetsock version\n")
		assert.Equal(t, stderr, "")
	},

	"the version starts with the prefix netsock": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "version")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "netsock ")
		assert.Equal(t, stderr, "")
	},

	"the version number is not empty": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "version")
		assert.Equal(t, exitCode, 0)
		assert.Equal(t, stderr, "")

		_, version, _ := strings.Cut(stdout, " ")
		assert.NotEqual(t, version, "")
	},

	"passing an unsupported flag to the command causes an error": func(t *testing.T) {
		_, _, exitCode := netsock(t, "version", "-_")
		assert.Equal(t, exitCode, 2)
	},
}
