package main_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/picokern/netsock/internal/assert"
)

var config = tests{
	"show the config command help with the short option": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "config", "-h")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tnetsock config ")
		assert.Equal(t, stderr, "")
	},

	"show the config command help with the long option": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "config", "--help")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tnetsock config ")
		assert.Equal(t, stderr, "")
	},

	"the configuration file is printed as is by default": func(t *testing.T) {
		b, err := os.ReadFile(os.Getenv("NETSOCKCONFIG"))
		assert.OK(t, err)

		stdout, stderr, exitCode := netsock(t, "config")
		assert.Equal(t, exitCode, 0)
		assert.Equal(t, stdout, string(b))
		assert.Equal(t, stderr, "")
	},

	"print the configuration in json format": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "config", "-o", "json")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "{\n  \"sockets\": {")
		assert.True(t, strings.Contains(stdout, `"capacity"`))
		assert.Equal(t, stderr, "")
	},

	"print the configuration in yaml format": func(t *testing.T) {
		stdout, stderr, exitCode := netsock(t, "config", "-o", "yaml")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "sockets:")
		assert.True(t, strings.Contains(stdout, "buffer-size:"))
		assert.Equal(t, stderr, "")
	},

	"a default configuration is synthesized when the file does not exist": func(t *testing.T) {
		t.Setenv("NETSOCKCONFIG", filepath.Join(t.TempDir(), "path", "to", "nowhere.yaml"))

		stdout, stderr, exitCode := netsock(t, "config")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "sockets:")
		assert.Equal(t, stderr, "")
	},

	"editing the configuration requires EDITOR to be set": func(t *testing.T) {
		t.Setenv("EDITOR", "")

		stdout, stderr, exitCode := netsock(t, "config", "--edit")
		assert.Equal(t, exitCode, 1)
		assert.Equal(t, stdout, "")
		assert.Equal(t, stderr, "ERR: netsock config: $EDITOR is not set\n")
	},

	"passing an unsupported output format causes an error": func(t *testing.T) {
		_, _, exitCode := netsock(t, "config", "-o", "xml")
		assert.Equal(t, exitCode, 2)
	},
}
