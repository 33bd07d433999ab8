package textprint_test

import (
	"bytes"
	"testing"

	"github.com/picokern/netsock/internal/assert"
	"github.com/picokern/netsock/internal/print/textprint"
)

type endpoint struct {
	Addr string `text:"ADDR"`
	Type string `text:"TYPE"`
	Port int    `text:"PORT"`
}

func TestTableWriteNothing(t *testing.T) {
	b := new(bytes.Buffer)
	w := textprint.NewTableWriter[endpoint](b)
	assert.OK(t, w.Close())
	assert.Equal(t, b.String(), "ADDR  TYPE  PORT\n")
}

func TestTableWriteValues(t *testing.T) {
	b := new(bytes.Buffer)
	w := textprint.NewTableWriter[endpoint](b,
		textprint.OrderBy(func(e1, e2 endpoint) bool { return e1.Port < e2.Port }),
	)
	_, err := w.Write([]endpoint{
		{Addr: "lo0:49154", Type: "dgram", Port: 49154},
		{Addr: "lo0:49152", Type: "stream", Port: 49152},
		{Addr: "lo0:49153", Type: "stream", Port: 49153},
	})
	assert.OK(t, err)
	assert.OK(t, w.Close())
	assert.Equal(t, b.String(), `ADDR       TYPE    PORT
lo0:49152  stream  49152
lo0:49153  stream  49153
lo0:49154  dgram   49154
`)
}

func TestTableWriteList(t *testing.T) {
	b := new(bytes.Buffer)
	w := textprint.NewTableWriter[endpoint](b,
		textprint.Header[endpoint](false),
		textprint.List[endpoint](true),
	)
	_, err := w.Write([]endpoint{
		{Addr: "lo0:49152", Type: "stream", Port: 49152},
		{Addr: "lo0:49153", Type: "stream", Port: 49153},
	})
	assert.OK(t, err)
	assert.OK(t, w.Close())

	// A list holds the first column alone, with no padding after it.
	assert.Equal(t, b.String(), "lo0:49152\nlo0:49153\n")
}
