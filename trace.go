package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/picokern/netsock/internal/print/human"
	"github.com/picokern/netsock/internal/print/jsonprint"
	"github.com/picokern/netsock/internal/print/textprint"
	"github.com/picokern/netsock/internal/print/yamlprint"
	"github.com/picokern/netsock/internal/stream"
	nstrace "github.com/picokern/netsock/internal/trace"
)

const traceUsage = `
Usage:	netsock trace [options] <trace file>

   The trace sub-command decodes a recording produced by 'netsock run' with
   the --record option, and prints the descriptor events it contains in the
   order they were recorded.

Options:
   -c, --config path    Path to the netsock configuration file (overrides NETSOCKCONFIG)
   -h, --help           Show this usage information
   -o, --output format  Output format, one of: text, json, yaml
   -v, --verbose        For text output, display the raw event records
`

func trace(ctx context.Context, args []string) error {
	var (
		output  = outputFormat("text")
		verbose = false
	)

	flagSet := newFlagSet("netsock trace", traceUsage)
	customVar(flagSet, &output, "o", "output")
	boolVar(flagSet, &verbose, "v", "verbose")

	args, err := parseFlags(flagSet, args)
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return usageError(`Expected exactly one trace file as argument` + useCmd("trace"))
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	events := &eventReader{reader: nstrace.NewReader(f)}

	var writer stream.WriteCloser[nstrace.Event]
	switch output {
	case "json":
		writer = jsonprint.NewWriter[nstrace.Event](os.Stdout)
	case "yaml":
		writer = yamlprint.NewWriter[nstrace.Event](os.Stdout)
	default:
		if verbose {
			writer = textprint.NewWriter[nstrace.Event](os.Stdout,
				textprint.Format[nstrace.Event]("%+v"),
				textprint.Separator[nstrace.Event]("\n"),
			)
			defer fmt.Println()
		} else {
			writer = eventTableWriter(os.Stdout)
		}
	}
	defer writer.Close()

	_, err = stream.Copy[nstrace.Event](writer, events)
	return err
}

// eventTableWriter prints events as a table, with times shown as offsets
// from the first event of the recording.
func eventTableWriter(w io.Writer) stream.WriteCloser[nstrace.Event] {
	type event struct {
		Offset human.Duration `text:"OFFSET"`
		Task   string         `text:"TASK"`
		Kind   nstrace.Kind   `text:"EVENT"`
		FD     int32          `text:"FD"`
		Refs   int32          `text:"REFS"`
	}
	var epoch int64
	return newTableWriter(w, nil,
		func(e nstrace.Event) (event, error) {
			if epoch == 0 {
				epoch = e.Time
			}
			return event{
				Offset: human.Duration(e.Time - epoch),
				Task:   e.Task.String(),
				Kind:   e.Kind,
				FD:     e.FD,
				Refs:   e.Refs,
			}, nil
		})
}

func newTableWriter[T1, T2 any](w io.Writer, orderBy func(T1, T1) bool, conv func(T2) (T1, error)) stream.WriteCloser[T2] {
	tw := textprint.NewTableWriter[T1](w, textprint.OrderBy(orderBy))
	cw := stream.ConvertWriter[T1](tw, conv)
	return stream.NewWriteCloser(cw, tw)
}

// eventReader adapts a trace reader to the stream interface consumed by the
// print writers.
type eventReader struct {
	reader *nstrace.Reader
}

func (r *eventReader) Read(events []nstrace.Event) (n int, err error) {
	for n < len(events) && r.reader.Next() {
		events[n] = r.reader.Event()
		n++
	}
	if n > 0 {
		return n, nil
	}
	if err := r.reader.Err(); err != nil {
		return 0, err
	}
	return 0, io.EOF
}
