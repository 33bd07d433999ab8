package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/picokern/netsock/internal/engine"
	"github.com/picokern/netsock/internal/print/human"
	"github.com/picokern/netsock/internal/print/jsonprint"
	"github.com/picokern/netsock/internal/print/textprint"
	"github.com/picokern/netsock/internal/print/yamlprint"
	"github.com/picokern/netsock/internal/stream"
	"github.com/picokern/netsock/internal/task"
	nstrace "github.com/picokern/netsock/internal/trace"
	"github.com/picokern/netsock/pkg/sock"
)

const runUsage = `
Usage:	netsock run [options]

   The run sub-command boots the loopback engine and spawns a set of tasks,
   each owning a descriptor table. Every task opens a connected socket pair
   and forks echo tasks sharing its table; the task then measures the round
   trip of its messages through the echo sockets.

   Passing --record writes every descriptor table operation to a trace file
   which can be inspected later with 'netsock trace'.

Options:
   -c, --config path               Path to the netsock configuration file (overrides NETSOCKCONFIG)
   -f, --forks count               Echo tasks forked by every task (default to 1)
   -h, --help                      Show this usage information
   -m, --messages count            Messages every task round trips (default to 16)
   -n, --tasks count               Number of tasks to spawn (default to 4)
   -o, --output format             Output format of the report, one of: text, json, yaml
   -q, --quiet                     Only display the task ids in the report
   -R, --record path               Record descriptor events to the file at path
       --record-batch-size count   Number of events written per batch (default to 256)
       --record-compression type   Compression to use when writing the recording, either snappy or zstd (default to zstd)
   -s, --message-size size         Size of every message (default to 512)
   -t, --type type                 Socket type opened by the tasks, either stream or dgram (default to stream)
   -T, --throughput rate           Throttle the engine to a number of bytes per second
   -v, --verbose                   Enable debug logging of the engine and tasks
`

func run(ctx context.Context, args []string) error {
	var (
		tasks       = human.Count(4)
		forks       = human.Count(1)
		messages    = human.Count(16)
		messageSize = human.Bytes(512)
		st          = socktype("stream")
		throughput  human.Rate
		record      human.Path
		batchSize   human.Count
		codecName   = compression("")
		output      = outputFormat("text")
		quiet       = false
		verbose     = false
	)

	flagSet := newFlagSet("netsock run", runUsage)
	customVar(flagSet, &tasks, "n", "tasks")
	customVar(flagSet, &forks, "f", "forks")
	customVar(flagSet, &messages, "m", "messages")
	customVar(flagSet, &messageSize, "s", "message-size")
	customVar(flagSet, &st, "t", "type")
	customVar(flagSet, &throughput, "T", "throughput")
	customVar(flagSet, &record, "R", "record")
	customVar(flagSet, &batchSize, "record-batch-size")
	customVar(flagSet, &codecName, "record-compression")
	customVar(flagSet, &output, "o", "output")
	boolVar(flagSet, &quiet, "q", "quiet")
	boolVar(flagSet, &verbose, "v", "verbose")

	args, err := parseFlags(flagSet, args)
	if err != nil {
		return err
	}
	if len(args) != 0 {
		return usageError(`Expected no positional arguments` + useCmd("run"))
	}
	if tasks < 1 || forks < 0 || messages < 1 || messageSize < 1 {
		return usageError(`The number of tasks and messages and the message size must all be positive` + useCmd("run"))
	}

	config, err := loadConfig()
	if err != nil {
		return err
	}

	log := zap.NewNop()
	if verbose {
		log = zap.Must(zap.NewDevelopment())
		defer func() { _ = log.Sync() }()
	}

	engineOpts := config.EngineOptions()
	if throughput > 0 {
		engineOpts = append(engineOpts, engine.Throttle(rate.Limit(throughput), int(throughput)))
	}
	engineOpts = append(engineOpts, engine.Logger(log))

	lo := engine.NewLoopback(engineOpts...)
	if err := sock.Initialize(lo); err != nil {
		return err
	}
	// The buffer must hold a whole message along with the framing overhead
	// of its segments, or a task writing ahead of its readers would stall.
	if n := int(messageSize); n+n/64+64 > lo.BufferSize() {
		return usageError(`The message size %v does not fit in the engine buffers (%v)`+useCmd("run"),
			messageSize, human.Bytes(lo.BufferSize()))
	}

	var rec *recorder
	if record != "" {
		batch, codec, err := config.TraceOptions()
		if err != nil {
			return err
		}
		if batchSize > 0 {
			batch = int(batchSize)
		}
		if codecName != "" {
			if codec, err = nstrace.ParseCompression(string(codecName)); err != nil {
				return err
			}
		}
		path, err := record.Resolve()
		if err != nil {
			return err
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		rec = &recorder{w: nstrace.NewWriter(f, batch, codec)}
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry := task.NewRegistry(ctx,
		task.Logger(log),
		task.TableOptions(config.TableOptions()...),
	)
	defer registry.Close()

	var (
		mu      sync.Mutex
		reports []taskReport
	)

	typ := sock.STREAM
	if st == "dgram" {
		typ = sock.DGRAM
	}

	for i := 0; i < int(tasks); i++ {
		r := &taskRun{
			engine:   lo,
			registry: registry,
			rec:      rec,
			typ:      typ,
			kind:     string(st),
			forks:    int(forks),
			messages: int(messages),
			size:     int(messageSize),
			report: func(report taskReport) {
				mu.Lock()
				reports = append(reports, report)
				mu.Unlock()
			},
		}
		if _, err := registry.Spawn(fmt.Sprintf("task-%d", i), r.main); err != nil {
			return err
		}
	}

	if err := registry.WaitAll(); err != nil {
		return err
	}
	if rec != nil {
		if err := rec.w.Flush(); err != nil {
			return err
		}
	}

	var writer stream.WriteCloser[taskReport]
	switch output {
	case "json":
		writer = jsonprint.NewWriter[taskReport](os.Stdout)
	case "yaml":
		writer = yamlprint.NewWriter[taskReport](os.Stdout)
	default:
		opts := []textprint.TableOption[taskReport]{
			textprint.OrderBy(func(r1, r2 taskReport) bool { return r1.ID < r2.ID }),
		}
		if quiet {
			opts = append(opts,
				textprint.Header[taskReport](false),
				textprint.List[taskReport](true),
			)
		}
		writer = textprint.NewTableWriter[taskReport](os.Stdout, opts...)
	}
	defer writer.Close()

	_, err = stream.Copy[taskReport](writer, stream.NewReader(reports...))
	return err
}

// taskReport is one line of the report printed when the run completes.
type taskReport struct {
	ID       string         `json:"id"       text:"TASK ID"`
	Type     string         `json:"type"     text:"TYPE"`
	Sockets  int            `json:"sockets"  text:"SOCKETS"`
	Sent     human.Bytes    `json:"sent"     text:"SENT"`
	Received human.Bytes    `json:"received" text:"RECEIVED"`
	Duration human.Duration `json:"duration" text:"DURATION"`
}

// taskRun carries the parameters shared by one task and the echo tasks
// forked from it.
type taskRun struct {
	engine   *engine.Loopback
	registry *task.Registry
	rec      *recorder
	typ      sock.Socktype
	kind     string
	forks    int
	messages int
	size     int
	sockets  atomic.Int32
	report   func(taskReport)
}

// main is the body of one simulated task. It opens the socket pair, forks
// the echo tasks, round trips its messages, then tears everything down in
// the reverse order.
func (r *taskRun) main(ctx context.Context) error {
	self, _ := task.FromContext(ctx)
	table := task.Sockets(ctx)
	start := time.Now()

	r.rec.record(ctx, nstrace.TableCreate, -1, int32(table.Refs()))

	fd1, fd2, err := r.engine.Pair(ctx, r.typ)
	if err != nil {
		if err == sock.EMFILE {
			r.rec.record(ctx, nstrace.SockExhaust, -1, 0)
		}
		return err
	}
	r.rec.record(ctx, nstrace.SockAlloc, fd1, 1)
	r.rec.record(ctx, nstrace.SockAlloc, fd2, 1)
	r.sockets.Add(2)

	// Pin the echo descriptor while forked tasks hold duplicates of it, so
	// that releasing it in this task cannot recycle the slot under them.
	table.Retain(fd2)
	r.rec.record(ctx, nstrace.SockRetain, fd2, int32(table.Get(fd2).Refs()))

	children := make([]task.ID, 0, r.forks)
	for i := 0; i < r.forks; i++ {
		name := fmt.Sprintf("%s/echo-%d", self.Name, i)
		child, err := r.registry.Fork(self.ID, name, func(ctx context.Context) error {
			return r.echo(ctx, fd2)
		})
		if err != nil {
			return err
		}
		children = append(children, child)
	}

	sent, received, err := r.pingpong(ctx, fd1, fd2)
	if err != nil {
		return err
	}

	r.rec.record(ctx, nstrace.SockRelease, fd1, 0)
	if err := r.engine.Close(ctx, fd1); err != nil {
		return err
	}
	for _, child := range children {
		if err := r.registry.Wait(child); err != nil {
			return err
		}
	}
	table.Release(fd2)
	r.rec.record(ctx, nstrace.SockRelease, fd2, int32(table.Get(fd2).Refs()))
	r.rec.record(ctx, nstrace.SockRelease, fd2, 0)
	if err := r.engine.Close(ctx, fd2); err != nil {
		return err
	}

	r.report(taskReport{
		ID:       self.ID.String(),
		Type:     r.kind,
		Sockets:  int(r.sockets.Load()),
		Sent:     human.Bytes(sent),
		Received: human.Bytes(received),
		Duration: human.Duration(time.Since(start)),
	})
	r.rec.record(ctx, nstrace.TableDrop, -1, int32(table.Refs())-1)
	return nil
}

// pingpong round trips the configured number of messages on fd1, one at a
// time so that at most one message is in flight per direction.
func (r *taskRun) pingpong(ctx context.Context, fd1, fd2 sock.Sockfd) (sent, received int64, err error) {
	msg := make([]byte, r.size)
	for i := range msg {
		msg[i] = byte(i)
	}
	buf := make([]byte, r.size)

	for i := 0; i < r.messages; i++ {
		for off := 0; off < len(msg); {
			n, err := r.engine.Send(ctx, fd1, msg[off:])
			if err != nil {
				return sent, received, err
			}
			off += n
			sent += int64(n)
		}
		echoFD := fd1
		if r.forks == 0 {
			// Without echo tasks the message is read back from the peer
			// descriptor directly.
			echoFD = fd2
		}
		for off := 0; off < r.size; {
			n, err := r.engine.Recv(ctx, echoFD, buf[off:])
			if err != nil {
				return sent, received, err
			}
			off += n
			received += int64(n)
		}
	}
	return sent, received, nil
}

// echo is the body of a forked task: it duplicates the shared descriptor
// and writes every message it receives back to the peer, until the peer
// closes the connection.
func (r *taskRun) echo(ctx context.Context, fd sock.Sockfd) error {
	table := task.Sockets(ctx)
	r.rec.record(ctx, nstrace.TableShare, -1, int32(table.Refs()))

	dup, err := r.engine.Dup(ctx, fd)
	if err != nil {
		if err == sock.EMFILE {
			r.rec.record(ctx, nstrace.SockExhaust, -1, 0)
		}
		return err
	}
	r.rec.record(ctx, nstrace.SockAlloc, dup, 1)
	r.sockets.Add(1)

	buf := make([]byte, r.size)
	for {
		n, err := r.engine.Recv(ctx, dup, buf)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		for off := 0; off < n; {
			wn, err := r.engine.Send(ctx, dup, buf[off:n])
			if err != nil {
				return err
			}
			off += wn
		}
	}

	r.rec.record(ctx, nstrace.SockRelease, dup, 0)
	if err := r.engine.Close(ctx, dup); err != nil {
		return err
	}
	r.rec.record(ctx, nstrace.TableDrop, -1, int32(table.Refs())-1)
	return nil
}

// recorder writes descriptor events on behalf of the simulated tasks. A nil
// recorder drops every event, which is how runs without --record operate.
type recorder struct {
	w *nstrace.Writer
}

func (r *recorder) record(ctx context.Context, kind nstrace.Kind, fd sock.Sockfd, refs int32) {
	if r == nil {
		return
	}
	e := nstrace.Event{
		Time: time.Now().UnixNano(),
		Kind: kind,
		FD:   int32(fd),
		Refs: refs,
	}
	if t, ok := task.FromContext(ctx); ok {
		e.Task = t.ID
	}
	_ = r.w.WriteEvent(e)
}
