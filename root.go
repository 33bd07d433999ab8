package main

// Notes on program structure
// --------------------------
//
// Netsock uses subcommands to invoke specific functionalities of the program.
// Each subcommand is implemented by a function named after the command, in a
// file of the same name (e.g. the "run" command is implemented by the run
// function in run.go).
//
// The usage message for each command is declared by a constant starting with
// the command name and followed by the suffix "Usage". For example, the usage
// message for the "run" command is declared by the constant runUsage.
//
// The usage message contains a "Usage:	netsock <command>" section presenting
// the structure of the command. Note the tabulation separating "Usage:" and
// "netsock".

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/pprof"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/picokern/netsock/internal/netconf"
	"github.com/picokern/netsock/internal/print/human"
)

const rootUsage = `netsock - Socket descriptor sandbox

   netsock manages tables of socket descriptors shared by lightweight tasks
   and drives traffic between the sockets over an in-memory loopback engine.
   Descriptor activity can be recorded to a trace file and inspected after
   the fact.

Example:

   $ netsock run --record sim.nstrace
   TASK ID                               TYPE    SOCKETS  SENT    RECEIVED  DURATION
   79cb73a8-5fa1-48e6-9fa3-24a8d2bff68c  stream  3        8 KiB   8 KiB     1.25ms
   ...

   $ netsock trace sim.nstrace
   ...

For a list of commands available, run 'netsock help'.`

// configPath is the optional location of the configuration file; every
// command registers the -c flag bound to it through newFlagSet.
var configPath human.Path

// root is the netsock entrypoint.
func root(ctx context.Context, args ...string) int {
	var (
		// Secret options, we don't document them since they are only used for
		// development. Since they are not part of the public interface we may
		// remove or change the syntax at any time.
		cpuProfile human.Path
		memProfile human.Path
	)
	configPath = ""

	flagSet := newFlagSet("netsock", helpUsage)
	customVar(flagSet, &cpuProfile, "cpuprofile")
	customVar(flagSet, &memProfile, "memprofile")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if args = flagSet.Args(); len(args) == 0 {
		fmt.Println(rootUsage)
		return 0
	}

	if cpuProfile != "" {
		path, _ := cpuProfile.Resolve()
		f, err := os.Create(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "WARN: could not create CPU profile: %s\n", err)
		} else {
			defer f.Close()
			_ = pprof.StartCPUProfile(f)
			defer pprof.StopCPUProfile()
		}
	}

	if memProfile != "" {
		path, _ := memProfile.Resolve()
		defer func() {
			f, err := os.Create(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "WARN: could not create memory profile: %s\n", err)
			}
			defer f.Close()
			runtime.GC()
			_ = pprof.WriteHeapProfile(f)
		}()
	}

	cmd, args := args[0], args[1:]

	var err error
	switch cmd {
	case "config":
		err = config(ctx, args)
	case "help":
		err = help(ctx, args)
	case "run":
		err = run(ctx, args)
	case "stress":
		err = stress(ctx, args)
	case "trace":
		err = trace(ctx, args)
	case "version":
		err = version(ctx, args)
	default:
		err = unknown(ctx, cmd)
	}

	switch e := err.(type) {
	case nil:
		return 0
	case exitCode:
		return int(e)
	case usage:
		fmt.Fprintf(os.Stderr, "%s\n", e)
		return 2
	default:
		fmt.Fprintf(os.Stderr, "ERR: netsock %s: %s\n", cmd, err)
		return 1
	}
}

// loadConfig loads the configuration at the location selected by the -c
// option or the NETSOCKCONFIG environment variable.
func loadConfig() (*netconf.Config, error) {
	setConfigPath()
	return netconf.LoadConfig()
}

// openConfig opens the configuration file like loadConfig locates it.
func openConfig() (io.ReadCloser, string, error) {
	setConfigPath()
	return netconf.OpenConfig()
}

func setConfigPath() {
	switch {
	case configPath != "":
		netconf.ConfigPath = configPath
	case os.Getenv("NETSOCKCONFIG") != "":
		netconf.ConfigPath = human.Path(os.Getenv("NETSOCKCONFIG"))
	}
}

// exitCode is an error type returned from command functions to indicate the
// exit code that should be returned by the program.
type exitCode int

func (e exitCode) Error() string {
	return fmt.Sprintf("exit: %d", e)
}

// usage is an error type returned from command functions to indicate a usage
// error.
//
// Usage errors cause the program to exit with status code 2.
type usage string

func usageError(msg string, args ...any) error {
	return usage(fmt.Sprintf(msg, args...))
}

func (e usage) Error() string {
	return string(e)
}

func useCmd(cmd string) string {
	return fmt.Sprintf("\n\nUse 'netsock help %s' to learn more about the command.", cmd)
}

func setEnum[T ~string](enum *T, typ string, value string, options ...string) error {
	for _, option := range options {
		if option == value {
			*enum = T(option)
			return nil
		}
	}
	return fmt.Errorf("unsupported %s: %q (not one of %s)", typ, value, strings.Join(options, ", "))
}

type compression string

func (c compression) String() string {
	return string(c)
}

func (c *compression) Set(value string) error {
	return setEnum(c, "compression type", value, "snappy", "zstd", "none")
}

type socktype string

func (s socktype) String() string {
	return string(s)
}

func (s *socktype) Set(value string) error {
	return setEnum(s, "socket type", value, "stream", "dgram")
}

type outputFormat string

func (o outputFormat) String() string {
	return string(o)
}

func (o *outputFormat) Set(value string) error {
	return setEnum(o, "output format", value, "text", "json", "yaml")
}

func newFlagSet(cmd, usage string) *flag.FlagSet {
	usage = strings.TrimSpace(usage)
	flagSet := flag.NewFlagSet(cmd, flag.ContinueOnError)
	flagSet.Usage = func() { fmt.Println(usage) }
	customVar(flagSet, &configPath, "c", "config")
	return flagSet
}

// parseFlags is a greedy parser which consumes all options known to f, no
// matter where they appear relative to positional arguments, and returns the
// remaining arguments.
func parseFlags(f *flag.FlagSet, args []string) ([]string, error) {
	var unknownArgs []string
	for {
		if err := f.Parse(args); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return nil, exitCode(0)
			}
			return nil, exitCode(2)
		}
		if args = f.Args(); len(args) == 0 {
			return unknownArgs, nil
		}
		i := slices.IndexFunc(args, func(s string) bool {
			return strings.HasPrefix(s, "-")
		})
		if i < 0 {
			i = len(args)
		} else if args[i] == "-" {
			i++
		}
		if i == 0 {
			panic("parsing command line arguments did not error on " + args[0])
		}
		unknownArgs = append(unknownArgs, args[:i]...)
		args = args[i:]
	}
}

func boolVar(f *flag.FlagSet, dst *bool, name string, alias ...string) {
	f.BoolVar(dst, name, *dst, "")
	for _, name := range alias {
		f.BoolVar(dst, name, *dst, "")
	}
}

func customVar(f *flag.FlagSet, dst flag.Value, name string, alias ...string) {
	f.Var(dst, name, "")
	for _, name := range alias {
		f.Var(dst, name, "")
	}
}
