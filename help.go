package main

import (
	"context"
	"fmt"
	"strings"
)

const helpUsage = `
Usage:	netsock <command> [options]

Commands:
   config    Print or edit the netsock configuration
   help      Show usage information about netsock commands
   run       Run tasks exchanging socket traffic on the loopback engine
   stress    Exercise a shared descriptor table from concurrent workers
   trace     Print the events of a descriptor trace recording
   version   Show the netsock version

Options:
   -c, --config path  Path to the netsock configuration file (overrides NETSOCKCONFIG)
   -h, --help         Show this usage information

For help about a specific command, run 'netsock help <command>'.
`

func help(ctx context.Context, args []string) error {
	flagSet := newFlagSet("netsock help", helpUsage)
	args, err := parseFlags(flagSet, args)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		fmt.Println(strings.TrimSpace(helpUsage))
		return nil
	}
	for _, cmd := range args {
		var usage string
		switch cmd {
		case "config":
			usage = configUsage
		case "help":
			usage = helpUsage
		case "run":
			usage = runUsage
		case "stress":
			usage = stressUsage
		case "trace":
			usage = traceUsage
		case "version":
			usage = versionUsage
		default:
			return usageError("netsock help %s: unknown command", cmd)
		}
		fmt.Println(strings.TrimSpace(usage))
	}
	return nil
}
