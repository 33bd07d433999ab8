package main

import (
	"context"
)

const unknownCommand = `netsock %s: unknown command
For a list of commands available, run 'netsock help.'
`

func unknown(ctx context.Context, cmd string) error {
	return usageError(unknownCommand, cmd)
}
