package main

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/davecgh/go-spew/spew"
	"golang.org/x/sync/errgroup"

	"github.com/picokern/netsock/internal/print/human"
	"github.com/picokern/netsock/pkg/sock"
)

const stressUsage = `
Usage:	netsock stress [options]

   The stress sub-command hammers one descriptor table shared by concurrent
   workers, checking that no descriptor is ever handed out twice, that every
   descriptor stays within the table range, and that no slot leaks once the
   workers are done.

Options:
   -c, --config path       Path to the netsock configuration file (overrides NETSOCKCONFIG)
   -h, --help              Show this usage information
   -i, --iterations count  Allocation cycles every worker performs (default to 10000)
   -n, --workers count     Number of concurrent workers (default to 16)
`

func stress(ctx context.Context, args []string) error {
	var (
		workers    = human.Count(16)
		iterations = human.Count(10000)
	)

	flagSet := newFlagSet("netsock stress", stressUsage)
	customVar(flagSet, &workers, "n", "workers")
	customVar(flagSet, &iterations, "i", "iterations")

	args, err := parseFlags(flagSet, args)
	if err != nil {
		return err
	}
	if len(args) != 0 {
		return usageError(`Expected no positional arguments` + useCmd("stress"))
	}
	if workers < 1 || iterations < 1 {
		return usageError(`The number of workers and iterations must both be positive` + useCmd("stress"))
	}

	config, err := loadConfig()
	if err != nil {
		return err
	}
	table, err := sock.NewTable(config.TableOptions()...)
	if err != nil {
		return err
	}
	defer table.DecRef()

	var (
		capacity = table.Capacity()
		base     = table.Base()
		claims   = make([]atomic.Bool, capacity)
		allocs   atomic.Int64
		exhausts atomic.Int64
	)

	group, ctx := errgroup.WithContext(ctx)
	for w := 0; w < int(workers); w++ {
		group.Go(func() error {
			for n := 0; n < int(iterations); n++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				fd, err := table.Allocate()
				if err != nil {
					if err == sock.EMFILE {
						exhausts.Add(1)
						continue
					}
					return err
				}
				allocs.Add(1)
				if fd < base || fd >= base+sock.Sockfd(capacity) {
					return fmt.Errorf("descriptor %d outside the table range [%d,%d):\n%s",
						fd, base, base+sock.Sockfd(capacity), spew.Sdump(table.Stats()))
				}
				slot := int(fd - base)
				if claims[slot].Swap(true) {
					return fmt.Errorf("descriptor %d handed out twice:\n%s",
						fd, spew.Sdump(table.Stats()))
				}
				table.Retain(fd)
				table.Release(fd)
				claims[slot].Store(false)
				table.Release(fd)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	if free := table.Free(); free != capacity {
		return fmt.Errorf("%d descriptors leaked after all workers released theirs:\n%s",
			capacity-free, spew.Sdump(table.Stats()))
	}

	fmt.Printf("%v workers performed %v allocations over %d slots (%v exhaustions), no violations\n",
		workers, human.Count(allocs.Load()), capacity, human.Count(exhausts.Load()))
	return nil
}
