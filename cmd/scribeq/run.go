package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/scribeq/scribeq/internal/domain"
)

var runCmd = &cobra.Command{
	Use:   "run <source>...",
	Short: "Transcribe the given files or URLs and exit",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(args)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runOnce(sources []string) error {
	// One-shot mode leaves any persisted daemon queue alone
	svc, err := buildServices(false)
	if err != nil {
		return err
	}
	defer svc.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerDone := svc.manager.Start(ctx)

	created, err := svc.manager.Enqueue(sources, nil)
	if err != nil {
		return err
	}

	waitIdle(ctx, svc)

	// Stop the worker and let it unwind before cleanup: an interrupted
	// item is requeued as pending first, so the removal below deletes
	// its row instead of leaving it for the next daemon session.
	stop()
	<-workerDone

	failed := 0
	for _, c := range created {
		item, ok := svc.manager.Item(c.ID)
		if !ok {
			continue
		}

		switch item.Status {
		case domain.StatusCompleted:
			fmt.Printf("=== %s ===\n%s\n\n", item.Name, item.Result)
		case domain.StatusFailed:
			failed++
			fmt.Fprintf(os.Stderr, "%s: %s\n", item.Name, item.Error)
		default:
			// Interrupted before this item ran
			failed++
			fmt.Fprintf(os.Stderr, "%s: not processed\n", item.Name)
		}

		// Do not leave one-shot items behind for a later daemon run
		svc.manager.Remove(item.ID)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d item(s) failed", failed, len(created))
	}
	return nil
}

// waitIdle blocks until the queue has nothing pending or in flight.
// A buffered wake channel coalesces change notifications; every item
// transition ends in one, so the final recheck always fires.
func waitIdle(ctx context.Context, svc *services) {
	changed := make(chan struct{}, 1)
	svc.manager.OnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	for {
		stats := svc.manager.Stats()
		if stats.Pending == 0 && stats.Processing == 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-changed:
		}
	}
}
