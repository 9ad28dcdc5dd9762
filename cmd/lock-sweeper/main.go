// Command lock-sweeper lists live record claims and removes the stale
// ones. Run it from cron, or by hand after a corrector's machine dies
// mid-session.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/melvinwevers/card-annotation/internal/locks"
	"github.com/melvinwevers/card-annotation/internal/lockstore"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("lock-sweeper", flag.ContinueOnError)
	fs.SetOutput(stderr)
	olderThan := fs.Duration("older-than", locks.DefaultStaleAfter, "claims older than this are removed")
	listOnly := fs.Bool("list", false, "list live claims without removing anything")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	store, err := lockstore.Open(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "open lock store: %v\n", err)
		return 1
	}
	mgr := locks.NewManager(store)

	claims, err := mgr.ListLiveClaims(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "list claims: %v\n", err)
		return 1
	}
	if len(claims) == 0 {
		fmt.Fprintln(stdout, "no live claims")
		return 0
	}
	for _, c := range claims {
		holder := c.Holder
		if c.Corrupted {
			holder = "(corrupt metadata)"
		}
		fmt.Fprintf(stdout, "%s\theld by %s\tage %s\n", c.RecordID, holder, c.Age.Round(time.Second))
	}
	if *listOnly {
		return 0
	}

	swept, err := mgr.SweepStale(ctx, *olderThan)
	if err != nil {
		fmt.Fprintf(stderr, "sweep: %v\n", err)
		return 1
	}
	for _, s := range swept {
		fmt.Fprintf(stdout, "removed stale claim %s (holder %s, age %s)\n", s.RecordID, s.Holder, s.Age.Round(time.Second))
	}
	fmt.Fprintf(stdout, "swept %d of %d claims\n", len(swept), len(claims))
	return 0
}
