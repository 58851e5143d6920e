// twin-story simulates the story spoiler service: JWT login, story CRUD
// under /api/Story, and the /admin control plane for tests.
// Default port: 4300
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/storyspoiler/storycheck/internal/twin/story"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := story.Main(ctx, os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "twin-story: %v\n", err)
		os.Exit(1)
	}
}
