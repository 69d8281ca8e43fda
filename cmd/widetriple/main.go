// Command widetriple stores and queries RDF triples on a wide-column store.
//
// Usage:
//
//	widetriple insert <s> <p> <o>        Insert one triple
//	widetriple delete <s> <p> <o>        Delete one triple
//	widetriple query [-s S] [-p P] [-o O] Print matching triples
//	widetriple count                     Count stored triples
//	widetriple load <file.nt>            Bulk-load N-Triples
//	widetriple audit                     Check secondary indexes
//	widetriple clear --yes               Delete every row
//	widetriple test <scenarios-dir>      Run conformance scenarios
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/widetriple/internal/cli"
)

// Version information (set via ldflags during build)
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand()
	root.Version = version

	err := root.ExecuteContext(ctx)
	var exitErr *cli.ExitError
	if err != nil && !(errors.As(err, &exitErr) && exitErr.Reported) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return cli.GetExitCode(err)
}
