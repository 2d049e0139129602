// Command tcheranengine runs the Tcheran UCI engine, or one of its bench
// subcommands (perft, bench) for offline testing.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tcheran-engine/tcheran/internal/board"
	"github.com/tcheran-engine/tcheran/internal/engine"
	"github.com/tcheran-engine/tcheran/internal/logging"
	"github.com/tcheran-engine/tcheran/internal/uci"
)

func main() {
	logLevel := flag.String("log-level", "info", "log level: debug, info, notice, warning, error, critical")
	depth := flag.Int("depth", 6, "search/perft depth")
	fen := flag.String("fen", board.StartFEN, "FEN of the position to use for perft/bench")
	debugAssertions := flag.Bool("debug-assertions", false, "panic on make/unmake invariant violations (slow; for bug hunts)")

	flag.Parse()
	logging.Init(*logLevel)
	board.DebugAssertions = *debugAssertions
	log := logging.For("main")

	args := flag.Args()
	mode := "uci"
	if len(args) > 0 {
		mode = args[0]
	}

	switch mode {
	case "uci", "":
		runUCI()
	case "perft":
		runPerft(*fen, *depth)
	case "bench":
		runBench(*fen, *depth)
	default:
		log.Fatalf("unknown subcommand %q (expected uci, perft, or bench)", mode)
	}
}

// runUCI runs the UCI protocol loop under an errgroup. A Ctrl-C / SIGTERM
// only stops the search in progress; the process exits once the protocol
// loop returns, on "quit" or at the end of standard input.
func runUCI() {
	log := logging.For("main")
	log.Info("tcheran starting")

	eng := engine.NewEngine(engine.DefaultOptions())
	protocol := uci.New(eng)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		protocol.Run()
		stop()
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		eng.Stop()
		return ctx.Err()
	})

	_ = g.Wait()
	log.Info("tcheran exiting")
}

func runPerft(fen string, depth int) {
	log := logging.For("main")
	pos, err := board.ParseFEN(fen)
	if err != nil {
		log.Fatalf("invalid FEN %q: %v", fen, err)
	}

	eng := engine.NewEngine(engine.DefaultOptions())

	start := time.Now()
	nodes := eng.Perft(pos, depth)
	elapsed := time.Since(start)

	fmt.Printf("perft(%d) = %d nodes in %v", depth, nodes, elapsed)
	if elapsed > 0 {
		fmt.Printf(" (%.0f nps)", float64(nodes)/elapsed.Seconds())
	}
	fmt.Println()
}

// runBench runs a fixed-depth search from the given position and prints the
// best move, the depth and the elapsed time; it does not report node counts
// or nps.
func runBench(fen string, depth int) {
	log := logging.For("main")
	pos, err := board.ParseFEN(fen)
	if err != nil {
		log.Fatalf("invalid FEN %q: %v", fen, err)
	}

	eng := engine.NewEngine(engine.DefaultOptions())

	start := time.Now()
	move := eng.Search(pos, depth)
	elapsed := time.Since(start)

	fmt.Printf("bestmove %s\n", move.String())
	fmt.Printf("depth %d time %v\n", depth, elapsed)
}
