// Command tidec compiles Tide source files through the full job pipeline
// and optionally invokes a compiled function.
//
// Usage:
//
//	tidec [flags] file.tide [more.tide ...]
//	tidec -call 21 double.tide
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tidelang/tide"
	"github.com/tidelang/tide/engine"
	"github.com/tidelang/tide/runtime"
	"github.com/tidelang/tide/source"
)

func main() {
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "tidec:", err)
		os.Exit(1)
	}
}

// run encapsulates the main logic for easier testing and error handling.
func run(out io.Writer, args []string) error {
	fs := flag.NewFlagSet("tidec", flag.ContinueOnError)
	fs.SetOutput(out)

	var (
		stackLimit = fs.Int("stack-limit", tide.DefaultConfig().StackLimit, "compile stack budget in slots")
		maxRetries = fs.Int("max-retries", tide.DefaultConfig().MaxRetries, "retries for internal compile faults")
		logLevel   = fs.String("log-level", "warn", "log level: debug, info, warn, error")
		callArgs   = fs.String("call", "", "invoke the compiled function with comma-separated numeric arguments")
	)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return errors.New("expected at least one source file")
	}
	if *callArgs != "" && fs.NArg() != 1 {
		return errors.New("-call works with exactly one source file")
	}

	logger, err := buildLogger(*logLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	cfg := tide.DefaultConfig()
	cfg.StackLimit = *stackLimit
	cfg.MaxRetries = *maxRetries

	rt := runtime.New(logger)
	eng := engine.New(rt,
		engine.WithConfig(cfg),
		engine.WithLogger(logger),
	)

	ctx := context.Background()
	if err := eng.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = eng.Stop(context.Background()) }()

	// Enqueue every file, then wait for all of them. Output goes through
	// one mutex so reports stay whole.
	var outMu sync.Mutex
	var g errgroup.Group
	fns := make([]*runtime.Function, fs.NArg())

	for i, path := range fs.Args() {
		text, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		script := rt.NewScript(source.FromText(string(text)))
		fn := rt.NewFunction(script, strings.TrimSuffix(path, ".tide"), 0, 0, nil)
		fns[i] = fn

		task, err := eng.Enqueue(ctx, fn)
		if err != nil {
			return err
		}

		path := path
		start := time.Now()
		g.Go(func() error {
			art, err := task.Wait(ctx)
			if err != nil {
				return fmt.Errorf("compile %s: %w", path, err)
			}

			instrs := 0
			for _, f := range art.Functions {
				instrs += len(f.Code)
			}

			outMu.Lock()
			defer outMu.Unlock()
			fmt.Fprintf(out, "%s: %d function(s), %d instruction(s) in %s\n",
				path, len(art.Functions), instrs, time.Since(start).Round(time.Microsecond))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if *callArgs == "" {
		return nil
	}

	vals, err := parseCallArgs(*callArgs)
	if err != nil {
		return err
	}

	// The main loop owns the heap while the engine runs; stop it before
	// calling into the runtime from here.
	if err := eng.Stop(ctx); err != nil {
		return err
	}
	result, err := rt.Call(fns[0], vals...)
	if err != nil {
		return fmt.Errorf("call: %w", err)
	}
	fmt.Fprintln(out, result.String())
	return nil
}

func buildLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}

func parseCallArgs(s string) ([]runtime.Value, error) {
	parts := strings.Split(s, ",")
	vals := make([]runtime.Value, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("argument %q is not a number", p)
		}
		vals = append(vals, runtime.Number(n))
	}
	return vals, nil
}
