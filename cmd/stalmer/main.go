package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Stdout, os.Stderr, os.Args[1:])
	stop()
	if err != nil {
		if exitErr, ok := err.(*ExitError); ok {
			if exitErr.Message != "" {
				fmt.Fprintln(os.Stderr, exitErr.Message)
			}
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// ExitError несёт код выхода: 1 — ошибки модели или генерации, 2 — ошибки использования.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string { return e.Message }

func usageErr(format string, args ...any) *ExitError {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}

const usage = `stalmer - application DSL compiler and generator.

Usage:
  stalmer <command> [options]

Commands:
  validate   compile the DSL and report every error (--dump prints the IR as JSON)
  generate   compile and run the generators, optionally migrate
  migrate    apply the generated database schema
  serve      expose the compiled model over HTTP

Run "stalmer <command> -h" for the options of a command.
`

// run: вся логика main, удобно для тестов.
func run(ctx context.Context, outW, logW io.Writer, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(outW, usage)
		return &ExitError{Code: 2}
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "-h", "--help", "help":
		fmt.Fprint(outW, usage)
		return nil
	case "validate":
		return runValidate(ctx, outW, logW, rest)
	case "generate":
		return runGenerate(ctx, outW, logW, rest)
	case "migrate":
		return runMigrate(ctx, outW, logW, rest)
	case "serve":
		return runServe(ctx, outW, logW, rest)
	default:
		return usageErr("unknown command %q (want validate|generate|migrate|serve)", cmd)
	}
}
