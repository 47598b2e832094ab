package migrate

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"stalmer/internal/logging"
)

const defaultStopTimeout = 5 * time.Second

// RunCommand запускает внешнюю команду миграции (например, "goose up").
// Вывод построчно уходит в лог; при timeout процесс получает Interrupt, затем Kill.
func RunCommand(ctx context.Context, dir string, command []string, timeout time.Duration) error {
	if len(command) == 0 {
		return errors.New("migration command is empty")
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	logger := logging.FromContext(ctx).With("component", "migrate", "command", command[0])
	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Dir = dir
	cmd.Env = os.Environ()
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = defaultStopTimeout

	stdout := &lineWriter{logger: logger, stream: "stdout", level: slog.LevelInfo}
	stderr := &lineWriter{logger: logger, stream: "stderr", level: slog.LevelWarn}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	logger.Info("Running migration command.", "args", command[1:], "dir", dir)
	start := time.Now()
	err := cmd.Run()
	stdout.Flush()
	stderr.Flush()

	if ctxErr := ctx.Err(); ctxErr != nil && err != nil {
		return fmt.Errorf("migration command %s: %w", command[0], ctxErr)
	}
	if err != nil {
		return fmt.Errorf("migration command %s: %w", command[0], err)
	}
	logger.Info("Migration command finished.", "duration", time.Since(start))
	return nil
}

// lineWriter пишет в лог каждую полную строку; хвост без "\n" — на Flush.
type lineWriter struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	logger *slog.Logger
	stream string
	level  slog.Level
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	for {
		idx := bytes.IndexByte(w.buf.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := w.buf.Next(idx + 1)
		w.emit(line[:len(line)-1])
	}
	return len(p), nil
}

func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() == 0 {
		return
	}
	sc := bufio.NewScanner(&w.buf)
	for sc.Scan() {
		w.emit(sc.Bytes())
	}
	w.buf.Reset()
}

func (w *lineWriter) emit(line []byte) {
	line = bytes.TrimRight(line, "\r")
	if len(line) == 0 {
		return
	}
	w.logger.Log(context.Background(), w.level, string(line), "stream", w.stream)
}
