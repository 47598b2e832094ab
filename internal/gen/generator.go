// Package gen запускает генераторы артефактов над IR и пишет результат на диск.
package gen

import (
	"context"
	"fmt"
	"sort"

	"stalmer/internal/ir"
)

// FileTree — файлы одного генератора: относительный путь (через "/") -> содержимое.
type FileTree map[string][]byte

// Paths возвращает пути в отсортированном порядке.
func (t FileTree) Paths() []string {
	out := make([]string, 0, len(t))
	for p := range t {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Request: вход генератора. App только для чтения.
type Request struct {
	App       *ir.Application
	OutputDir string
	Options   Options
	// Upstream: деревья генераторов из DependsOn, уже отрендеренные в этом запуске.
	Upstream map[string]FileTree
}

type Generator interface {
	Name() string
	DependsOn() []string
	Generate(ctx context.Context, req *Request) (FileTree, error)
}

// GenerationError: отказ конкретного генератора.
type GenerationError struct {
	Generator string
	Err       error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generator %s: %v", e.Generator, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
