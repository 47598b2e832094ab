package gen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"stalmer/internal/ir"
	"stalmer/internal/logging"
)

// Result: итог одного генератора.
type Result struct {
	Generator string        `json:"generator"`
	Files     []FileResult  `json:"files"`
	Duration  time.Duration `json:"duration"`
	Skipped   bool          `json:"skipped,omitempty"`
	Err       error         `json:"-"`
}

func (r Result) OK() bool { return r.Err == nil }

// Report: итог запуска. RunID в артефакты не попадает.
type Report struct {
	RunID   string   `json:"runId"`
	Results []Result `json:"results"`
}

func (r *Report) Succeeded() []Result { return r.filter(true) }
func (r *Report) Failed() []Result    { return r.filter(false) }
func (r *Report) OK() bool            { return len(r.Failed()) == 0 }

// Err объединяет ошибки всех упавших генераторов.
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Failed() {
		errs = append(errs, res.Err)
	}
	return errors.Join(errs...)
}

func (r *Report) filter(ok bool) []Result {
	var out []Result
	for _, res := range r.Results {
		if res.OK() == ok {
			out = append(out, res)
		}
	}
	return out
}

var (
	entropyMu sync.Mutex
	entropy   io.Reader = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

func newRunID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Generate запускает включённые генераторы в порядке регистрации.
// Каждый пишет только в outputRoot/<name>. Ошибка или паника одного генератора
// попадает в отчёт и не останавливает независимые; зависимые от упавшего пропускаются.
// Ошибка возвращается только до запуска: незнакомый генератор или опции.
func (r *Registry) Generate(ctx context.Context, app *ir.Application, outputRoot string, enabled []string, opts Options) (*Report, error) {
	gens, err := r.selected(enabled)
	if err != nil {
		return nil, err
	}
	resolved, err := opts.Resolve(app)
	if err != nil {
		return nil, err
	}

	report := &Report{RunID: newRunID()}
	logger := logging.FromContext(ctx).With("run_id", report.RunID)
	logger.Debug("Generation started.", "generators", namesOf(gens), "output", outputRoot)

	rendered := make(map[string]FileTree, len(gens))
	failed := make(map[string]bool)

	for _, g := range gens {
		name := g.Name()
		start := time.Now()
		res := Result{Generator: name}

		if dep := failedDependency(g, failed); dep != "" {
			res.Skipped = true
			res.Err = &GenerationError{Generator: name, Err: fmt.Errorf("skipped: dependency %s failed", dep)}
		} else {
			req := &Request{
				App:       app,
				OutputDir: filepath.Join(outputRoot, name),
				Options:   resolved,
				Upstream:  make(map[string]FileTree, len(g.DependsOn())),
			}
			for _, dep := range g.DependsOn() {
				req.Upstream[dep] = rendered[dep]
			}
			tree, err := safeGenerate(ctx, g, req)
			if err == nil {
				rendered[name] = tree
				res.Files, err = writeTree(ctx, req.OutputDir, tree)
			}
			if err != nil {
				res.Err = &GenerationError{Generator: name, Err: err}
			}
		}
		res.Duration = time.Since(start)

		if res.Err != nil {
			failed[name] = true
			logger.Error("Generator failed.", "generator", name, "skipped", res.Skipped, "error", res.Err)
		} else {
			logger.Info("Generator finished.", "generator", name, "files", len(res.Files), "written", countWritten(res.Files), "duration", res.Duration)
		}
		report.Results = append(report.Results, res)
	}
	return report, nil
}

// safeGenerate превращает панику генератора в ошибку.
func safeGenerate(ctx context.Context, g Generator, req *Request) (tree FileTree, err error) {
	defer func() {
		if p := recover(); p != nil {
			logging.FromContext(ctx).Debug("Generator panic.", "generator", g.Name(), "stack", string(debug.Stack()))
			tree, err = nil, fmt.Errorf("panic: %v", p)
		}
	}()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tree, err = g.Generate(ctx, req)
	if err == nil && tree == nil {
		tree = FileTree{}
	}
	return tree, err
}

func failedDependency(g Generator, failed map[string]bool) string {
	for _, dep := range g.DependsOn() {
		if failed[dep] {
			return dep
		}
	}
	return ""
}

func namesOf(gens []Generator) []string {
	out := make([]string, len(gens))
	for i, g := range gens {
		out[i] = g.Name()
	}
	return out
}

func countWritten(files []FileResult) int {
	n := 0
	for _, f := range files {
		if f.Written {
			n++
		}
	}
	return n
}
