package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"stalmer/internal/api"
	"stalmer/internal/compiler"
	"stalmer/internal/config"
	"stalmer/internal/dsl"
	"stalmer/internal/gen"
	"stalmer/internal/gen/backend"
	"stalmer/internal/gen/generators"
	"stalmer/internal/ir"
	"stalmer/internal/logging"
	"stalmer/internal/migrate"
	"stalmer/internal/reference"
	"stalmer/internal/validate"
)

// setup разбирает конфигурацию подкоманды и собирает логгер.
// Позиционный аргумент, если есть, заменяет source.
func setup(ctx context.Context, name string, outW, logW io.Writer, args []string, extra func(*flag.FlagSet)) (context.Context, config.Config, error) {
	flags := flag.NewFlagSet("stalmer "+name, flag.ContinueOnError)
	flags.SetOutput(outW)
	if extra != nil {
		extra(flags)
	}
	cfg, err := config.Parse(flags, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ctx, cfg, err
		}
		return ctx, cfg, usageErr("%v", err)
	}
	if flags.NArg() > 1 {
		return ctx, cfg, usageErr("expected at most one source path, got %v", flags.Args())
	}
	if flags.NArg() == 1 {
		cfg.Source = flags.Arg(0)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, logW).With("command", name)
	logger.Debug("Configuration loaded.", "source", cfg.Source, "out", cfg.Out)
	return logging.WithLogger(ctx, logger), cfg, nil
}

func helpIsOK(err error) error {
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	return err
}

func compile(ctx context.Context, cfg config.Config, outW io.Writer) (*ir.Application, error) {
	logger := logging.FromContext(ctx)
	roles, err := reference.LoadRoles(cfg.RolesDir)
	if err != nil {
		return nil, usageErr("roles: %v", err)
	}
	app, err := compiler.CompileDir(cfg.Source, compiler.Options{Roles: roles, DefaultName: defaultName(cfg.Source)})
	if err != nil {
		return nil, compileFailure(outW, err)
	}
	logger.Debug("Model compiled.", "app", app.Name, "entities", len(app.Entities), "pages", len(app.Pages))
	return app, nil
}

// compileFailure печатает все ошибки модели и выбирает код выхода.
func compileFailure(outW io.Writer, err error) error {
	var sem validate.SemanticErrors
	var lexErr *dsl.LexError
	var synErr *dsl.SyntaxError
	switch {
	case errors.As(err, &sem):
		for _, e := range sem {
			fmt.Fprintln(outW, e.Error())
		}
		return &ExitError{Code: 1, Message: fmt.Sprintf("validation failed: %d error(s)", len(sem))}
	case errors.As(err, &lexErr), errors.As(err, &synErr):
		fmt.Fprintln(outW, err.Error())
		return &ExitError{Code: 1, Message: "syntax error"}
	case errors.Is(err, fs.ErrNotExist):
		return usageErr("source: %v", err)
	default:
		return &ExitError{Code: 1, Message: err.Error()}
	}
}

func defaultName(source string) string {
	base := filepath.Base(filepath.Clean(source))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "app"
	}
	return base
}

func runValidate(ctx context.Context, outW, logW io.Writer, args []string) error {
	var dump *bool
	ctx, cfg, err := setup(ctx, "validate", outW, logW, args, func(flags *flag.FlagSet) {
		dump = flags.Bool("dump", false, "Print the IR as JSON")
	})
	if err != nil {
		return helpIsOK(err)
	}
	app, err := compile(ctx, cfg, outW)
	if err != nil {
		return err
	}

	if *dump {
		enc := json.NewEncoder(outW)
		enc.SetIndent("", "  ")
		return enc.Encode(app)
	}
	fmt.Fprintf(outW, "app %s: %d entities, %d enums, %d relations, %d pages, %d views, %d workflows\n",
		app.Name, len(app.Entities), len(app.Enums), len(app.Relations), len(app.Pages), len(app.Views), len(app.Workflows))
	for _, is := range api.Lint(app) {
		target := is.Name
		if is.Field != "" {
			target += "." + is.Field
		}
		fmt.Fprintf(outW, "warning: %s %s: %s [%s]\n", is.Block, target, is.Message, is.Code)
	}
	return nil
}

func runGenerate(ctx context.Context, outW, logW io.Writer, args []string) error {
	ctx, cfg, err := setup(ctx, "generate", outW, logW, args, nil)
	if err != nil {
		return helpIsOK(err)
	}
	opts, err := gen.ParseOptions(cfg.Options)
	if err != nil {
		return usageErr("%v", err)
	}
	app, err := compile(ctx, cfg, outW)
	if err != nil {
		return err
	}

	report, err := generators.Generate(ctx, app, cfg.Out, cfg.Generators, opts)
	if err != nil {
		return usageErr("%v", err)
	}
	printReport(outW, report)
	if !report.OK() {
		return &ExitError{Code: 1, Message: fmt.Sprintf("%d generator(s) failed", len(report.Failed()))}
	}

	if !cfg.Migrate {
		return nil
	}
	resolved, err := opts.Resolve(app)
	if err != nil {
		return usageErr("%v", err)
	}
	return applySchema(ctx, outW, cfg, app, resolved.Database)
}

func printReport(outW io.Writer, report *gen.Report) {
	fmt.Fprintf(outW, "run %s\n", report.RunID)
	for _, res := range report.Results {
		switch {
		case res.Skipped:
			fmt.Fprintf(outW, "  skip %-9s %v\n", res.Generator, res.Err)
		case !res.OK():
			fmt.Fprintf(outW, "  FAIL %-9s %v\n", res.Generator, res.Err)
		default:
			written := 0
			for _, f := range res.Files {
				if f.Written {
					written++
				}
			}
			fmt.Fprintf(outW, "  ok   %-9s %d files, %d written\n", res.Generator, len(res.Files), written)
		}
	}
}

func runMigrate(ctx context.Context, outW, logW io.Writer, args []string) error {
	ctx, cfg, err := setup(ctx, "migrate", outW, logW, args, nil)
	if err != nil {
		return helpIsOK(err)
	}
	opts, err := gen.ParseOptions(cfg.Options)
	if err != nil {
		return usageErr("%v", err)
	}
	app, err := compile(ctx, cfg, outW)
	if err != nil {
		return err
	}
	resolved, err := opts.Resolve(app)
	if err != nil {
		return usageErr("%v", err)
	}
	return applySchema(ctx, outW, cfg, app, resolved.Database)
}

// applySchema: внешняя команда, если задана; иначе schema.sql из дерева бэкенда
// (вместе с пользовательским регионом), а без него — свежий DDL.
func applySchema(ctx context.Context, outW io.Writer, cfg config.Config, app *ir.Application, db ir.Database) error {
	logger := logging.FromContext(ctx)
	if len(cfg.MigrateCmd) > 0 {
		if err := migrate.RunCommand(ctx, cfg.Out, cfg.MigrateCmd, cfg.MigrateTimeout); err != nil {
			return &ExitError{Code: 1, Message: err.Error()}
		}
		fmt.Fprintln(outW, "migration command finished")
		return nil
	}
	if cfg.DBURL == "" {
		return usageErr("migrate: dbUrl is required (--db-url or %sDB_URL)", config.EnvPrefix)
	}

	path := filepath.Join(cfg.Out, backend.Name, filepath.FromSlash(backend.DDLPath))
	ddl, err := os.ReadFile(path)
	switch {
	case err == nil:
		logger.Debug("Using generated schema.", "path", path)
	case errors.Is(err, fs.ErrNotExist):
		s, derr := backend.DDL(app, db)
		if derr != nil {
			return &ExitError{Code: 1, Message: derr.Error()}
		}
		ddl = []byte(s)
	default:
		return &ExitError{Code: 1, Message: err.Error()}
	}

	if cfg.MigrateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.MigrateTimeout)
		defer cancel()
	}
	res, err := migrate.Apply(ctx, db, cfg.DBURL, string(ddl))
	if err != nil {
		return &ExitError{Code: 1, Message: err.Error()}
	}
	fmt.Fprintf(outW, "schema applied: %d statements, %d skipped\n", res.Applied, res.Skipped)
	return nil
}

func runServe(ctx context.Context, outW, logW io.Writer, args []string) error {
	ctx, cfg, err := setup(ctx, "serve", outW, logW, args, nil)
	if err != nil {
		return helpIsOK(err)
	}
	app, err := compile(ctx, cfg, outW)
	if err != nil {
		return err
	}
	logger := logging.FromContext(ctx)
	reload := func(context.Context) (*ir.Application, error) {
		roles, err := reference.LoadRoles(cfg.RolesDir)
		if err != nil {
			return nil, err
		}
		return compiler.CompileDir(cfg.Source, compiler.Options{Roles: roles, DefaultName: defaultName(cfg.Source)})
	}
	return api.Run(ctx, cfg.Addr, api.NewServer(app, reload), logger)
}
