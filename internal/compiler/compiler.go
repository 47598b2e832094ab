// Package compiler связывает стадии: Lex -> Parse -> Validate -> Build.
package compiler

import (
	"stalmer/internal/builder"
	"stalmer/internal/dsl"
	"stalmer/internal/ir"
	"stalmer/internal/validate"
)

type Options struct {
	// Roles: роли из справочников, пополняют замкнутый набор.
	Roles []string
	// DefaultName: имя приложения, если в config { name } его нет.
	DefaultName string
}

// Compile компилирует один исходник. path попадает в позиции ошибок.
func Compile(path, src string, opts Options) (*ir.Application, error) {
	f, err := dsl.ParseSource(path, src)
	if err != nil {
		return nil, err
	}
	return CompileFile(f, opts)
}

// CompileDir компилирует файл или каталог с *.dsl.
func CompileDir(root string, opts Options) (*ir.Application, error) {
	f, err := dsl.Load(root)
	if err != nil {
		return nil, err
	}
	return CompileFile(f, opts)
}

// CompileFile: проверка и сборка уже разобранного дерева.
func CompileFile(f *dsl.File, opts Options) (*ir.Application, error) {
	checked, err := validate.Validate(f, validate.Options{Roles: opts.Roles})
	if err != nil {
		return nil, err
	}
	return builder.Build(checked, builder.Options{DefaultName: opts.DefaultName}), nil
}
