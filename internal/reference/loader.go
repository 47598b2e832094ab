// Package reference читает справочники ролей (rolesDir/*.yaml).
package reference

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var roleCode = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// LoadRoleCatalogs читает все *.yaml/*.yml из dir.
// Имя справочника — name из файла или имя файла без расширения.
func LoadRoleCatalogs(dir string) (map[string]RoleCatalog, error) {
	result := make(map[string]RoleCatalog)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read roles dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var cat RoleCatalog
		if err := yaml.Unmarshal(data, &cat); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		name := cat.Name
		if name == "" {
			name = strings.TrimSuffix(e.Name(), ext)
		}
		if _, dup := result[name]; dup {
			return nil, fmt.Errorf("%s: catalog %q already loaded", path, name)
		}
		for i, it := range cat.Items {
			if !roleCode.MatchString(it.Code) {
				return nil, fmt.Errorf("%s: item %d: role code %q must be UPPER_SNAKE", path, i, it.Code)
			}
		}
		result[name] = cat
	}
	return result, nil
}

// Roles: отсортированное объединение кодов всех справочников.
func Roles(catalogs map[string]RoleCatalog) []string {
	seen := map[string]bool{}
	var out []string
	for _, cat := range catalogs {
		for _, it := range cat.Items {
			if !seen[it.Code] {
				seen[it.Code] = true
				out = append(out, it.Code)
			}
		}
	}
	sort.Strings(out)
	return out
}

// LoadRoles: пустой dir — ролей нет.
func LoadRoles(dir string) ([]string, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, nil
	}
	cats, err := LoadRoleCatalogs(dir)
	if err != nil {
		return nil, err
	}
	return Roles(cats), nil
}
