package gen

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FileResult: итог записи одного файла.
type FileResult struct {
	Path    string `json:"path"`
	SHA256  string `json:"sha256"`
	Size    int64  `json:"size"`
	Written bool   `json:"written"`
}

// writeTree пишет дерево в dir в порядке путей, сливая пользовательские области.
// Файл, содержимое которого не изменилось, не перезаписывается.
func writeTree(ctx context.Context, dir string, tree FileTree) ([]FileResult, error) {
	results := make([]FileResult, 0, len(tree))
	for _, p := range tree.Paths() {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if err := checkRelPath(p); err != nil {
			return results, err
		}
		full := filepath.Join(dir, filepath.FromSlash(p))

		existing, err := os.ReadFile(full)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return results, fmt.Errorf("read %s: %w", p, err)
		}
		content, err := MergeRegions(tree[p], existing)
		if err != nil {
			return results, fmt.Errorf("%s: %w", p, err)
		}

		if existing != nil && bytes.Equal(content, existing) {
			results = append(results, FileResult{Path: p, SHA256: digest(content), Size: int64(len(content))})
			continue
		}
		n, sum, err := putFile(full, content)
		if err != nil {
			return results, fmt.Errorf("write %s: %w", p, err)
		}
		results = append(results, FileResult{Path: p, SHA256: sum, Size: n, Written: true})
	}
	return results, nil
}

func putFile(full string, content []byte) (int64, string, error) {
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return 0, "", err
	}
	f, err := os.Create(full)
	if err != nil {
		return 0, "", err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), bytes.NewReader(content))
	if err != nil {
		return 0, "", err
	}
	if err := f.Close(); err != nil {
		return 0, "", err
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// checkRelPath не выпускает генератор за пределы своего каталога.
func checkRelPath(p string) error {
	if p == "" || path.IsAbs(p) || strings.Contains(p, "\\") {
		return fmt.Errorf("invalid output path %q", p)
	}
	clean := path.Clean(p)
	if clean != p || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("invalid output path %q", p)
	}
	return nil
}
