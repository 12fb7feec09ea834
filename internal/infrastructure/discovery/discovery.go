// Package discovery finds measurement data directories in a source tree.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/scovctl/internal/application"
	"github.com/felixgeelhaar/scovctl/internal/domain"
	"github.com/felixgeelhaar/scovctl/internal/pathutil"
	"github.com/felixgeelhaar/scovctl/pkg/measurement"
)

// DataDirName is the directory name instrumented builds write into.
const DataDirName = "scoverage-data"

var skipDirs = map[string]struct{}{
	"vendor":       {},
	"node_modules": {},
}

// Walker discovers every directory holding at least one measurement file.
type Walker struct {
	Logger *slog.Logger
}

// Discover walks cfg.Root and returns one module per data directory, in
// lexical path order.
func (w Walker) Discover(ctx context.Context, cfg application.DiscoverConfig) ([]domain.Module, error) {
	root := cfg.Root
	if root == "" {
		root = "."
	}
	root, err := pathutil.ValidatePath(root)
	if err != nil {
		return nil, fmt.Errorf("discover root: %w", err)
	}

	var dirs []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == root {
				return walkErr
			}
			w.logger().Debug("skipping unreadable path", slog.String("path", p), slog.Any("error", walkErr))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p != root {
			name := d.Name()
			if strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if _, skip := skipDirs[name]; skip {
				return filepath.SkipDir
			}
			rel := relSlash(root, p)
			if excluded(rel, cfg.Exclude) {
				w.logger().Debug("excluded", slog.String("path", rel))
				return filepath.SkipDir
			}
		}
		has, err := hasMeasurements(p)
		if err != nil {
			return err
		}
		if has {
			dirs = append(dirs, p)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("discover root %s: %w", root, err)
		}
		return nil, fmt.Errorf("discover: %w", err)
	}

	modules := make([]domain.Module, 0, len(dirs))
	used := make(map[string]struct{}, len(dirs))
	for _, dir := range dirs {
		name := ModuleName(root, dir)
		if _, dup := used[name]; dup {
			name = relSlash(root, dir)
		}
		used[name] = struct{}{}
		modules = append(modules, domain.Module{Name: name, DataDir: dir})
		w.logger().Info("discovered data directory", slog.String("module", name), slog.String("dataDir", dir))
	}
	return modules, nil
}

// ModuleName derives a module name from a data directory path by dropping
// the build output segments (scoverage-data, scala-<version>, target).
// A data directory at the root is named after the root.
func ModuleName(root, dataDir string) string {
	rel := relSlash(root, dataDir)
	segs := strings.Split(rel, "/")
	if rel == "." {
		segs = nil
	}
	if n := len(segs); n > 0 && segs[n-1] == DataDirName {
		segs = segs[:n-1]
	}
	if n := len(segs); n > 0 && strings.HasPrefix(segs[n-1], "scala-") {
		segs = segs[:n-1]
	}
	if n := len(segs); n > 0 && segs[n-1] == "target" {
		segs = segs[:n-1]
	}
	if len(segs) == 0 {
		abs, err := filepath.Abs(root)
		if err != nil {
			return filepath.Base(root)
		}
		return filepath.Base(abs)
	}
	return strings.Join(segs, "/")
}

func hasMeasurements(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return false, nil
		}
		return false, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := measurement.ParseFileName(e.Name()); ok {
			return true, nil
		}
	}
	return false, nil
}

func relSlash(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}

func excluded(rel string, patterns []string) bool {
	for _, pattern := range patterns {
		pattern = strings.TrimPrefix(filepath.ToSlash(pattern), "./")
		pattern = strings.TrimSuffix(pattern, "/")
		if matchSegments(strings.Split(pattern, "/"), strings.Split(rel, "/")) {
			return true
		}
	}
	return false
}

// matchSegments matches slash-separated segments with path.Match, where a
// "**" segment matches zero or more segments.
func matchSegments(pat, name []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			if len(pat) == 1 {
				return true
			}
			for i := 0; i <= len(name); i++ {
				if matchSegments(pat[1:], name[i:]) {
					return true
				}
			}
			return false
		}
		if len(name) == 0 {
			return false
		}
		ok, err := path.Match(pat[0], name[0])
		if err != nil || !ok {
			return false
		}
		pat, name = pat[1:], name[1:]
	}
	return len(name) == 0
}

func (w Walker) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.New(slog.DiscardHandler)
}
