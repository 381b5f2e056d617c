package intake

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
)

// DefaultMaxFiles bounds a crawl.
const DefaultMaxFiles = 500

// skipDirs are build output and dependency trees.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"out":          true,
	"cache":        true,
	"artifacts":    true,
	"broadcast":    true,
	"typechain":    true,
	"lib":          true,
}

type Options struct {
	MaxFiles int
	// IncludeVendored also walks lib/ and node_modules/.
	IncludeVendored bool
	// IncludeTests also reads Foundry *.t.sol and *.s.sol files.
	IncludeTests bool
}

// Result is an ordered batch. Truncated is set when the cap dropped files.
type Result struct {
	Units     []model.SourceUnit
	Truncated bool
	Found     int
}

// Crawl collects .sol files under root in lexical path order, at most
// opts.MaxFiles of them. A file root yields a single unit.
func Crawl(root string, opts Options) (Result, error) {
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = DefaultMaxFiles
	}
	fi, err := os.Stat(root)
	if err != nil {
		return Result{}, fmt.Errorf("intake: %w", err)
	}
	var paths []string
	if !fi.IsDir() {
		paths = []string{root}
		root = filepath.Dir(root)
	} else {
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if path != root && skipDir(d.Name(), opts) {
					return filepath.SkipDir
				}
				return nil
			}
			if wanted(d.Name(), opts) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return Result{}, fmt.Errorf("intake: walk %s: %w", root, err)
		}
	}
	sort.Strings(paths)
	res := Result{Found: len(paths)}
	if len(paths) > opts.MaxFiles {
		paths = paths[:opts.MaxFiles]
		res.Truncated = true
	}
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return res, fmt.Errorf("intake: read %s: %w", p, err)
		}
		name, err := filepath.Rel(root, p)
		if err != nil {
			name = filepath.Base(p)
		}
		res.Units = append(res.Units, model.SourceUnit{Name: filepath.ToSlash(name), Path: p, Text: string(b)})
	}
	return res, nil
}

func skipDir(name string, opts Options) bool {
	if name == "lib" || name == "node_modules" {
		return !opts.IncludeVendored
	}
	return skipDirs[name] || (strings.HasPrefix(name, ".") && name != ".")
}

func wanted(name string, opts Options) bool {
	if !strings.HasSuffix(name, ".sol") {
		return false
	}
	if !opts.IncludeTests && (strings.HasSuffix(name, ".t.sol") || strings.HasSuffix(name, ".s.sol")) {
		return false
	}
	return true
}

// FromPaste wraps pasted source as a unit.
func FromPaste(name, text string) model.SourceUnit {
	if name == "" {
		name = "pasted.sol"
	}
	return model.SourceUnit{Name: name, Text: text}
}

// FromReader reads a whole stream as one unit.
func FromReader(r io.Reader, name string) (model.SourceUnit, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return model.SourceUnit{}, fmt.Errorf("intake: read input: %w", err)
	}
	return FromPaste(name, string(b)), nil
}
