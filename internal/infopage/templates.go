package infopage

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alnah/go-bookdl/internal/fileutil"
)

// Template file names, looked up in the custom directory first.
const (
	templateFile = "info.md.tmpl"
	styleFile    = "info.css"
)

// Loader errors.
var (
	ErrInvalidTemplateDir = errors.New("invalid template directory")
	ErrTemplateRead       = errors.New("failed to read template")
)

//go:embed templates/*
var embedded embed.FS

// loader reads templates from a custom directory with fallback to the
// embedded defaults. A file missing from the custom directory falls back;
// any other read error does not.
type loader struct {
	dir string // empty when only embedded templates are used
}

func newLoader(dir string) (*loader, error) {
	if dir == "" {
		return &loader{}, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplateDir, err)
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		abs = real
	}
	if !fileutil.DirExists(abs) {
		return nil, fmt.Errorf("%w: not a directory: %s", ErrInvalidTemplateDir, abs)
	}
	return &loader{dir: abs}, nil
}

func (l *loader) load(name string) (string, error) {
	if l.dir != "" {
		data, err := l.loadCustom(name)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}
	data, err := embedded.ReadFile("templates/" + name)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrTemplateRead, name, err)
	}
	return string(data), nil
}

// loadCustom reads name from the custom directory, refusing symlinks that
// resolve outside of it.
func (l *loader) loadCustom(name string) (string, error) {
	p := filepath.Join(l.dir, name)
	real, err := filepath.EvalSymlinks(p)
	if err != nil {
		return "", err
	}
	inside, err := fileutil.IsInside(l.dir, real)
	if err != nil || !inside {
		return "", fmt.Errorf("%w: %s escapes %s", fileutil.ErrPathTraversal, name, l.dir)
	}
	data, err := os.ReadFile(real) // #nosec G304 -- contained in l.dir
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		return "", fmt.Errorf("%w: %s: %v", ErrTemplateRead, name, err)
	}
	return string(data), nil
}
