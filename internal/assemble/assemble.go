// Package assemble merges rendered pages, and an optional cover, into the
// final output document.
package assemble

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Sentinel errors.
var (
	ErrIncompleteSequence = errors.New("incomplete page sequence")
	ErrMerge              = errors.New("assembling output failed")
	ErrUnknownFormat      = errors.New("unknown output format")
	ErrCleanupRefused     = errors.New("output lies inside the working directory")
)

// Format is the output document type.
type Format string

// Supported formats.
const (
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatPDF, FormatHTML:
		return f, nil
	case "":
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("%w: %q (use pdf or html)", ErrUnknownFormat, s)
	}
}

// Ext returns the file extension, without the dot.
func (f Format) Ext() string { return string(f) }

// UnitKind tells what a document unit holds.
type UnitKind int

const (
	UnitPage UnitKind = iota
	UnitCover
	UnitInfo
)

// Unit is one element of the output, in document order.
type Unit struct {
	Kind  UnitKind
	Index int // page index for UnitPage, -1 otherwise
}

func (u Unit) String() string {
	switch u.Kind {
	case UnitCover:
		return "cover"
	case UnitInfo:
		return "info"
	default:
		return strconv.Itoa(u.Index)
	}
}

// Document describes a written output file.
type Document struct {
	Path   string
	Format Format
	Units  []Unit
	Pages  int // pages in the file; for HTML, the number of units
}

// SequenceError reports a gap or duplicate in the page indices.
type SequenceError struct {
	Index     int
	Duplicate bool
}

func (e *SequenceError) Error() string {
	if e.Duplicate {
		return fmt.Sprintf("%v: page %d appears twice", ErrIncompleteSequence, e.Index)
	}
	return fmt.Sprintf("%v: page %d is missing", ErrIncompleteSequence, e.Index)
}

func (e *SequenceError) Unwrap() error { return ErrIncompleteSequence }

// CheckSequence verifies that indices are exactly 0..len-1 in any order.
// The first missing index is reported.
func CheckSequence(indices []int) error {
	sorted := slices.Clone(indices)
	slices.Sort(sorted)
	for i, idx := range sorted {
		switch {
		case idx == i:
		case idx < i:
			return &SequenceError{Index: idx, Duplicate: true}
		default:
			return &SequenceError{Index: i}
		}
	}
	return nil
}

// Info is an optional information page placed after the cover.
type Info struct {
	PDF  string // one-page PDF, used by AssemblePDF
	HTML string // fragment, used by AssembleHTML
}

// Assembler writes output documents.
type Assembler struct {
	conf   *model.Configuration
	info   Info
	logger *slog.Logger
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithInfo adds an information page.
func WithInfo(info Info) Option {
	return func(a *Assembler) { a.info = info }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Assembler) {
		if l != nil {
			a.logger = l
		}
	}
}

var disableConfigDir sync.Once

// New creates an Assembler.
func New(opts ...Option) *Assembler {
	// pdfcpu would otherwise create a config directory in the user's home.
	disableConfigDir.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	a := &Assembler{
		conf:   conf,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}
