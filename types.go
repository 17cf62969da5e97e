package bookdl

import (
	"github.com/alnah/go-bookdl/internal/assemble"
	"github.com/alnah/go-bookdl/internal/metadata"
	"github.com/alnah/go-bookdl/internal/session"
)

// Strategy selects how the run authenticates.
type Strategy = session.Strategy

// Authentication strategies. Exactly one is used per run.
const (
	CredentialLogin    = session.CredentialLogin
	CookieImport       = session.CookieImport
	InstitutionalLogin = session.InstitutionalLogin
)

// Credentials are the username and password for CredentialLogin and
// InstitutionalLogin.
type Credentials = session.Credentials

// Platform describes the reading platform's endpoints.
type Platform = session.Platform

// Institution describes the institutional login endpoints.
type Institution = session.Institution

// DefaultPlatform returns the endpoints used when WithPlatform is not set.
func DefaultPlatform() Platform { return session.DefaultPlatform() }

// DefaultInstitution returns the endpoints used when WithInstitution is not
// set.
func DefaultInstitution() Institution { return session.DefaultInstitution() }

// BookMetadata is the resolved identity of a book.
type BookMetadata = metadata.BookMetadata

// Format is the output document type.
type Format = assemble.Format

// Output formats.
const (
	FormatPDF  = assemble.FormatPDF
	FormatHTML = assemble.FormatHTML
)

// ParseFormat validates a format name; "" selects PDF.
func ParseFormat(s string) (Format, error) { return assemble.ParseFormat(s) }

// Document describes the written output file.
type Document = assemble.Document

// Request describes one book download.
type Request struct {
	BookURL     string
	Strategy    Strategy
	Credentials Credentials

	Format    Format // empty means PDF
	OutputDir string // empty means the current directory
	MaxPages  int    // 0 downloads every page
	NoCover   bool
	InfoPage  bool

	// NoConvert stops after fetching and keeps the sources for a later
	// Convert. Keep retains the sources after a successful conversion.
	NoConvert bool
	Keep      bool
}

// ConvertRequest describes the conversion of an existing download.
type ConvertRequest struct {
	Dir       string // directory written by a NoConvert or Keep download
	Output    string // output file; derived from the manifest when empty
	OutputDir string // used when Output is empty
	Format    Format
	NoCover   bool
	InfoPage  bool
}

// Result reports a finished run.
type Result struct {
	Document Document // zero when the run stopped after fetching
	WorkDir  string   // retained sources, empty once removed
	Book     BookMetadata
	Pages    int // pages fetched or read
}

// Progress receives stage progress. Advance may be called concurrently.
type Progress interface {
	Start(stage Stage, total int)
	Advance(stage Stage)
	Done(stage Stage)
}

type noProgress struct{}

func (noProgress) Start(Stage, int) {}
func (noProgress) Advance(Stage)    {}
func (noProgress) Done(Stage)       {}
