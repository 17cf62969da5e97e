package bookdl

import (
	"errors"
	"fmt"

	"github.com/alnah/go-bookdl/internal/assemble"
	"github.com/alnah/go-bookdl/internal/fetch"
	"github.com/alnah/go-bookdl/internal/metadata"
	"github.com/alnah/go-bookdl/internal/render"
	"github.com/alnah/go-bookdl/internal/session"
	"github.com/alnah/go-bookdl/internal/workdir"
)

// Sentinel errors, re-exported from the stages so callers can match them
// with errors.Is without importing internal packages.
var (
	// Authentication.
	ErrInvalidCredentials = session.ErrInvalidCredentials
	ErrNoCookiesFound     = session.ErrNoCookiesFound
	ErrSSOHandshakeFailed = session.ErrSSOHandshakeFailed
	ErrInvalidSession     = session.ErrInvalidSession

	// Metadata resolution.
	ErrUnauthorized       = metadata.ErrUnauthorized
	ErrNotFound           = metadata.ErrNotFound
	ErrMetadataIncomplete = metadata.ErrMetadataIncomplete

	// Page fetching.
	ErrPageFetchFailed = fetch.ErrPageFetchFailed
	ErrPageDenied      = fetch.ErrPageDenied

	// Rendering.
	ErrRenderTimeout = render.ErrRenderTimeout
	ErrEngineCrashed = render.ErrEngineCrashed
	ErrCapture       = render.ErrCapture

	// Assembly.
	ErrIncompleteSequence = assemble.ErrIncompleteSequence
	ErrMerge              = assemble.ErrMerge
	ErrUnknownFormat      = assemble.ErrUnknownFormat

	// Convert.
	ErrNoManifest  = workdir.ErrNoManifest
	ErrMissingPage = workdir.ErrMissingPage

	// Request validation.
	ErrEmptyBookURL     = errors.New("book URL cannot be empty")
	ErrInvalidBookURL   = errors.New("book URL must be an http(s) URL")
	ErrEmptySourceDir   = errors.New("source directory cannot be empty")
	ErrInvalidPageCount = errors.New("page count cannot be negative")
)

// errNetworkSentinels are the transport failures of the different stages.
var errNetworkSentinels = []error{session.ErrNetwork, metadata.ErrNetwork, fetch.ErrNetwork}

// IsNetwork reports whether err is a transport failure in any stage.
func IsNetwork(err error) bool {
	for _, s := range errNetworkSentinels {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}

// Stage names a pipeline step.
type Stage string

// Pipeline stages, in execution order.
const (
	StageValidate Stage = "validate"
	StageAuth     Stage = "auth"
	StageResolve  Stage = "resolve"
	StageFetch    Stage = "fetch"
	StageRender   Stage = "render"
	StageAssemble Stage = "assemble"
	StageInternal Stage = "internal"
)

// StageError attributes a failure to a stage and, when it concerns one
// page, to that page's index. Page is -1 otherwise.
type StageError struct {
	Stage Stage
	Page  int
	Err   error
}

func (e *StageError) Error() string {
	if e.Page >= 0 {
		return fmt.Sprintf("%s: page %d: %v", e.Stage, e.Page, unwrapPage(e.Err))
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// stageError wraps err for stage, extracting the page index when the stage
// reported one. Existing StageErrors pass through.
func stageError(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Page: pageOf(err), Err: err}
}

func pageOf(err error) int {
	var fe *fetch.PageError
	if errors.As(err, &fe) {
		return fe.Index
	}
	var re *render.PageError
	if errors.As(err, &re) {
		return re.Index
	}
	var sq *assemble.SequenceError
	if errors.As(err, &sq) {
		return sq.Index
	}
	return -1
}

// unwrapPage drops the page prefix already printed by StageError.
func unwrapPage(err error) error {
	var fe *fetch.PageError
	if errors.As(err, &fe) && fe == err {
		return fe.Err
	}
	var re *render.PageError
	if errors.As(err, &re) && re == err {
		return re.Err
	}
	return err
}
