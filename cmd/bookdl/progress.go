package main

import (
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/alnah/go-bookdl"
)

// Compile-time interface implementation check.
var _ bookdl.Progress = (*barProgress)(nil)

// barProgress draws one bar at a time. Fetching and rendering overlap for
// PDF output, so the render bar replaces the fetch bar once it starts.
type barProgress struct {
	mu      sync.Mutex
	w       io.Writer
	enabled bool
	stage   bookdl.Stage
	bar     *progressbar.ProgressBar
}

func newBarProgress(w io.Writer, enabled bool) *barProgress {
	return &barProgress{w: w, enabled: enabled}
}

var stageLabels = map[bookdl.Stage]string{
	bookdl.StageFetch:    "Downloading pages",
	bookdl.StageRender:   "Rendering pages  ",
	bookdl.StageAssemble: "Assembling book  ",
}

func (p *barProgress) Start(stage bookdl.Stage, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled {
		return
	}
	if p.bar != nil {
		_ = p.bar.Clear()
	}
	p.stage = stage
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription(stageLabels[stage]),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func (p *barProgress) Advance(stage bookdl.Stage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil && p.stage == stage {
		_ = p.bar.Add(1)
	}
}

func (p *barProgress) Done(stage bookdl.Stage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil && p.stage == stage {
		_ = p.bar.Finish()
		p.bar = nil
	}
}

// Close clears a bar left by a failed run.
func (p *barProgress) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Clear()
		p.bar = nil
	}
}
