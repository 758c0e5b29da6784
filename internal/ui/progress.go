package ui

import (
	"sync"
	"time"
)

// ProgressTracker holds indexing progress shared between the renderer and
// the bubbletea model. It is safe for concurrent use.
type ProgressTracker struct {
	mu         sync.RWMutex
	stage      Stage
	current    int
	total      int
	title      string
	stageStart time.Time
	errors     int
	warnings   int

	// throughput, sampled at most every rateWindow
	lastCurrent int
	lastSample  time.Time
	rate        float64
	peak        float64
}

// ProgressStats contains a snapshot of current progress.
type ProgressStats struct {
	Stage      Stage
	Current    int
	Total      int
	Progress   float64
	Title      string
	Rate       float64 // documents per second
	PeakRate   float64
	Elapsed    time.Duration
	ETA        time.Duration
	ErrorCount int
	WarnCount  int
}

const rateWindow = 500 * time.Millisecond

// NewProgressTracker creates a new progress tracker.
func NewProgressTracker() *ProgressTracker {
	now := time.Now()
	return &ProgressTracker{
		stage:      StagePreparing,
		stageStart: now,
		lastSample: now,
	}
}

// SetStage transitions to a new stage.
func (p *ProgressTracker) SetStage(stage Stage, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	p.stage = stage
	p.total = total
	p.current = 0
	p.title = ""
	p.stageStart = now
	p.lastCurrent = 0
	p.lastSample = now
	p.rate = 0
	p.peak = 0
}

// Update records the number of documents processed so far.
func (p *ProgressTracker) Update(current, total int, title string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = current
	if total > 0 {
		p.total = total
	}
	if title != "" {
		p.title = title
	}

	now := time.Now()
	if elapsed := now.Sub(p.lastSample); elapsed >= rateWindow {
		p.rate = float64(current-p.lastCurrent) / elapsed.Seconds()
		if p.rate > p.peak {
			p.peak = p.rate
		}
		p.lastCurrent = current
		p.lastSample = now
	}
}

// AddError records an error or warning.
func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.IsWarn {
		p.warnings++
	} else {
		p.errors++
	}
}

// Stats returns current statistics snapshot.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	elapsed := time.Since(p.stageStart)
	stats := ProgressStats{
		Stage:      p.stage,
		Current:    p.current,
		Total:      p.total,
		Title:      p.title,
		Rate:       p.rate,
		PeakRate:   p.peak,
		Elapsed:    elapsed,
		ErrorCount: p.errors,
		WarnCount:  p.warnings,
	}

	if p.total > 0 {
		stats.Progress = min(float64(p.current)/float64(p.total), 1.0)
		if p.current > 0 && stats.Progress < 1.0 {
			stats.ETA = time.Duration(float64(elapsed)/stats.Progress) - elapsed
		}
	}
	return stats
}
