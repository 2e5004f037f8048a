// Package jobs tracks the single allowed transcription job from start
// intent to terminal outcome, accumulating its streamed output.
package jobs

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"whisper-gui/internal/domain"
)

// ErrJobAlreadyRunning is returned when starting a second active job.
var ErrJobAlreadyRunning = errors.New("job already running")

// ErrNoRunningJob is returned when completing while no job is active.
var ErrNoRunningJob = errors.New("no running job")

// Job describes one transcription run.
type Job struct {
	ID           string              `json:"id"`
	AudioPath    string              `json:"audioPath"`
	ModelName    string              `json:"modelName"`
	OutputFormat domain.OutputFormat `json:"outputFormat"`
	Language     string              `json:"language,omitempty"`
	Status       domain.JobStatus    `json:"status"`
	Error        string              `json:"error,omitempty"`
}

// Runner enforces the single-running-job rule and owns the output log.
type Runner struct {
	mu      sync.RWMutex
	current Job
	lines   []string
}

// NewRunner creates a runner in idle state.
func NewRunner() *Runner {
	return &Runner{
		current: Job{Status: domain.JobStatusIdle},
	}
}

// Start validates the request, clears the output log, and moves the job
// to running. Missing audio path or model name fails locally without any
// engine involvement.
func (r *Runner) Start(audioPath, modelName string, format domain.OutputFormat, language string) (Job, error) {
	if strings.TrimSpace(audioPath) == "" {
		return Job{}, fmt.Errorf("%w: audio path is required", domain.ErrInvalidRequest)
	}
	if strings.TrimSpace(modelName) == "" {
		return Job{}, fmt.Errorf("%w: model name is required", domain.ErrInvalidRequest)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current.Status == domain.JobStatusRunning {
		return Job{}, ErrJobAlreadyRunning
	}

	r.current = Job{
		ID:           uuid.NewString(),
		AudioPath:    audioPath,
		ModelName:    modelName,
		OutputFormat: format,
		Language:     language,
		Status:       domain.JobStatusRunning,
	}
	r.lines = nil
	return r.current, nil
}

// Append adds one streamed output line in arrival order. Lines flagged
// as errors go into the same combined log. Appends outside a running job
// are dropped.
func (r *Runner) Append(line string, isError bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current.Status != domain.JobStatusRunning {
		return false
	}
	r.lines = append(r.lines, line)
	return true
}

// Complete moves the running job to its terminal status. The accumulated
// log is retained either way.
func (r *Runner) Complete(success bool, errMsg string) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current.Status != domain.JobStatusRunning {
		return Job{}, ErrNoRunningJob
	}

	if success {
		r.current.Status = domain.JobStatusSucceeded
		r.current.Error = ""
	} else {
		r.current.Status = domain.JobStatusFailed
		r.current.Error = errMsg
	}
	return r.current, nil
}

// Current returns a snapshot of the current job.
func (r *Runner) Current() Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// IsRunning reports whether a job is currently active.
func (r *Runner) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current.Status == domain.JobStatusRunning
}

// Lines returns a copy of the accumulated output lines.
func (r *Runner) Lines() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// Log returns the output log as display text, one terminated line per
// streamed event.
func (r *Runner) Log() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.lines) == 0 {
		return ""
	}
	return strings.Join(r.lines, "\n") + "\n"
}
