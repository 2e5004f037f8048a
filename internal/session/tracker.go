// Package session tracks one in-flight model download, bridging the gap
// between issuing the download request and the first progress event.
package session

import (
	"fmt"

	"whisper-gui/internal/engine"
)

// Tracker correlates one outstanding download request with its progress
// events. It is owned and torn down by the coordinator; late events for
// a settled session never reach a tracker because the coordinator drops
// the tracker on settlement.
type Tracker struct {
	modelName       string
	hasProgress     bool
	bytesDownloaded int64
	bytesTotal      int64
	percent         float64
}

// NewTracker starts tracking a download for modelName in pending state.
func NewTracker(modelName string) *Tracker {
	return &Tracker{modelName: modelName}
}

// ModelName returns the model this session tracks.
func (t *Tracker) ModelName() string {
	return t.modelName
}

// Apply records a progress event. Events for any other model name are
// discarded and Apply reports false.
func (t *Tracker) Apply(p engine.DownloadProgress) bool {
	if p.ModelName != t.modelName {
		return false
	}

	t.hasProgress = true
	t.bytesDownloaded = p.BytesDownloaded
	t.bytesTotal = p.BytesTotal
	t.percent = clampPercent(p.Percent)
	return true
}

// View is the display state of a download session. Indeterminate is true
// until the first progress event arrives.
type View struct {
	ModelName     string  `json:"modelName"`
	Indeterminate bool    `json:"indeterminate"`
	Percent       float64 `json:"percent"`
	PercentLabel  string  `json:"percentLabel"`
	BytesLabel    string  `json:"bytesLabel"`
}

// View returns the current display state.
func (t *Tracker) View() View {
	if !t.hasProgress {
		return View{ModelName: t.modelName, Indeterminate: true}
	}

	return View{
		ModelName:    t.modelName,
		Percent:      t.percent,
		PercentLabel: fmt.Sprintf("%.1f%%", t.percent),
		BytesLabel:   fmt.Sprintf("%s / %s", FormatBytes(t.bytesDownloaded), FormatBytes(t.bytesTotal)),
	}
}

// clampPercent bounds a reported percentage to [0, 100].
func clampPercent(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
