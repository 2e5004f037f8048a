package engine

import (
	"context"

	"whisper-gui/internal/domain"
)

// TranscriptionRequest describes one transcription run.
// An empty Language means automatic detection.
type TranscriptionRequest struct {
	AudioPath    string
	ModelName    string
	OutputFormat domain.OutputFormat
	Language     string
}

// Engine is the boundary to the subsystem that owns model storage and
// performs transcription. Request/response calls are synchronous;
// progress and transcription output arrive out-of-band on the event
// broker returned by Events.
type Engine interface {
	// ListModels returns the full catalog with local download state.
	ListModels(ctx context.Context) ([]domain.ModelAvailability, error)

	// DownloadModel fetches a model and returns once the download has
	// reached a terminal outcome. Progress is reported as events.
	DownloadModel(ctx context.Context, name string) error

	// DeleteModel removes a locally downloaded model.
	DeleteModel(ctx context.Context, name string) error

	// StartTranscription spawns a transcription run. It returns once the
	// run has started; output lines and the completion notice arrive as
	// events.
	StartTranscription(ctx context.Context, req TranscriptionRequest) error

	// Events exposes the engine's event broker.
	Events() *Broker
}
