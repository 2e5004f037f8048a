// Package state is the single source of truth for the UI. All mutations
// flow through named intents on the Store; the presentation layer only
// reads snapshots and listens for change notifications.
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"whisper-gui/internal/domain"
	"whisper-gui/internal/engine"
	"whisper-gui/internal/jobs"
	"whisper-gui/internal/registry"
	"whisper-gui/internal/session"
)

// ErrBusy is returned when an intent is refused because a conflicting
// operation is still in flight.
var ErrBusy = errors.New("operation already in progress")

// Snapshot is the complete observable application state.
type Snapshot struct {
	Models           []domain.ModelAvailability `json:"models"`
	SelectedModel    string                     `json:"selectedModel,omitempty"`
	AudioPath        string                     `json:"audioPath,omitempty"`
	OutputFormat     domain.OutputFormat        `json:"outputFormat"`
	Language         string                     `json:"language"`
	OutputLog        string                     `json:"outputLog"`
	DownloadingModel string                     `json:"downloadingModel,omitempty"`
	Download         *session.View              `json:"download,omitempty"`
	Transcribing     bool                       `json:"transcribing"`
	LastError        string                     `json:"lastError,omitempty"`
}

// Store coordinates the registry client, download session, and job
// runner into one consistent snapshot. A running job freezes registry
// mutations; an in-flight download does not block starting a job.
type Store struct {
	mu sync.Mutex

	eng      engine.Engine
	registry *registry.Client
	runner   *jobs.Runner
	logger   *zap.Logger

	models        []domain.ModelAvailability
	selectedModel string
	audioPath     string
	outputFormat  domain.OutputFormat
	language      string
	lastError     string

	downloading *session.Tracker
	sub         *engine.Subscription
	onChange    func(Snapshot)
}

// New creates a store with default format and language selections.
func New(e engine.Engine, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		eng:          e,
		registry:     registry.New(e, logger),
		runner:       jobs.NewRunner(),
		logger:       logger,
		outputFormat: domain.FormatText,
		language:     domain.LanguageAuto,
	}
}

// SetOnChange registers the snapshot observer. The callback runs outside
// the store lock and must not mutate the store.
func (s *Store) SetOnChange(fn func(Snapshot)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Attach subscribes the store to the engine event stream. It must be
// called before any operation that can emit events and balanced by one
// Detach on shutdown.
func (s *Store) Attach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		return
	}
	s.sub = s.eng.Events().Subscribe(s.handleEvent)
}

// Detach unsubscribes from the engine event stream.
func (s *Store) Detach() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

// Snapshot returns the current observable state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Refresh replaces the model list wholesale with a fresh catalog fetch.
// On failure the list is emptied and the error surfaced.
func (s *Store) Refresh(ctx context.Context) error {
	models, err := s.registry.List(ctx)

	s.mu.Lock()
	if err != nil {
		s.models = nil
		s.lastError = err.Error()
	} else {
		s.models = models
		s.lastError = ""
		s.reconcileSelectionLocked()
	}
	s.mu.Unlock()

	s.notify()
	return err
}

// SelectModel chooses the active model. Only downloaded models can be
// selected, and selection is frozen while a job is running.
func (s *Store) SelectModel(name string) error {
	s.mu.Lock()
	if s.runner.IsRunning() {
		s.mu.Unlock()
		return fmt.Errorf("%w: transcription is running", ErrBusy)
	}
	if !s.downloadedLocked(name) {
		err := fmt.Errorf("%w: model %q is not downloaded", domain.ErrInvalidRequest, name)
		s.lastError = err.Error()
		s.mu.Unlock()
		s.notify()
		return err
	}
	s.selectedModel = name
	s.mu.Unlock()

	s.notify()
	return nil
}

// SetAudioPath records the selected audio file.
func (s *Store) SetAudioPath(path string) {
	s.mu.Lock()
	s.audioPath = path
	s.mu.Unlock()
	s.notify()
}

// SetOutputFormat chooses the transcript format.
func (s *Store) SetOutputFormat(format domain.OutputFormat) error {
	if !domain.ValidFormat(format) {
		return fmt.Errorf("%w: unknown output format %q", domain.ErrInvalidRequest, format)
	}

	s.mu.Lock()
	s.outputFormat = format
	s.mu.Unlock()
	s.notify()
	return nil
}

// SetLanguage chooses the transcription language.
func (s *Store) SetLanguage(code string) error {
	if !domain.ValidLanguage(code) {
		return fmt.Errorf("%w: unknown language %q", domain.ErrInvalidRequest, code)
	}

	s.mu.Lock()
	s.language = code
	s.mu.Unlock()
	s.notify()
	return nil
}

// DismissError clears the current error banner.
func (s *Store) DismissError() {
	s.mu.Lock()
	s.lastError = ""
	s.mu.Unlock()
	s.notify()
}

// Download fetches a model, blocking until the download settles. The
// session tracker consumes progress events while the request is in
// flight and is torn down unconditionally on settlement, so late
// progress events for this download are discarded.
func (s *Store) Download(ctx context.Context, name string) error {
	s.mu.Lock()
	if s.runner.IsRunning() {
		s.mu.Unlock()
		return fmt.Errorf("%w: transcription is running", ErrBusy)
	}
	if s.downloading != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: download of %q", ErrBusy, s.downloading.ModelName())
	}
	s.downloading = session.NewTracker(name)
	s.mu.Unlock()
	s.notify()

	models, err := s.registry.Download(ctx, name)

	s.mu.Lock()
	s.downloading = nil
	if err != nil {
		s.lastError = err.Error()
	} else {
		s.models = models
		s.lastError = ""
		s.reconcileSelectionLocked()
	}
	s.mu.Unlock()

	s.notify()
	return err
}

// Delete removes a downloaded model. When the deleted model was the
// current selection, the first remaining downloaded model is selected,
// or the selection is cleared.
func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	if s.runner.IsRunning() {
		s.mu.Unlock()
		return fmt.Errorf("%w: transcription is running", ErrBusy)
	}
	if s.downloading != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: download of %q", ErrBusy, s.downloading.ModelName())
	}
	s.mu.Unlock()

	models, err := s.registry.Delete(ctx, name)

	s.mu.Lock()
	if err != nil {
		s.lastError = err.Error()
	} else {
		s.models = models
		s.lastError = ""
		s.reconcileSelectionLocked()
	}
	s.mu.Unlock()

	s.notify()
	return err
}

// StartTranscription starts a job for the current selections. Missing
// audio or model fails locally before any engine call.
func (s *Store) StartTranscription(ctx context.Context) error {
	s.mu.Lock()
	job, err := s.runner.Start(s.audioPath, s.selectedModel, s.outputFormat, s.language)
	if err != nil {
		s.lastError = err.Error()
		s.mu.Unlock()
		s.notify()
		return err
	}
	s.lastError = ""
	s.mu.Unlock()
	s.notify()

	req := engine.TranscriptionRequest{
		AudioPath:    job.AudioPath,
		ModelName:    job.ModelName,
		OutputFormat: job.OutputFormat,
		Language:     engineLanguage(job.Language),
	}
	if err := s.eng.StartTranscription(ctx, req); err != nil {
		s.mu.Lock()
		_, _ = s.runner.Complete(false, err.Error())
		s.lastError = err.Error()
		s.mu.Unlock()
		s.notify()
		return fmt.Errorf("%w: %v", domain.ErrTranscriptionFailed, err)
	}

	s.logger.Info("transcription job started",
		zap.String("job", job.ID),
		zap.String("model", job.ModelName),
	)
	return nil
}

// handleEvent applies one engine event to the store.
func (s *Store) handleEvent(event engine.Event) {
	switch event.Kind {
	case engine.EventDownloadProgress:
		if event.Progress == nil {
			return
		}
		s.mu.Lock()
		applied := s.downloading != nil && s.downloading.Apply(*event.Progress)
		s.mu.Unlock()
		if applied {
			s.notify()
		}

	case engine.EventTranscriptionOutput:
		if event.Output == nil {
			return
		}
		if s.runner.Append(event.Output.Line, event.Output.IsError) {
			s.notify()
		}

	case engine.EventTranscriptionComplete:
		if event.Complete == nil {
			return
		}
		errMsg := event.Complete.Error
		if !event.Complete.Success && errMsg == "" {
			errMsg = domain.ErrTranscriptionFailed.Error()
		}
		job, err := s.runner.Complete(event.Complete.Success, errMsg)
		if err != nil {
			return
		}

		s.mu.Lock()
		if event.Complete.Success {
			s.lastError = ""
		} else {
			s.lastError = errMsg
		}
		s.mu.Unlock()

		s.logger.Info("transcription job settled",
			zap.String("job", job.ID),
			zap.String("status", string(job.Status)),
		)
		s.notify()
	}
}

// snapshotLocked assembles the observable state. Caller holds the lock.
func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Models:        append([]domain.ModelAvailability(nil), s.models...),
		SelectedModel: s.selectedModel,
		AudioPath:     s.audioPath,
		OutputFormat:  s.outputFormat,
		Language:      s.language,
		OutputLog:     s.runner.Log(),
		Transcribing:  s.runner.IsRunning(),
		LastError:     s.lastError,
	}
	if s.downloading != nil {
		snap.DownloadingModel = s.downloading.ModelName()
		view := s.downloading.View()
		snap.Download = &view
	}
	return snap
}

// notify invokes the change observer with a fresh snapshot.
func (s *Store) notify() {
	s.mu.Lock()
	fn := s.onChange
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
}

// reconcileSelectionLocked drops a selection that is no longer
// downloaded, falling back to the first downloaded model.
func (s *Store) reconcileSelectionLocked() {
	if s.selectedModel == "" || s.downloadedLocked(s.selectedModel) {
		return
	}

	s.selectedModel = ""
	for _, m := range s.models {
		if m.Downloaded {
			s.selectedModel = m.Model.Name
			return
		}
	}
}

// downloadedLocked reports whether the named model is downloaded.
func (s *Store) downloadedLocked(name string) bool {
	for _, m := range s.models {
		if m.Model.Name == name {
			return m.Downloaded
		}
	}
	return false
}

// engineLanguage maps the auto sentinel to an absent language.
func engineLanguage(code string) string {
	if code == domain.LanguageAuto {
		return ""
	}
	return code
}
