// Package bootstrap wires the engine, coordinator store, and settings
// into the desktop shell and exposes the UI's intent surface.
package bootstrap

import (
	"context"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"go.uber.org/zap"

	"whisper-gui/internal/config"
	"whisper-gui/internal/diagnostics"
	"whisper-gui/internal/domain"
	"whisper-gui/internal/engine"
	"whisper-gui/internal/logging"
	"whisper-gui/internal/state"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// App owns the engine, the coordinator store, and the wails runtime
// handles for dialogs and frontend push events.
type App struct {
	Store       *state.Store
	Engine      *engine.Local
	Config      config.Store
	Diagnostics domain.DiagnosticReport

	assets  fs.FS
	logger  *zap.Logger
	checker *diagnostics.Checker

	mu         sync.Mutex
	runtimeCtx context.Context
	relay      *engine.Subscription
}

// New builds the application with persisted settings and diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures
// embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	logger, err := logging.New(logging.Options{})
	if err != nil {
		return nil, err
	}

	store := config.NewJSONStore(filepath.Join(config.AppDir(), "settings.json"))
	settings, err := store.Load()
	if err != nil {
		return nil, err
	}

	checker := diagnostics.NewChecker()
	eng := engine.NewLocal(settings.ModelsDir, logger)

	app := &App{
		Store:       state.New(eng, logger),
		Engine:      eng,
		Config:      store,
		Diagnostics: checker.Run(settings.ModelsDir),
		assets:      assets,
		logger:      logger,
		checker:     checker,
	}

	if err := app.Store.SetOutputFormat(domain.OutputFormat(settings.OutputFormat)); err != nil {
		return nil, err
	}
	if err := app.Store.SetLanguage(settings.Language); err != nil {
		return nil, err
	}
	return app, nil
}

// Run starts the desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Whisper GUI",
		Width:       1080,
		Height:      720,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown:  a.Shutdown,
		Bind:        []interface{}{a},
	})
}

// Startup establishes the event subscriptions, pushes snapshots to the
// frontend, and loads the initial model list. Subscriptions are made
// before any operation that could emit events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	a.runtimeCtx = ctx
	a.mu.Unlock()

	a.Store.SetOnChange(func(snap state.Snapshot) {
		a.emit("state:changed", snap)
	})
	a.Store.Attach()

	a.mu.Lock()
	a.relay = a.Engine.Events().Subscribe(a.relayEvent)
	a.mu.Unlock()

	go func() {
		if err := a.Store.Refresh(context.Background()); err != nil {
			a.logger.Warn("initial model list failed", zap.Error(err))
			return
		}
		a.seedSelection()
	}()
}

// Shutdown persists selections and tears down event subscriptions.
func (a *App) Shutdown(ctx context.Context) {
	a.mu.Lock()
	relay := a.relay
	a.relay = nil
	a.runtimeCtx = nil
	a.mu.Unlock()

	if relay != nil {
		relay.Unsubscribe()
	}
	a.Store.Detach()

	snap := a.Store.Snapshot()
	settings, err := a.Config.Load()
	if err != nil {
		a.logger.Warn("load settings on shutdown", zap.Error(err))
		return
	}
	settings.SelectedModel = snap.SelectedModel
	settings.OutputFormat = string(snap.OutputFormat)
	settings.Language = snap.Language
	if err := a.Config.Save(settings); err != nil {
		a.logger.Warn("save settings on shutdown", zap.Error(err))
	}
}

// GetState returns the current application snapshot.
func (a *App) GetState() state.Snapshot {
	return a.Store.Snapshot()
}

// RefreshModels refetches the model catalog.
func (a *App) RefreshModels() state.Snapshot {
	_ = a.Store.Refresh(context.Background())
	return a.Store.Snapshot()
}

// SelectModel chooses the active model.
func (a *App) SelectModel(name string) error {
	return a.Store.SelectModel(name)
}

// SetOutputFormat chooses the transcript format.
func (a *App) SetOutputFormat(format string) error {
	return a.Store.SetOutputFormat(domain.OutputFormat(format))
}

// SetLanguage chooses the transcription language.
func (a *App) SetLanguage(code string) error {
	return a.Store.SetLanguage(code)
}

// DownloadModel downloads a model, returning when it settles.
func (a *App) DownloadModel(name string) error {
	return a.Store.Download(context.Background(), name)
}

// DeleteModel removes a downloaded model.
func (a *App) DeleteModel(name string) error {
	return a.Store.Delete(context.Background(), name)
}

// StartTranscription starts a job for the current selections.
func (a *App) StartTranscription() error {
	return a.Store.StartTranscription(context.Background())
}

// DismissError clears the error banner.
func (a *App) DismissError() {
	a.Store.DismissError()
}

// GetModelPath returns the on-disk location of a named model.
func (a *App) GetModelPath(name string) string {
	return a.Engine.ModelPath(name)
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	return a.Diagnostics
}

// RefreshDiagnostics reruns the startup environment checks.
func (a *App) RefreshDiagnostics() domain.DiagnosticReport {
	settings, err := a.Config.Load()
	if err != nil {
		a.logger.Warn("load settings for diagnostics", zap.Error(err))
		return a.Diagnostics
	}
	a.Diagnostics = a.checker.Run(settings.ModelsDir)
	return a.Diagnostics
}

// GetOutputFormats lists the recognized transcript formats.
func (a *App) GetOutputFormats() []domain.OutputFormat {
	return domain.OutputFormats()
}

// GetLanguages lists the selectable language codes.
func (a *App) GetLanguages() []string {
	return domain.Languages()
}

// PickAudioFile opens a native file dialog for audio selection. An empty
// path means the user cancelled.
func (a *App) PickAudioFile() (string, error) {
	ctx, ok := a.runtimeContext()
	if !ok {
		return "", nil
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select audio file",
		Filters: audioDialogFilter(),
	})
	if err != nil {
		return "", err
	}

	path = strings.TrimSpace(path)
	if path != "" {
		a.Store.SetAudioPath(path)
	}
	return path, nil
}

// relayEvent forwards one engine event to the frontend under its wire
// event name.
func (a *App) relayEvent(event engine.Event) {
	switch event.Kind {
	case engine.EventDownloadProgress:
		a.emit(string(event.Kind), event.Progress)
	case engine.EventTranscriptionOutput:
		a.emit(string(event.Kind), event.Output)
	case engine.EventTranscriptionComplete:
		a.emit(string(event.Kind), event.Complete)
	}
}

// emit pushes one event to the frontend when the runtime is up.
func (a *App) emit(name string, payload interface{}) {
	ctx, ok := a.runtimeContext()
	if !ok {
		return
	}
	wailsruntime.EventsEmit(ctx, name, payload)
}

// seedSelection restores the persisted model selection when it is still
// downloaded.
func (a *App) seedSelection() {
	settings, err := a.Config.Load()
	if err != nil || settings.SelectedModel == "" {
		return
	}
	for _, m := range a.Store.Snapshot().Models {
		if m.Model.Name == settings.SelectedModel && m.Downloaded {
			_ = a.Store.SelectModel(settings.SelectedModel)
			return
		}
	}
}

// runtimeContext returns the wails runtime context once startup ran.
func (a *App) runtimeContext() (context.Context, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, false
	}
	return a.runtimeCtx, true
}

// audioDialogFilter builds the audio extension filter plus all-files.
func audioDialogFilter() []wailsruntime.FileFilter {
	patterns := make([]string, 0, len(domain.AudioExtensions()))
	for _, ext := range domain.AudioExtensions() {
		patterns = append(patterns, "*."+ext)
	}

	return []wailsruntime.FileFilter{
		{
			DisplayName: "Audio files",
			Pattern:     strings.Join(patterns, ";"),
		},
		{
			DisplayName: "All files",
			Pattern:     "*",
		},
	}
}
