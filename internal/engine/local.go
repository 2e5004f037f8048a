package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"whisper-gui/internal/domain"
)

const downloadChunkSize = 64 * 1024

// Local is the in-process engine: it stores models on the local disk,
// downloads them over HTTPS, and shells out to whisper-cli for
// transcription. All asynchronous outcomes are published on its broker.
type Local struct {
	modelsDir   string
	whisperPath string
	catalog     []domain.ModelDescriptor
	client      *http.Client
	broker      *Broker
	runner      transcriptRunner
	logger      *zap.Logger

	stat     func(string) (os.FileInfo, error)
	mkdirAll func(string, os.FileMode) error
	remove   func(string) error
	rename   func(string, string) error
	create   func(string) (*os.File, error)
}

// NewLocal builds a local engine rooted at modelsDir.
func NewLocal(modelsDir string, logger *zap.Logger) *Local {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Local{
		modelsDir:   modelsDir,
		whisperPath: "whisper-cli",
		catalog:     Catalog(),
		client:      &http.Client{},
		broker:      NewBroker(1000),
		runner:      &execStreamRunner{},
		logger:      logger,
		stat:        os.Stat,
		mkdirAll:    os.MkdirAll,
		remove:      os.Remove,
		rename:      os.Rename,
		create:      os.Create,
	}
}

// Events returns the engine event broker.
func (e *Local) Events() *Broker {
	return e.broker
}

// ModelPath returns the on-disk location for a named model, whether or
// not it has been downloaded.
func (e *Local) ModelPath(name string) string {
	return filepath.Join(e.modelsDir, "ggml-"+name+".bin")
}

// ListModels returns the catalog with local download state attached.
func (e *Local) ListModels(ctx context.Context) ([]domain.ModelAvailability, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.ModelAvailability, 0, len(e.catalog))
	for _, model := range e.catalog {
		info, err := e.stat(e.ModelPath(model.Name))
		downloaded := err == nil && !info.IsDir()
		out = append(out, domain.ModelAvailability{
			Model:      model,
			Downloaded: downloaded,
		})
	}
	return out, nil
}

// DownloadModel streams the model file to disk, publishing one progress
// event per chunk, and returns when the download settles. A partial file
// is written next to the target and renamed into place on success.
func (e *Local) DownloadModel(ctx context.Context, name string) error {
	model, found := e.findModel(name)
	if !found {
		return fmt.Errorf("unknown model: %s", name)
	}

	if err := e.mkdirAll(e.modelsDir, 0o755); err != nil {
		return fmt.Errorf("create models directory: %w", err)
	}

	targetPath := e.ModelPath(name)
	tempPath := targetPath + ".tmp"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, model.SourceURL, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("start download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("download failed with status: %s", resp.Status)
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}

	file, err := e.create(tempPath)
	if err != nil {
		return fmt.Errorf("create model file: %w", err)
	}

	e.logger.Info("model download started",
		zap.String("model", name),
		zap.Int64("bytesTotal", total),
	)

	var downloaded int64
	buf := make([]byte, downloadChunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := file.Write(buf[:n]); writeErr != nil {
				file.Close()
				_ = e.remove(tempPath)
				return fmt.Errorf("write model file: %w", writeErr)
			}
			downloaded += int64(n)
			e.publishProgress(name, downloaded, total)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			file.Close()
			_ = e.remove(tempPath)
			return fmt.Errorf("read download stream: %w", readErr)
		}
	}

	if err := file.Close(); err != nil {
		_ = e.remove(tempPath)
		return fmt.Errorf("finalize model file: %w", err)
	}
	if err := e.rename(tempPath, targetPath); err != nil {
		_ = e.remove(tempPath)
		return fmt.Errorf("finalize download: %w", err)
	}

	e.logger.Info("model download finished",
		zap.String("model", name),
		zap.Int64("bytesDownloaded", downloaded),
	)
	return nil
}

// DeleteModel removes a downloaded model file. Deleting a model that is
// not on disk succeeds.
func (e *Local) DeleteModel(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, found := e.findModel(name); !found {
		return fmt.Errorf("unknown model: %s", name)
	}

	if err := e.remove(e.ModelPath(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete model file: %w", err)
	}

	e.logger.Info("model deleted", zap.String("model", name))
	return nil
}

// StartTranscription spawns whisper-cli against the audio file. It
// returns once the process is running; every output line and the final
// outcome are published as events.
func (e *Local) StartTranscription(ctx context.Context, req TranscriptionRequest) error {
	if _, err := e.stat(req.AudioPath); err != nil {
		return fmt.Errorf("audio file not found: %s", req.AudioPath)
	}

	modelPath := e.ModelPath(req.ModelName)
	if _, err := e.stat(modelPath); err != nil {
		return fmt.Errorf("model %q not downloaded", req.ModelName)
	}

	args := buildWhisperArgs(modelPath, req.AudioPath, string(req.OutputFormat), req.Language)

	var mu sync.Mutex
	var stdout strings.Builder
	onLine := func(line string, isErr bool) {
		if !isErr {
			mu.Lock()
			stdout.WriteString(line)
			stdout.WriteByte('\n')
			mu.Unlock()
		}
		e.broker.Publish(Event{
			Kind:   EventTranscriptionOutput,
			Output: &TranscriptionOutput{Line: line, IsError: isErr},
		})
	}

	wait, err := e.runner.Start(ctx, e.whisperPath, args, onLine)
	if err != nil {
		return fmt.Errorf("spawn %s: %w", e.whisperPath, err)
	}

	e.logger.Info("transcription started",
		zap.String("audio", req.AudioPath),
		zap.String("model", req.ModelName),
		zap.String("format", string(req.OutputFormat)),
	)

	go func() {
		code := wait()
		mu.Lock()
		output := stdout.String()
		mu.Unlock()

		if code == 0 {
			e.broker.Publish(Event{
				Kind:     EventTranscriptionComplete,
				Complete: &TranscriptionComplete{Success: true, Output: output},
			})
			return
		}

		e.logger.Warn("transcription process failed", zap.Int("exitCode", code))
		e.broker.Publish(Event{
			Kind: EventTranscriptionComplete,
			Complete: &TranscriptionComplete{
				Success: false,
				Error:   fmt.Sprintf("process exited with code %d", code),
			},
		})
	}()
	return nil
}

// findModel looks up one catalog entry by name.
func (e *Local) findModel(name string) (domain.ModelDescriptor, bool) {
	for _, model := range e.catalog {
		if model.Name == name {
			return model, true
		}
	}
	return domain.ModelDescriptor{}, false
}

// publishProgress emits one download-progress event.
func (e *Local) publishProgress(name string, downloaded, total int64) {
	percent := 0.0
	if total > 0 {
		percent = float64(downloaded) / float64(total) * 100
	}
	e.broker.Publish(Event{
		Kind: EventDownloadProgress,
		Progress: &DownloadProgress{
			ModelName:       name,
			BytesDownloaded: downloaded,
			BytesTotal:      total,
			Percent:         percent,
		},
	})
}
