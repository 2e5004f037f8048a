package domain

import "errors"

// ErrEngineUnavailable indicates the engine could not be reached for a
// catalog fetch. The model list is left empty until the user retries.
var ErrEngineUnavailable = errors.New("engine unavailable")

// ErrDownloadFailed indicates a model download reached a terminal failure.
var ErrDownloadFailed = errors.New("model download failed")

// ErrDeleteFailed indicates a model delete was rejected by the engine.
var ErrDeleteFailed = errors.New("model delete failed")

// ErrInvalidRequest indicates local validation failed before any engine
// call was made.
var ErrInvalidRequest = errors.New("invalid request")

// ErrTranscriptionFailed indicates the engine reported a failed job on
// completion. Streamed output collected before the failure is retained.
var ErrTranscriptionFailed = errors.New("transcription failed")
