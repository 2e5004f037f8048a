package engine

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"whisper-gui/internal/domain"
)

// fakeRunner replays scripted lines and an exit code.
type fakeRunner struct {
	lines    []fakeLine
	exitCode int
	startErr error
	gotName  string
	gotArgs  []string
}

type fakeLine struct {
	text  string
	isErr bool
}

func (r *fakeRunner) Start(ctx context.Context, name string, args []string, onLine func(string, bool)) (func() int, error) {
	if r.startErr != nil {
		return nil, r.startErr
	}
	r.gotName = name
	r.gotArgs = args
	return func() int {
		for _, line := range r.lines {
			onLine(line.text, line.isErr)
		}
		return r.exitCode
	}, nil
}

// statOK pretends every path exists.
func statOK(string) (os.FileInfo, error) {
	return os.Stat(os.TempDir())
}

func collectEvents(eng *Local) (<-chan Event, *Subscription) {
	ch := make(chan Event, 32)
	sub := eng.Events().Subscribe(func(e Event) { ch <- e })
	return ch, sub
}

func waitForComplete(t *testing.T, ch <-chan Event) (TranscriptionComplete, []TranscriptionOutput) {
	t.Helper()
	var outputs []TranscriptionOutput
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-ch:
			switch e.Kind {
			case EventTranscriptionOutput:
				outputs = append(outputs, *e.Output)
			case EventTranscriptionComplete:
				return *e.Complete, outputs
			}
		case <-deadline:
			t.Fatal("no completion event")
		}
	}
}

func TestStartTranscriptionStreamsLinesAndCompletes(t *testing.T) {
	eng := NewLocal(t.TempDir(), nil)
	eng.stat = statOK
	runner := &fakeRunner{
		lines: []fakeLine{
			{text: "hello", isErr: false},
			{text: "progress note", isErr: true},
			{text: "world", isErr: false},
		},
	}
	eng.runner = runner

	ch, sub := collectEvents(eng)
	defer sub.Unsubscribe()

	err := eng.StartTranscription(context.Background(), TranscriptionRequest{
		AudioPath:    "/tmp/audio.wav",
		ModelName:    "tiny",
		OutputFormat: domain.FormatText,
	})
	require.NoError(t, err)

	complete, outputs := waitForComplete(t, ch)
	require.True(t, complete.Success)
	require.Equal(t, "hello\nworld\n", complete.Output)
	require.Empty(t, complete.Error)

	require.Len(t, outputs, 3)
	require.Equal(t, "hello", outputs[0].Line)
	require.False(t, outputs[0].IsError)
	require.Equal(t, "progress note", outputs[1].Line)
	require.True(t, outputs[1].IsError)
	require.Equal(t, "world", outputs[2].Line)
}

func TestStartTranscriptionReportsExitFailure(t *testing.T) {
	eng := NewLocal(t.TempDir(), nil)
	eng.stat = statOK
	eng.runner = &fakeRunner{exitCode: 3}

	ch, sub := collectEvents(eng)
	defer sub.Unsubscribe()

	err := eng.StartTranscription(context.Background(), TranscriptionRequest{
		AudioPath:    "/tmp/audio.wav",
		ModelName:    "tiny",
		OutputFormat: domain.FormatText,
	})
	require.NoError(t, err)

	complete, _ := waitForComplete(t, ch)
	require.False(t, complete.Success)
	require.Equal(t, "process exited with code 3", complete.Error)
}

func TestStartTranscriptionFailsBeforeSpawnOnMissingAudio(t *testing.T) {
	eng := NewLocal(t.TempDir(), nil)
	eng.runner = &fakeRunner{}

	err := eng.StartTranscription(context.Background(), TranscriptionRequest{
		AudioPath: "/definitely/not/here.wav",
		ModelName: "tiny",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "audio file not found")
}

func TestStartTranscriptionPassesWhisperArgs(t *testing.T) {
	eng := NewLocal("/data/models", nil)
	eng.stat = statOK
	runner := &fakeRunner{}
	eng.runner = runner

	ch, sub := collectEvents(eng)
	defer sub.Unsubscribe()

	err := eng.StartTranscription(context.Background(), TranscriptionRequest{
		AudioPath:    "/tmp/a.wav",
		ModelName:    "base",
		OutputFormat: domain.FormatSubRip,
		Language:     "de",
	})
	require.NoError(t, err)
	waitForComplete(t, ch)

	require.Equal(t, "whisper-cli", runner.gotName)
	require.Equal(t, []string{
		"-m", eng.ModelPath("base"),
		"-f", "/tmp/a.wav",
		"-o", "srt",
		"-l", "de",
	}, runner.gotArgs)
}

func TestBuildWhisperArgsOmitsAutoLanguage(t *testing.T) {
	args := buildWhisperArgs("/m.bin", "/a.wav", "txt", "auto")
	require.Equal(t, []string{"-m", "/m.bin", "-f", "/a.wav", "-o", "txt"}, args)

	args = buildWhisperArgs("/m.bin", "/a.wav", "txt", "")
	require.NotContains(t, args, "-l")
}
