package engine

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"sync"

	"whisper-gui/internal/domain"
)

// transcriptRunner abstracts process execution for testability. Start
// spawns the command and returns a wait function that blocks until both
// output streams are drained and the process exits, returning its exit
// code (-1 when unknown).
type transcriptRunner interface {
	Start(ctx context.Context, name string, args []string, onLine func(line string, isErr bool)) (wait func() int, err error)
}

// execStreamRunner runs commands via os/exec, scanning stdout and stderr
// line by line as they are produced.
type execStreamRunner struct{}

func (r *execStreamRunner) Start(ctx context.Context, name string, args []string, onLine func(string, bool)) (func() int, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go scanLines(&wg, stdout, false, onLine)
	go scanLines(&wg, stderr, true, onLine)

	return func() int {
		wg.Wait()
		err := cmd.Wait()
		if err == nil {
			return 0
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		return -1
	}, nil
}

// scanLines forwards each line from one stream to onLine.
func scanLines(wg *sync.WaitGroup, r io.Reader, isErr bool, onLine func(string, bool)) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		onLine(scanner.Text(), isErr)
	}
}

// buildWhisperArgs builds the whisper-cli invocation. The auto language
// sentinel suppresses the -l flag so the engine detects the language.
func buildWhisperArgs(modelPath, audioPath, format, language string) []string {
	args := []string{
		"-m", modelPath,
		"-f", audioPath,
		"-o", format,
	}

	lang := strings.TrimSpace(language)
	if lang != "" && !strings.EqualFold(lang, domain.LanguageAuto) {
		args = append(args, "-l", lang)
	}
	return args
}
