package state

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"whisper-gui/internal/domain"
	"whisper-gui/internal/engine"
	"whisper-gui/internal/jobs"
)

// fakeEngine is an in-memory engine whose catalog mutates on
// download/delete and whose events are published by the tests.
type fakeEngine struct {
	broker      *engine.Broker
	models      []domain.ModelAvailability
	listErr     error
	downloadErr error
	deleteErr   error
	startErr    error
	startCalls  int
	startReqs   []engine.TranscriptionRequest
	onDownload  func(name string)
}

func newFakeEngine(models ...domain.ModelAvailability) *fakeEngine {
	return &fakeEngine{
		broker: engine.NewBroker(100),
		models: models,
	}
}

func (f *fakeEngine) ListModels(ctx context.Context) ([]domain.ModelAvailability, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.ModelAvailability, len(f.models))
	copy(out, f.models)
	return out, nil
}

func (f *fakeEngine) DownloadModel(ctx context.Context, name string) error {
	if f.onDownload != nil {
		f.onDownload(name)
	}
	if f.downloadErr != nil {
		return f.downloadErr
	}
	f.setDownloaded(name, true)
	return nil
}

func (f *fakeEngine) DeleteModel(ctx context.Context, name string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.setDownloaded(name, false)
	return nil
}

func (f *fakeEngine) StartTranscription(ctx context.Context, req engine.TranscriptionRequest) error {
	f.startCalls++
	f.startReqs = append(f.startReqs, req)
	return f.startErr
}

func (f *fakeEngine) Events() *engine.Broker {
	return f.broker
}

func (f *fakeEngine) setDownloaded(name string, downloaded bool) {
	for i := range f.models {
		if f.models[i].Model.Name == name {
			f.models[i].Downloaded = downloaded
		}
	}
}

func model(name string, downloaded bool) domain.ModelAvailability {
	return domain.ModelAvailability{
		Model:      domain.ModelDescriptor{Name: name, DisplayName: name},
		Downloaded: downloaded,
	}
}

// snapshotRecorder captures every change notification.
type snapshotRecorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *snapshotRecorder) record(snap Snapshot) {
	r.mu.Lock()
	r.snaps = append(r.snaps, snap)
	r.mu.Unlock()
}

func (r *snapshotRecorder) all() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Snapshot, len(r.snaps))
	copy(out, r.snaps)
	return out
}

func newStore(t *testing.T, eng *fakeEngine) *Store {
	t.Helper()
	s := New(eng, nil)
	s.Attach()
	t.Cleanup(s.Detach)
	return s
}

func publishProgress(eng *fakeEngine, name string, downloaded, total int64, percent float64) {
	eng.broker.Publish(engine.Event{
		Kind: engine.EventDownloadProgress,
		Progress: &engine.DownloadProgress{
			ModelName:       name,
			BytesDownloaded: downloaded,
			BytesTotal:      total,
			Percent:         percent,
		},
	})
}

func publishOutput(eng *fakeEngine, line string, isError bool) {
	eng.broker.Publish(engine.Event{
		Kind:   engine.EventTranscriptionOutput,
		Output: &engine.TranscriptionOutput{Line: line, IsError: isError},
	})
}

func publishComplete(eng *fakeEngine, success bool, output, errMsg string) {
	eng.broker.Publish(engine.Event{
		Kind: engine.EventTranscriptionComplete,
		Complete: &engine.TranscriptionComplete{
			Success: success,
			Output:  output,
			Error:   errMsg,
		},
	})
}

func TestRefreshReplacesListWholesale(t *testing.T) {
	eng := newFakeEngine(model("tiny", true), model("base", false))
	s := newStore(t, eng)

	require.NoError(t, s.Refresh(context.Background()))
	require.Len(t, s.Snapshot().Models, 2)

	eng.models = []domain.ModelAvailability{model("base", false)}
	require.NoError(t, s.Refresh(context.Background()))

	snap := s.Snapshot()
	require.Len(t, snap.Models, 1)
	require.Equal(t, "base", snap.Models[0].Model.Name)
}

func TestRefreshFailureLeavesListEmpty(t *testing.T) {
	eng := newFakeEngine(model("tiny", true))
	eng.listErr = errors.New("socket closed")
	s := newStore(t, eng)

	err := s.Refresh(context.Background())
	require.ErrorIs(t, err, domain.ErrEngineUnavailable)

	snap := s.Snapshot()
	require.Empty(t, snap.Models)
	require.NotEmpty(t, snap.LastError)

	eng.listErr = nil
	require.NoError(t, s.Refresh(context.Background()))
	snap = s.Snapshot()
	require.Len(t, snap.Models, 1)
	require.Empty(t, snap.LastError, "successful refresh clears the error")
}

func TestSelectModelRequiresDownloaded(t *testing.T) {
	eng := newFakeEngine(model("tiny", true), model("base", false))
	s := newStore(t, eng)
	require.NoError(t, s.Refresh(context.Background()))

	require.NoError(t, s.SelectModel("tiny"))
	require.Equal(t, "tiny", s.Snapshot().SelectedModel)

	err := s.SelectModel("base")
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
	require.Equal(t, "tiny", s.Snapshot().SelectedModel)
}

func TestStartWithoutAudioNeverReachesEngine(t *testing.T) {
	eng := newFakeEngine(model("tiny", true))
	s := newStore(t, eng)
	require.NoError(t, s.Refresh(context.Background()))
	require.NoError(t, s.SelectModel("tiny"))

	err := s.StartTranscription(context.Background())
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
	require.Zero(t, eng.startCalls, "engine must not be contacted")

	snap := s.Snapshot()
	require.False(t, snap.Transcribing)
	require.NotEmpty(t, snap.LastError)
}

func TestTranscriptionSuccessFlow(t *testing.T) {
	eng := newFakeEngine(model("tiny", true))
	s := newStore(t, eng)

	require.NoError(t, s.Refresh(context.Background()))
	require.NoError(t, s.SelectModel("tiny"))
	s.SetAudioPath("/tmp/interview.wav")

	require.NoError(t, s.StartTranscription(context.Background()))
	require.True(t, s.Snapshot().Transcribing)
	require.Equal(t, 1, eng.startCalls)

	publishOutput(eng, "[00:00] hello", false)
	publishOutput(eng, "[00:05] world", false)
	publishComplete(eng, true, "[00:00] hello\n[00:05] world\n", "")

	snap := s.Snapshot()
	require.False(t, snap.Transcribing)
	require.Empty(t, snap.LastError)
	require.Equal(t, "[00:00] hello\n[00:05] world\n", snap.OutputLog)
}

func TestTranscriptionFailureRetainsStreamedLines(t *testing.T) {
	eng := newFakeEngine(model("tiny", true))
	s := newStore(t, eng)

	require.NoError(t, s.Refresh(context.Background()))
	require.NoError(t, s.SelectModel("tiny"))
	s.SetAudioPath("/tmp/interview.wav")
	require.NoError(t, s.StartTranscription(context.Background()))

	publishOutput(eng, "partial line", true)
	publishComplete(eng, false, "", "engine crashed")

	snap := s.Snapshot()
	require.False(t, snap.Transcribing)
	require.Equal(t, "engine crashed", snap.LastError)
	require.Equal(t, "partial line\n", snap.OutputLog)
}

func TestOutputLogPreservesArrivalOrderAcrossStreams(t *testing.T) {
	eng := newFakeEngine(model("tiny", true))
	s := newStore(t, eng)

	require.NoError(t, s.Refresh(context.Background()))
	require.NoError(t, s.SelectModel("tiny"))
	s.SetAudioPath("/tmp/a.wav")
	require.NoError(t, s.StartTranscription(context.Background()))

	publishOutput(eng, "L1", true)
	publishOutput(eng, "L2", false)

	require.Equal(t, "L1\nL2\n", s.Snapshot().OutputLog)
}

func TestStartTranscriptionPassesLanguageSentinelAsAbsent(t *testing.T) {
	eng := newFakeEngine(model("tiny", true))
	s := newStore(t, eng)

	require.NoError(t, s.Refresh(context.Background()))
	require.NoError(t, s.SelectModel("tiny"))
	s.SetAudioPath("/tmp/a.wav")
	require.NoError(t, s.SetLanguage(domain.LanguageAuto))
	require.NoError(t, s.StartTranscription(context.Background()))

	require.Len(t, eng.startReqs, 1)
	require.Empty(t, eng.startReqs[0].Language)
}

func TestStartWhileRunningIsRefused(t *testing.T) {
	eng := newFakeEngine(model("tiny", true))
	s := newStore(t, eng)

	require.NoError(t, s.Refresh(context.Background()))
	require.NoError(t, s.SelectModel("tiny"))
	s.SetAudioPath("/tmp/a.wav")
	require.NoError(t, s.StartTranscription(context.Background()))

	err := s.StartTranscription(context.Background())
	require.ErrorIs(t, err, jobs.ErrJobAlreadyRunning)
	require.Equal(t, 1, eng.startCalls)
}

func TestSpawnFailureSettlesJob(t *testing.T) {
	eng := newFakeEngine(model("tiny", true))
	eng.startErr = errors.New("whisper-cli not found")
	s := newStore(t, eng)

	require.NoError(t, s.Refresh(context.Background()))
	require.NoError(t, s.SelectModel("tiny"))
	s.SetAudioPath("/tmp/a.wav")

	err := s.StartTranscription(context.Background())
	require.ErrorIs(t, err, domain.ErrTranscriptionFailed)

	snap := s.Snapshot()
	require.False(t, snap.Transcribing)
	require.Contains(t, snap.LastError, "whisper-cli not found")
}

func TestDownloadTracksProgressAndDiscardsStaleEvents(t *testing.T) {
	eng := newFakeEngine(model("tiny", false))
	s := newStore(t, eng)
	require.NoError(t, s.Refresh(context.Background()))

	rec := &snapshotRecorder{}
	s.SetOnChange(rec.record)

	eng.onDownload = func(name string) {
		publishProgress(eng, name, 512, 1024, 50)
		publishProgress(eng, "base", 999, 1000, 99.9)
	}

	require.NoError(t, s.Download(context.Background(), "tiny"))

	snap := s.Snapshot()
	require.Empty(t, snap.DownloadingModel, "session torn down on settlement")
	require.Nil(t, snap.Download)
	require.Empty(t, snap.LastError)
	require.True(t, snap.Models[0].Downloaded, "list refreshed wholesale after settle")

	sawTracked := false
	for _, rs := range rec.all() {
		if rs.Download == nil {
			continue
		}
		require.Equal(t, "tiny", rs.Download.ModelName, "stale event must never surface")
		if !rs.Download.Indeterminate {
			require.Equal(t, 50.0, rs.Download.Percent)
			sawTracked = true
		}
	}
	require.True(t, sawTracked, "expected an in-progress snapshot at 50%")
}

func TestDownloadStartsIndeterminate(t *testing.T) {
	eng := newFakeEngine(model("tiny", false))
	s := newStore(t, eng)
	require.NoError(t, s.Refresh(context.Background()))

	rec := &snapshotRecorder{}
	s.SetOnChange(rec.record)

	require.NoError(t, s.Download(context.Background(), "tiny"))

	snaps := rec.all()
	require.NotEmpty(t, snaps)
	first := snaps[0]
	require.NotNil(t, first.Download)
	require.True(t, first.Download.Indeterminate)
	require.Equal(t, "tiny", first.DownloadingModel)
}

func TestDownloadFailureClearsBusyAndSurfacesError(t *testing.T) {
	eng := newFakeEngine(model("tiny", false))
	eng.downloadErr = errors.New("disk full")
	s := newStore(t, eng)
	require.NoError(t, s.Refresh(context.Background()))

	err := s.Download(context.Background(), "tiny")
	require.ErrorIs(t, err, domain.ErrDownloadFailed)

	snap := s.Snapshot()
	require.Empty(t, snap.DownloadingModel)
	require.Contains(t, snap.LastError, "disk full")
	require.False(t, snap.Models[0].Downloaded, "list unchanged on failure")
}

func TestLateProgressAfterSettlementIsIgnored(t *testing.T) {
	eng := newFakeEngine(model("tiny", false))
	s := newStore(t, eng)
	require.NoError(t, s.Refresh(context.Background()))

	require.NoError(t, s.Download(context.Background(), "tiny"))
	publishProgress(eng, "tiny", 1024, 1024, 100)

	snap := s.Snapshot()
	require.Nil(t, snap.Download)
	require.Empty(t, snap.DownloadingModel)
}

func TestDeleteReselectsFirstRemainingDownloadedModel(t *testing.T) {
	eng := newFakeEngine(model("tiny", true), model("base", true))
	s := newStore(t, eng)

	require.NoError(t, s.Refresh(context.Background()))
	require.NoError(t, s.SelectModel("tiny"))

	require.NoError(t, s.Delete(context.Background(), "tiny"))
	require.Equal(t, "base", s.Snapshot().SelectedModel)

	require.NoError(t, s.Delete(context.Background(), "base"))
	require.Empty(t, s.Snapshot().SelectedModel)
}

func TestDeleteFailureKeepsListAndSelection(t *testing.T) {
	eng := newFakeEngine(model("tiny", true))
	s := newStore(t, eng)

	require.NoError(t, s.Refresh(context.Background()))
	require.NoError(t, s.SelectModel("tiny"))

	eng.deleteErr = errors.New("file locked")
	err := s.Delete(context.Background(), "tiny")
	require.ErrorIs(t, err, domain.ErrDeleteFailed)

	snap := s.Snapshot()
	require.Equal(t, "tiny", snap.SelectedModel)
	require.True(t, snap.Models[0].Downloaded)
	require.Contains(t, snap.LastError, "file locked")
}

func TestMutationsRefusedWhileTranscribing(t *testing.T) {
	eng := newFakeEngine(model("tiny", true), model("base", false))
	s := newStore(t, eng)

	require.NoError(t, s.Refresh(context.Background()))
	require.NoError(t, s.SelectModel("tiny"))
	s.SetAudioPath("/tmp/a.wav")
	require.NoError(t, s.StartTranscription(context.Background()))

	require.ErrorIs(t, s.Download(context.Background(), "base"), ErrBusy)
	require.ErrorIs(t, s.Delete(context.Background(), "tiny"), ErrBusy)
	require.ErrorIs(t, s.SelectModel("tiny"), ErrBusy)

	publishComplete(eng, true, "", "")
	require.NoError(t, s.SelectModel("tiny"))
}

func TestSecondDownloadIsRefusedWhileOneIsOutstanding(t *testing.T) {
	eng := newFakeEngine(model("tiny", false), model("base", false))
	s := newStore(t, eng)
	require.NoError(t, s.Refresh(context.Background()))

	var secondErr error
	eng.onDownload = func(name string) {
		// Issued while the first download is still outstanding.
		secondErr = s.Download(context.Background(), "base")
	}

	require.NoError(t, s.Download(context.Background(), "tiny"))
	require.ErrorIs(t, secondErr, ErrBusy)
}

func TestSelectionIntentsValidateInputs(t *testing.T) {
	eng := newFakeEngine()
	s := newStore(t, eng)

	require.ErrorIs(t, s.SetOutputFormat("doc"), domain.ErrInvalidRequest)
	require.ErrorIs(t, s.SetLanguage("tlh"), domain.ErrInvalidRequest)

	require.NoError(t, s.SetOutputFormat(domain.FormatWebVTT))
	require.NoError(t, s.SetLanguage("de"))

	snap := s.Snapshot()
	require.Equal(t, domain.FormatWebVTT, snap.OutputFormat)
	require.Equal(t, "de", snap.Language)
}

func TestDismissErrorClearsBanner(t *testing.T) {
	eng := newFakeEngine(model("tiny", true))
	eng.listErr = errors.New("socket closed")
	s := newStore(t, eng)

	_ = s.Refresh(context.Background())
	require.NotEmpty(t, s.Snapshot().LastError)

	s.DismissError()
	require.Empty(t, s.Snapshot().LastError)
}

func TestDetachStopsEventDelivery(t *testing.T) {
	eng := newFakeEngine(model("tiny", true))
	s := New(eng, nil)
	s.Attach()

	require.NoError(t, s.Refresh(context.Background()))
	require.NoError(t, s.SelectModel("tiny"))
	s.SetAudioPath("/tmp/a.wav")
	require.NoError(t, s.StartTranscription(context.Background()))

	s.Detach()
	publishOutput(eng, "after detach", false)
	require.Empty(t, s.Snapshot().OutputLog)
}
