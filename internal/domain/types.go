package domain

// ModelDescriptor identifies one known whisper model in the catalog.
// Descriptors are immutable and supplied by the engine.
type ModelDescriptor struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	SizeBytes   int64  `json:"sizeBytes"`
	Description string `json:"description"`
	SourceURL   string `json:"sourceUrl"`
}

// ModelAvailability pairs a catalog descriptor with its local download state.
type ModelAvailability struct {
	Model      ModelDescriptor `json:"model"`
	Downloaded bool            `json:"downloaded"`
}

// JobStatus tracks the lifecycle of a single transcription job.
type JobStatus string

const (
	JobStatusIdle      JobStatus = "idle"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status is a final outcome.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// OutputFormat selects the transcript format requested from the engine.
// Values are passed through opaquely; the core does not interpret them.
type OutputFormat string

const (
	FormatText   OutputFormat = "txt"
	FormatSubRip OutputFormat = "srt"
	FormatWebVTT OutputFormat = "vtt"
	FormatJSON   OutputFormat = "json"
)

// OutputFormats lists the recognized transcript formats in display order.
func OutputFormats() []OutputFormat {
	return []OutputFormat{FormatText, FormatSubRip, FormatWebVTT, FormatJSON}
}

// ValidFormat reports whether the given format is recognized.
func ValidFormat(format OutputFormat) bool {
	for _, f := range OutputFormats() {
		if f == format {
			return true
		}
	}
	return false
}

// LanguageAuto asks the engine to detect the spoken language itself.
// It is translated to an absent language when calling the engine.
const LanguageAuto = "auto"

// languageCodes is the enumerated language set offered by the UI.
var languageCodes = []string{
	LanguageAuto,
	"en", "es", "fr", "de", "it", "pt", "nl", "pl", "ru", "uk",
	"tr", "ar", "hi", "ja", "ko", "zh",
}

// Languages lists the selectable language codes, auto first.
func Languages() []string {
	out := make([]string, len(languageCodes))
	copy(out, languageCodes)
	return out
}

// ValidLanguage reports whether code is in the enumerated language set.
func ValidLanguage(code string) bool {
	for _, c := range languageCodes {
		if c == code {
			return true
		}
	}
	return false
}

// AudioExtensions lists the audio file extensions offered by the picker.
func AudioExtensions() []string {
	return []string{"wav", "mp3", "m4a", "flac", "ogg", "wma", "aac"}
}

// Settings contains user-selectable configuration persisted between runs.
type Settings struct {
	ModelsDir     string `json:"modelsDir"`
	SelectedModel string `json:"selectedModel"`
	OutputFormat  string `json:"outputFormat"`
	Language      string `json:"language"`
}
