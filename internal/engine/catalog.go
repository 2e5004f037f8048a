package engine

import "whisper-gui/internal/domain"

const mib = 1 << 20

var modelCatalog = []domain.ModelDescriptor{
	{
		Name:        "tiny",
		DisplayName: "Tiny",
		SizeBytes:   75 * mib,
		Description: "Fastest, lowest accuracy",
		SourceURL:   "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-tiny.bin",
	},
	{
		Name:        "base",
		DisplayName: "Base",
		SizeBytes:   148 * mib,
		Description: "Fast, good for simple audio",
		SourceURL:   "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.bin",
	},
	{
		Name:        "small",
		DisplayName: "Small",
		SizeBytes:   488 * mib,
		Description: "Balanced speed and accuracy",
		SourceURL:   "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small.bin",
	},
	{
		Name:        "medium",
		DisplayName: "Medium",
		SizeBytes:   1500 * mib,
		Description: "High accuracy, slower",
		SourceURL:   "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-medium.bin",
	},
	{
		Name:        "large-v3",
		DisplayName: "Large v3",
		SizeBytes:   3000 * mib,
		Description: "Best accuracy, slowest",
		SourceURL:   "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v3.bin",
	},
	{
		Name:        "large-v3-turbo",
		DisplayName: "Large v3 Turbo",
		SizeBytes:   1600 * mib,
		Description: "Fast and accurate",
		SourceURL:   "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v3-turbo.bin",
	},
}

// Catalog returns the built-in whisper model presets.
func Catalog() []domain.ModelDescriptor {
	out := make([]domain.ModelDescriptor, len(modelCatalog))
	copy(out, modelCatalog)
	return out
}
