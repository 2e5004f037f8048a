package config

import (
	"os"
	"path/filepath"

	"whisper-gui/internal/domain"
)

// AppDir returns the per-user directory holding settings and models.
func AppDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".whisper-gui")
}

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	return domain.Settings{
		ModelsDir:    filepath.Join(AppDir(), "models"),
		OutputFormat: string(domain.FormatText),
		Language:     domain.LanguageAuto,
	}
}
