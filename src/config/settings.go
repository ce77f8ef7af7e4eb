package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type Settings struct {
	Server  ServerConfig  `toml:"server"`
	Ollama  OllamaConfig  `toml:"ollama"`
	Persona PersonaConfig `toml:"persona"`
	Usage   UsageConfig   `toml:"usage"`
}

type ServerConfig struct {
	Listen string `toml:"listen"`
}

type OllamaConfig struct {
	URL string `toml:"url"`
	// Model is the generation model requested from the upstream.
	Model string `toml:"model"`
	// BufferSize bounds the relay pipe between the upstream decode loop and
	// the response writer.
	BufferSize int `toml:"buffer_size"`
	// ReadTimeoutSeconds aborts a stream when the upstream goes quiet for
	// this long. Zero disables the watchdog.
	ReadTimeoutSeconds int `toml:"read_timeout_seconds"`
}

type PersonaConfig struct {
	Default string `toml:"default"`
}

type UsageConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// LoadSettings reads config.toml from the config directory, falling back to
// defaults when the file is missing. A present-but-malformed file is an error.
func LoadSettings() (*Settings, error) {
	settings := &Settings{
		Server: ServerConfig{
			Listen: ":8000",
		},
		Ollama: OllamaConfig{
			URL:        "http://localhost:11434",
			Model:      "mistral",
			BufferSize: 20,
		},
		Persona: PersonaConfig{
			Default: "aria",
		},
		Usage: UsageConfig{
			Enabled: false,
		},
	}

	configPath := filepath.Join(ConfigDir(), "config.toml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, err
	}

	if _, err := toml.Decode(string(data), settings); err != nil {
		return nil, err
	}

	return settings, nil
}
