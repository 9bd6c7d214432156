package llm

import "time"

// Config holds the connection settings for an OpenAI-compatible audio
// provider. It is designed to be embedded in YAML configuration files.
type Config struct {
	// BaseURL is the API endpoint.
	// Examples:
	// - OpenAI: "https://api.openai.com/v1"
	// - LocalAI: "http://localhost:8080/v1"
	BaseURL string `yaml:"base_url" json:"base_url"`

	// APIKey is the authentication token. Often ignored by local servers.
	APIKey string `yaml:"api_key" json:"api_key"`

	// Model is the speech model identifier, e.g. "tts-1" or "gpt-4o-mini-tts".
	Model string `yaml:"model" json:"model"`

	// ResponseFormat is the audio container ("mp3", "wav", "opus", "flac").
	ResponseFormat string `yaml:"response_format" json:"response_format"`

	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// DefaultConfig returns defaults for the hosted OpenAI endpoint.
func DefaultConfig() Config {
	return Config{
		BaseURL:        "https://api.openai.com/v1",
		Model:          "tts-1",
		ResponseFormat: "mp3",
		Timeout:        120 * time.Second,
	}
}

// --- Internal API Payloads (OpenAI Compatible) ---

// SpeechRequest represents the payload sent to POST /audio/speech
type SpeechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	Speed          float64 `json:"speed,omitempty"`
	ResponseFormat string  `json:"response_format,omitempty"`
}

// ErrorResponse captures error details returned by the provider.
type ErrorResponse struct {
	Error *APIError `json:"error,omitempty"`
}

// APIError captures error details returned by the provider.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}
