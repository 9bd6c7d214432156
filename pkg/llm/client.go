// Package llm talks to OpenAI-compatible model endpoints that produce
// something other than embeddings. Today that is speech synthesis.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Speed bounds accepted by the /audio/speech endpoint.
const (
	MinSpeed = 0.25
	MaxSpeed = 4.0
)

var (
	ErrEmptyInput   = errors.New("llm: speech input is empty")
	ErrInvalidSpeed = errors.New("llm: speech speed out of range")
	ErrEmptyAudio   = errors.New("llm: provider returned no audio")
)

// Audio is a synthesized clip.
type Audio struct {
	Data      []byte
	Format    string
	MediaType string
}

// SpeechClient defines the interface for text-to-speech providers.
// This abstraction allows for easy mocking in tests.
type SpeechClient interface {
	Speak(ctx context.Context, input, voice string, speed float64) (*Audio, error)
}

// OpenAIClient implements SpeechClient for OpenAI-compatible APIs.
type OpenAIClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient initializes a new speech client.
func NewClient(cfg Config) *OpenAIClient {
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.ResponseFormat == "" {
		cfg.ResponseFormat = "mp3"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		// Generation can be slow.
		timeout = 120 * time.Second
	}

	return &OpenAIClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Speak performs a POST /audio/speech request and returns the raw audio.
func (c *OpenAIClient) Speak(ctx context.Context, input, voice string, speed float64) (*Audio, error) {
	if strings.TrimSpace(input) == "" {
		return nil, ErrEmptyInput
	}
	if speed < MinSpeed || speed > MaxSpeed {
		return nil, fmt.Errorf("%w: %.2f not in [%.2f, %.2f]", ErrInvalidSpeed, speed, MinSpeed, MaxSpeed)
	}

	jsonBytes, err := json.Marshal(SpeechRequest{
		Model:          c.cfg.Model,
		Input:          input,
		Voice:          voice,
		Speed:          speed,
		ResponseFormat: c.cfg.ResponseFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/audio/speech", c.cfg.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech connection failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != nil {
			return nil, fmt.Errorf("speech api error (status %d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("speech api error (status %d): %s", resp.StatusCode, string(body))
	}
	if len(body) == 0 {
		return nil, ErrEmptyAudio
	}

	mediaType := resp.Header.Get("Content-Type")
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = mediaTypeFor(c.cfg.ResponseFormat)
	}

	return &Audio{Data: body, Format: c.cfg.ResponseFormat, MediaType: mediaType}, nil
}

func mediaTypeFor(format string) string {
	switch format {
	case "wav":
		return "audio/wav"
	case "opus":
		return "audio/opus"
	case "flac":
		return "audio/flac"
	case "aac":
		return "audio/aac"
	default:
		return "audio/mpeg"
	}
}
