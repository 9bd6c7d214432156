package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpeak(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/speech", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var req SpeechRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tts-1", req.Model)
		assert.Equal(t, "hi there", req.Input)
		assert.Equal(t, "nova", req.Voice)
		assert.Equal(t, 1.5, req.Speed)

		_, _ = w.Write([]byte("ID3audio"))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/v1/", APIKey: "key", Model: "tts-1"})
	audio, err := c.Speak(context.Background(), "hi there", "nova", 1.5)
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3audio"), audio.Data)
	assert.Equal(t, "mp3", audio.Format)
	assert.NotEmpty(t, audio.MediaType)
}

func TestSpeakValidation(t *testing.T) {
	c := NewClient(DefaultConfig())

	_, err := c.Speak(context.Background(), "  ", "nova", 1)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = c.Speak(context.Background(), "x", "nova", 5)
	assert.ErrorIs(t, err, ErrInvalidSpeed)
}

func TestSpeakProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"unknown voice","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}).Speak(context.Background(), "x", "robot", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown voice")
}

func TestMediaTypeFor(t *testing.T) {
	assert.Equal(t, "audio/wav", mediaTypeFor("wav"))
	assert.Equal(t, "audio/mpeg", mediaTypeFor(""))
}
