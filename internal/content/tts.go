package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/DoyleJ11/party-quiz-backend/internal/engine"
)

const maxAudioBytes = 8 << 20

// HTTPSpeaker calls an OpenAI-compatible /audio/speech endpoint.
type HTTPSpeaker struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
	model      string
}

func NewHTTPSpeaker(apiURL, apiKey string) *HTTPSpeaker {
	return &HTTPSpeaker{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiURL:     strings.TrimRight(apiURL, "/"),
		apiKey:     apiKey,
		model:      "tts-1",
	}
}

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

func voiceFor(lang engine.Language) string {
	if lang == engine.LangDE {
		return "onyx"
	}
	return "alloy"
}

func (s *HTTPSpeaker) Speak(ctx context.Context, text string, lang engine.Language) ([]byte, error) {
	if s.apiURL == "" {
		return nil, ErrNotConfigured
	}
	body, err := json.Marshal(speechRequest{Model: s.model, Input: text, Voice: voiceFor(lang), ResponseFormat: "mp3"})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("speech API returned status %d: %s", resp.StatusCode, msg)
	}
	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) > maxAudioBytes {
		return nil, fmt.Errorf("audio exceeds %d bytes", maxAudioBytes)
	}
	return audio, nil
}
