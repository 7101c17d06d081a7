package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
)

const defaultAudioModel = "whisper-large-v3"

// AudioAction selects the audio sub-endpoint.
type AudioAction string

const (
	ActionTranscribe AudioAction = "transcribe"
	ActionTranslate  AudioAction = "translate"
)

// TranscriptionResult is the decoded audio endpoint response.
type TranscriptionResult struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// AudioRequest describes one transcription or translation call.
type AudioRequest struct {
	Action      AudioAction
	File        io.Reader
	Filename    string
	Model       string
	Language    string
	Temperature float64
}

// Transcribe sends the audio file to the fast-inference provider's
// transcription or translation endpoint as a multipart form.
func (r *Router) Transcribe(ctx context.Context, req AudioRequest) (*TranscriptionResult, error) {
	key, err := r.groqKey.Select()
	if err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = defaultAudioModel
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", req.Filename)
	if err != nil {
		return nil, fmt.Errorf("groq: create form file: %w", err)
	}
	if _, err := io.Copy(part, req.File); err != nil {
		return nil, fmt.Errorf("groq: copy audio payload: %w", err)
	}
	if err := writer.WriteField("model", model); err != nil {
		return nil, fmt.Errorf("groq: write model field: %w", err)
	}
	if req.Language != "" && req.Action != ActionTranslate {
		if err := writer.WriteField("language", req.Language); err != nil {
			return nil, fmt.Errorf("groq: write language field: %w", err)
		}
	}
	if req.Temperature > 0 {
		if err := writer.WriteField("temperature", strconv.FormatFloat(req.Temperature, 'f', -1, 64)); err != nil {
			return nil, fmt.Errorf("groq: write temperature field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("groq: finalize form: %w", err)
	}

	endpoint := r.groqBase + "/audio/transcriptions"
	if req.Action == ActionTranslate {
		endpoint = r.groqBase + "/audio/translations"
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("groq: create audio request: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+key)
	request.Header.Set("Content-Type", writer.FormDataContentType())

	response, err := r.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("groq: call audio api: %w", err)
	}
	defer response.Body.Close()

	respBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("groq: read audio response: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, newAPIError(ProviderGroq, response.StatusCode, respBody)
	}

	var result TranscriptionResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("groq: decode audio response: %w", err)
	}
	if result.Text == "" {
		return nil, fmt.Errorf("groq: audio response contained no text")
	}

	return &result, nil
}
