package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kmondie/nebula-edge/backend/pkg/audio"
)

// ImageSynthesizer generates an image for a prompt and returns a data URI.
type ImageSynthesizer interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// SpeechSynthesizer renders reply text as base64-encoded linear PCM.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

// MediaClient talks to the vendor's image and speech endpoints over plain
// HTTP. It implements ImageSynthesizer and SpeechSynthesizer.
type MediaClient struct {
	baseURL    string
	apiKey     string
	imageModel string
	ttsModel   string
	ttsVoice   string
	httpClient *http.Client
}

// MediaOptions configures the vendor media endpoints.
type MediaOptions struct {
	BaseURL    string
	APIKey     string
	ImageModel string
	TTSModel   string
	TTSVoice   string
	Timeout    time.Duration
}

// NewMediaClient builds the HTTP media client.
func NewMediaClient(opts MediaOptions) *MediaClient {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &MediaClient{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		imageModel: opts.ImageModel,
		ttsModel:   opts.TTSModel,
		ttsVoice:   opts.TTSVoice,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	Size           string `json:"size,omitempty"`
	ResponseFormat string `json:"response_format"`
}

type imageResponse struct {
	Data []struct {
		B64JSON  string `json:"b64_json"`
		MimeType string `json:"mime_type,omitempty"`
	} `json:"data"`
	Error *vendorError `json:"error,omitempty"`
}

type speechRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
	Voice string `json:"voice"`
}

type speechResponse struct {
	Data  string       `json:"data"`
	Error *vendorError `json:"error,omitempty"`
}

type vendorError struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

// GenerateImage requests one square image and returns it as a data URI.
// A response with no image data returns an empty URI and no error, mirroring
// the null the vendor sends for refused prompts.
func (c *MediaClient) GenerateImage(ctx context.Context, prompt string) (string, error) {
	var resp imageResponse
	if err := c.post(ctx, "/images/generations", imageRequest{
		Model:          c.imageModel,
		Prompt:         prompt,
		Size:           "1024x1024",
		ResponseFormat: "b64_json",
	}, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("image generation rejected: %s", resp.Error.Message)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return "", nil
	}

	mimeType := resp.Data[0].MimeType
	if mimeType == "" {
		mimeType = "image/png"
	}
	return audio.DataURI(mimeType, resp.Data[0].B64JSON), nil
}

// Synthesize converts reply text to speech. Inputs shorter than two characters
// are skipped; longer ones are truncated to the vendor's prompt budget.
func (c *MediaClient) Synthesize(ctx context.Context, text string) (string, error) {
	if len(text) < 2 {
		return "", nil
	}
	if len(text) > 1000 {
		text = text[:1000]
	}

	var resp speechResponse
	if err := c.post(ctx, "/audio/speech", speechRequest{
		Model: c.ttsModel,
		Input: text,
		Voice: c.ttsVoice,
	}, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("speech synthesis rejected: %s", resp.Error.Message)
	}
	return resp.Data, nil
}

func (c *MediaClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("media request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read media response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("media endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode media response: %w", err)
	}
	return nil
}
