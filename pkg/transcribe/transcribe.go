// Package transcribe calls the Groq Whisper API to turn a stored audio
// blob into plain text plus a duration.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const (
	// DefaultBaseURL is the Groq OpenAI-compatible endpoint.
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	// DefaultModel is the Whisper model used for speech-to-text.
	DefaultModel = "whisper-large-v3"

	defaultTimeout = 60 * time.Second
)

// ErrNotConfigured means the backing credential is absent. Retrying without
// operator action is pointless.
var ErrNotConfigured = errors.New("transcription API key not configured")

// RequestError reports a non-success response from the transcription service.
type RequestError struct {
	Status int
	Body   string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("whisper http %d: %s", e.Status, e.Body)
}

// Result is the transcription outcome.
type Result struct {
	Text        string
	DurationSec float64
}

// Client is a thin Whisper API client. No retry logic; the caller decides.
type Client struct {
	apiKey   string
	baseURL  string
	model    string
	language string
	hc       *http.Client
}

// NewClient builds a Client with the given credential and language hint.
// An empty language leaves language detection to the service.
func NewClient(apiKey, language string) *Client {
	return &Client{
		apiKey:   apiKey,
		baseURL:  DefaultBaseURL,
		model:    DefaultModel,
		language: language,
		hc:       &http.Client{Timeout: defaultTimeout},
	}
}

// WithBaseURL points the client at a different endpoint. Used by tests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = baseURL
	return c
}

type verboseJSONResp struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
}

// Transcribe uploads the audio file at audioPath and returns its text and
// duration.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (Result, error) {
	if c.apiKey == "" {
		return Result{}, ErrNotConfigured
	}

	f, err := os.Open(audioPath)
	if err != nil {
		return Result{}, fmt.Errorf("open audio %s: %w", audioPath, err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("model", c.model); err != nil {
		return Result{}, err
	}
	if c.language != "" {
		if err := mw.WriteField("language", c.language); err != nil {
			return Result{}, err
		}
	}
	if err := mw.WriteField("response_format", "verbose_json"); err != nil {
		return Result{}, err
	}

	fw, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return Result{}, err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return Result{}, err
	}
	if err := mw.Close(); err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.hc.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("whisper request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return Result{}, &RequestError{Status: resp.StatusCode, Body: string(b)}
	}

	var vr verboseJSONResp
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return Result{}, fmt.Errorf("decode whisper response: %w", err)
	}

	return Result{Text: vr.Text, DurationSec: vr.Duration}, nil
}
