// Package structure asks a language model to transform a raw transcript
// into a structured diary record.
package structure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voxlog-ai/voxlog/pkg/diary"
)

const (
	// DefaultBaseURL is the DeepSeek OpenAI-compatible endpoint.
	DefaultBaseURL = "https://api.deepseek.com/v1"
	// DefaultModel is the chat model used for structuring.
	DefaultModel = "deepseek-chat"

	defaultTimeout = 30 * time.Second
)

// systemPrompt fixes the structuring contract: JSON only, closed mood set,
// at most 5 tags, empty arrays when a field has nothing to say.
const systemPrompt = `You are a voice diary assistant. The user gives you a raw speech transcript.
Respond with JSON only, in exactly this shape:

{
  "title": "one-line title (under 15 words)",
  "content": "polished diary body (keep the spoken voice, fix grammar, add paragraphs)",
  "mood": "happy|neutral|sad|anxious|excited",
  "key_events": ["event 1", "event 2"],
  "todos": ["todo 1", "todo 2"],
  "tags": ["tag 1", "tag 2"]
}

Rules:
- Keep the speaker's tone and personality
- Never add content the speaker did not say
- Return empty arrays when there is nothing to list
- At most 5 tags
- mood must be one of: happy, neutral, sad, anxious, excited`

// ErrNotConfigured means the backing credential is absent.
var ErrNotConfigured = errors.New("structuring API key not configured")

// RequestError reports a non-success response from the language model service.
type RequestError struct {
	Status int
	Body   string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("llm http %d: %s", e.Status, e.Body)
}

// DecodeError reports a model response that is not parseable as the
// expected schema or omits a required field.
type DecodeError struct {
	Reason string
	Raw    string
}

func (e *DecodeError) Error() string {
	raw := e.Raw
	if len(raw) > 200 {
		raw = raw[:200]
	}
	return fmt.Sprintf("llm returned unusable output (%s): %s", e.Reason, raw)
}

// Entry is the validated structuring result. Title, Content and Mood are
// required; the slices default to empty.
type Entry struct {
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Mood      diary.Mood `json:"mood"`
	KeyEvents []string   `json:"key_events"`
	Todos     []string   `json:"todos"`
	Tags      []string   `json:"tags"`
}

// Client is a thin chat-completion client. No retry logic; the caller decides.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	hc      *http.Client
}

// NewClient builds a Client with the given credential.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		model:   DefaultModel,
		hc:      &http.Client{Timeout: defaultTimeout},
	}
}

// WithBaseURL points the client at a different endpoint. Used by tests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = baseURL
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// rawEntry mirrors the model's JSON before validation. Pointer fields
// distinguish "absent" from "empty".
type rawEntry struct {
	Title     *string  `json:"title"`
	Content   *string  `json:"content"`
	Mood      *string  `json:"mood"`
	KeyEvents []string `json:"key_events"`
	Todos     []string `json:"todos"`
	Tags      []string `json:"tags"`
}

// Structure sends the transcript through the model and decodes the reply
// into a validated Entry. An unrecognized mood is coerced to neutral; a
// missing required field is an error.
func (c *Client) Structure(ctx context.Context, transcript string) (Entry, error) {
	if c.apiKey == "" {
		return Entry{}, ErrNotConfigured
	}

	cr := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: transcript},
		},
		Temperature: 0.3,
	}
	cr.ResponseFormat.Type = "json_object"

	payload, err := json.Marshal(cr)
	if err != nil {
		return Entry{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return Entry{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return Entry{}, fmt.Errorf("llm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return Entry{}, &RequestError{Status: resp.StatusCode, Body: string(b)}
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return Entry{}, fmt.Errorf("decode llm envelope: %w", err)
	}
	if len(chat.Choices) == 0 {
		return Entry{}, &DecodeError{Reason: "no choices", Raw: ""}
	}

	return decodeEntry(chat.Choices[0].Message.Content)
}

// decodeEntry is the single validation and default-filling step at the
// model boundary.
func decodeEntry(raw string) (Entry, error) {
	var re rawEntry
	if err := json.Unmarshal([]byte(raw), &re); err != nil {
		return Entry{}, &DecodeError{Reason: "invalid JSON", Raw: raw}
	}

	switch {
	case re.Title == nil:
		return Entry{}, &DecodeError{Reason: "missing field title", Raw: raw}
	case re.Content == nil:
		return Entry{}, &DecodeError{Reason: "missing field content", Raw: raw}
	case re.Mood == nil:
		return Entry{}, &DecodeError{Reason: "missing field mood", Raw: raw}
	}

	entry := Entry{
		Title:     *re.Title,
		Content:   *re.Content,
		Mood:      diary.NormalizeMood(*re.Mood),
		KeyEvents: emptyIfNil(re.KeyEvents),
		Todos:     emptyIfNil(re.Todos),
		Tags:      emptyIfNil(re.Tags),
	}
	return entry, nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
