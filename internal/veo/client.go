package veo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/promoreel/promoreel-api/internal/codec"
)

// Static errors for generative API client operations.
var (
	// ErrAPIKeyNotSet is returned when no API key is provided and the
	// GEMINI_API_KEY environment variable is not set.
	ErrAPIKeyNotSet = errors.New("veo: GEMINI_API_KEY environment variable is not set")
	// ErrEmptyResult is returned when a completed operation contains no videos.
	ErrEmptyResult = errors.New("veo: operation completed with no generated videos")
	// ErrMissingAsset is returned when a video descriptor has no retrievable location.
	ErrMissingAsset = errors.New("veo: generated video has no retrievable location")
	// ErrEmptySynthesis is returned when a speech request returns no audio payload.
	ErrEmptySynthesis = errors.New("veo: speech synthesis returned no audio payload")
	// ErrPollTimeout is returned when an operation does not complete within
	// the configured number of poll attempts.
	ErrPollTimeout = errors.New("veo: operation did not complete in time")
	// ErrOperationFailed is returned when the remote operation reports an error.
	ErrOperationFailed = errors.New("veo: operation failed")
	// ErrNoOperationName is returned when the submit response carries no
	// operation name to poll.
	ErrNoOperationName = errors.New("veo: submit returned no operation name")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("veo: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("veo: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("veo: request failed")
)

// AssetFetchError is returned when fetching a generated binary asset fails
// with a non-success HTTP status.
type AssetFetchError struct {
	// StatusCode is the HTTP status of the failed fetch.
	StatusCode int
}

func (e *AssetFetchError) Error() string {
	return fmt.Sprintf("veo: asset fetch failed with status %d", e.StatusCode)
}

// Synthesized speech is returned as raw PCM at a fixed format.
const (
	speechSampleRate = 24000
	speechChannels   = 1
)

// Client defines the interface for the remote generative API.
type Client interface {
	// GenerateVideo submits a generation request, polls the resulting
	// operation to completion and fetches the binary video asset.
	GenerateVideo(ctx context.Context, req GenerateRequest) (*Video, error)

	// SynthesizeSpeech turns a voiceover script into a decoded audio buffer
	// using the requested prebuilt voice.
	SynthesizeSpeech(ctx context.Context, script, voice string) (*codec.AudioBuffer, error)

	// DraftScript asks the text model for a single short promotional line
	// for the given product.
	DraftScript(ctx context.Context, productName, productDescription string) (string, error)
}

// HTTPClient is the HTTP implementation of the Client interface.
type HTTPClient struct {
	apiKey          string
	baseURL         string
	ttsModel        string
	textModel       string
	httpClient      *http.Client
	pollInterval    time.Duration
	maxPollAttempts int
	maxRetries      int
	baseBackoff     time.Duration
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) ClientOption {
	return func(hc *HTTPClient) {
		hc.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithBaseURL sets a custom base URL for the generative API.
func WithBaseURL(u string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = strings.TrimRight(u, "/")
	}
}

// WithTTSModel sets the model used for speech synthesis.
func WithTTSModel(model string) ClientOption {
	return func(hc *HTTPClient) {
		hc.ttsModel = model
	}
}

// WithTextModel sets the model used for script drafting.
func WithTextModel(model string) ClientOption {
	return func(hc *HTTPClient) {
		hc.textModel = model
	}
}

// WithPollInterval sets the fixed interval between operation polls.
func WithPollInterval(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.pollInterval = d
	}
}

// WithMaxPollAttempts bounds how many times an operation is polled before
// GenerateVideo gives up with ErrPollTimeout.
func WithMaxPollAttempts(n int) ClientOption {
	return func(hc *HTTPClient) {
		hc.maxPollAttempts = n
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(hc *HTTPClient) {
		hc.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseBackoff = d
	}
}

// NewClient creates a new generative API HTTP client.
// The API key can be set via the WithAPIKey option. If not provided,
// it is read from the environment variable GEMINI_API_KEY.
func NewClient(opts ...ClientOption) (*HTTPClient, error) {
	c := &HTTPClient{
		baseURL:         "https://generativelanguage.googleapis.com/v1beta",
		ttsModel:        "gemini-2.5-flash-preview-tts",
		textModel:       "gemini-2.5-flash",
		httpClient:      &http.Client{Timeout: 60 * time.Second},
		pollInterval:    10 * time.Second,
		maxPollAttempts: 90,
		maxRetries:      3,
		baseBackoff:     1 * time.Second,
	}

	// Apply options first to allow WithAPIKey to set the API key
	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("GEMINI_API_KEY")
	}

	if c.apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	return c, nil
}

// GenerateVideo submits a generation request, polls the operation until it is
// done and fetches the resulting binary asset.
func (c *HTTPClient) GenerateVideo(ctx context.Context, req GenerateRequest) (*Video, error) {
	op, err := c.submit(ctx, req)
	if err != nil {
		return nil, err
	}

	op, err = c.pollUntilDone(ctx, op)
	if err != nil {
		return nil, err
	}

	if op.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrOperationFailed, op.Error.Message)
	}
	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 {
		return nil, ErrEmptyResult
	}

	handle := op.Response.GeneratedVideos[0].Video
	var desc videoDescriptor
	if err := json.Unmarshal(handle, &desc); err != nil || desc.URI == "" {
		return nil, ErrMissingAsset
	}

	data, err := c.fetchAsset(ctx, desc.URI)
	if err != nil {
		return nil, err
	}

	return &Video{
		Data:   data,
		Handle: handle,
		URI:    desc.URI,
	}, nil
}

// submit issues the generation request and returns the operation handle.
func (c *HTTPClient) submit(ctx context.Context, req GenerateRequest) (operation, error) {
	body := generateVideosRequest{
		Prompt: req.Prompt,
		Config: videoConfig{
			NumberOfVideos: 1,
			Resolution:     req.Resolution,
			AspectRatio:    req.AspectRatio,
		},
		Video: req.InputVideo,
	}
	for _, img := range req.ReferenceImages {
		body.Config.ReferenceImages = append(body.Config.ReferenceImages, referenceImagePayload{
			Image: inlineImage{
				ImageBytes: codec.EncodeBytes(img.Data),
				MimeType:   img.MIMEType,
			},
			ReferenceType: "asset",
		})
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateVideos", c.baseURL, url.PathEscape(req.Model))

	var op operation
	if err := c.doRequestWithRetry(ctx, http.MethodPost, endpoint, body, &op); err != nil {
		return operation{}, err
	}
	if op.Name == "" {
		return operation{}, ErrNoOperationName
	}
	return op, nil
}

// pollUntilDone re-queries the operation at a fixed interval until its
// completion flag is set, the attempt budget is exhausted or ctx is cancelled.
func (c *HTTPClient) pollUntilDone(ctx context.Context, op operation) (operation, error) {
	endpoint := fmt.Sprintf("%s/%s", c.baseURL, strings.TrimLeft(op.Name, "/"))

	for attempt := 0; !op.Done; attempt++ {
		if attempt >= c.maxPollAttempts {
			return operation{}, fmt.Errorf("%w after %d attempts", ErrPollTimeout, attempt)
		}

		select {
		case <-ctx.Done():
			return operation{}, fmt.Errorf("veo: context cancelled: %w", ctx.Err())
		case <-time.After(c.pollInterval):
		}

		var polled operation
		if err := c.doRequestWithRetry(ctx, http.MethodGet, endpoint, nil, &polled); err != nil {
			return operation{}, err
		}
		op = polled
	}

	return op, nil
}

// fetchAsset downloads the generated binary from its remote location using
// the client's credential. A non-2xx response is a hard failure; there is no
// retry at this stage.
func (c *HTTPClient) fetchAsset(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("veo: create asset request: %w", err)
	}
	q := req.URL.Query()
	q.Set("key", c.apiKey)
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("veo: fetch asset: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &AssetFetchError{StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("veo: read asset: %w", err)
	}
	return data, nil
}

// SynthesizeSpeech requests audio for the script and decodes the returned
// base64 payload as 24 kHz mono PCM.
func (c *HTTPClient) SynthesizeSpeech(ctx context.Context, script, voice string) (*codec.AudioBuffer, error) {
	body := generateContentRequest{
		Contents: []content{{Parts: []part{{Text: script}}}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &speechConfig{
				VoiceConfig: voiceConfig{
					PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: voice},
				},
			},
		},
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(c.ttsModel))

	var resp generateContentResponse
	if err := c.doRequestWithRetry(ctx, http.MethodPost, endpoint, body, &resp); err != nil {
		return nil, err
	}

	payload := firstInlineData(resp)
	if payload == "" {
		return nil, ErrEmptySynthesis
	}

	pcm, err := codec.DecodeText(payload)
	if err != nil {
		return nil, fmt.Errorf("veo: decode audio payload: %w", err)
	}
	return codec.DecodeRawPCM(pcm, speechSampleRate, speechChannels)
}

// DraftScript asks the text model for one short promotional line and returns
// the trimmed response verbatim. Empty or odd model output is passed through.
func (c *HTTPClient) DraftScript(ctx context.Context, productName, productDescription string) (string, error) {
	prompt := fmt.Sprintf(
		"Write a single short energetic promotional line for an advertising video. "+
			"Product: %s. Description: %s. "+
			"Reply with the line only, no quotes and no extra text.",
		productName, productDescription,
	)

	body := generateContentRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(c.textModel))

	var resp generateContentResponse
	if err := c.doRequestWithRetry(ctx, http.MethodPost, endpoint, body, &resp); err != nil {
		return "", err
	}

	return strings.TrimSpace(firstText(resp)), nil
}

// firstInlineData returns the first inline audio payload in the response.
func firstInlineData(resp generateContentResponse) string {
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				return p.InlineData.Data
			}
		}
	}
	return ""
}

// firstText returns the first text part in the response.
func firstText(resp generateContentResponse) string {
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.Text != "" {
				return p.Text
			}
		}
	}
	return ""
}

// doRequestWithRetry performs an HTTP request with exponential backoff retry.
func (c *HTTPClient) doRequestWithRetry(ctx context.Context, method, endpoint string, body any, result any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("veo: marshal request: %w", err)
		}
	}

	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("veo: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2 // Exponential backoff
			}
		}

		err := c.doRequest(ctx, method, endpoint, payload, result)
		if err == nil {
			return nil
		}

		if !isRetryable(err) {
			return err
		}

		lastErr = err
	}

	return fmt.Errorf("veo: max retries exceeded: %w", lastErr)
}

// doRequest performs a single HTTP request.
func (c *HTTPClient) doRequest(ctx context.Context, method, endpoint string, body []byte, result any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("veo: create request: %w", err)
	}

	q := req.URL.Query()
	q.Set("key", c.apiKey)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &retryableError{err: fmt.Errorf("veo: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("veo: read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := apiErrorMessage(respBody)
		// 5xx errors are retryable
		if resp.StatusCode >= 500 {
			return &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, msg)}
		}
		// 429 (rate limit) is retryable
		if resp.StatusCode == http.StatusTooManyRequests {
			return &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, msg)}
		}
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, msg)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("veo: unmarshal response: %w", err)
		}
	}

	return nil
}

// apiErrorMessage extracts the message from the API error envelope, falling
// back to the raw body.
func apiErrorMessage(body []byte) string {
	var envelope apiError
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return strings.TrimSpace(string(body))
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
