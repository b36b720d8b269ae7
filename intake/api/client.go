// Package api is the HTTP client for the registration backend: image
// upload, ID/name matching and guest registration.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.uber.org/zap"

	"guest-intake/intake/imagecodec"
)

const (
	UploadImagePath  = "/api/upload/single-image"
	VerifyIDTextPath = "/api/verify/id-text"
	RegisterPath     = "/api/guests/register"

	defaultTimeout   = 30 * time.Second
	maxResponseBytes = 1 << 20
)

// Error is a non-2xx response from the backend.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api: HTTP %d: %s", e.StatusCode, e.Message)
}

// MessageOf extracts the user-facing message of err, or fallback when err
// carries none.
func MessageOf(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	return fallback
}

// TokenSource returns the bearer credential attached to every request.
type TokenSource func(ctx context.Context) (string, error)

// StaticToken always returns token.
func StaticToken(token string) TokenSource {
	return func(context.Context) (string, error) { return token, nil }
}

// MatchResult is the outcome of an ID/name comparison.
type MatchResult struct {
	Match   bool   `json:"match"`
	Message string `json:"message"`
}

// RegisterResponse is the body of a successful registration.
type RegisterResponse struct {
	Message        string `json:"message"`
	RegistrationID uint   `json:"registrationId,omitempty"`
	Reference      string `json:"reference,omitempty"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenSource
	logger     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.token = ts }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UploadImage posts one image and returns the hosted URL.
func (c *Client) UploadImage(ctx context.Context, blob *imagecodec.Blob) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := WriteFilePart(w, "image", blob); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("api: close multipart: %w", err)
	}

	var out struct {
		ImageURL string `json:"imageUrl"`
	}
	if err := c.do(ctx, UploadImagePath, w.FormDataContentType(), &body, &out); err != nil {
		return "", err
	}
	if out.ImageURL == "" {
		return "", errors.New("api: upload response missing imageUrl")
	}
	return out.ImageURL, nil
}

// VerifyIDText asks the backend whether the photographed ID matches name.
func (c *Client) VerifyIDText(ctx context.Context, imageURL, name string) (MatchResult, error) {
	payload, err := json.Marshal(map[string]string{
		"imageUrl":    imageURL,
		"nameEntered": name,
	})
	if err != nil {
		return MatchResult{}, err
	}
	var out MatchResult
	if err := c.do(ctx, VerifyIDTextPath, "application/json", bytes.NewReader(payload), &out); err != nil {
		return MatchResult{}, err
	}
	return out, nil
}

// Register posts a prepared multipart registration body.
func (c *Client) Register(ctx context.Context, contentType string, body io.Reader) (RegisterResponse, error) {
	var out RegisterResponse
	if err := c.do(ctx, RegisterPath, contentType, body, &out); err != nil {
		return RegisterResponse{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return fmt.Errorf("api: credential: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("request failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("api: %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("api: read response: %w", err)
	}
	c.logger.Debug("request done",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("api: decode response: %w", err)
	}
	return nil
}

func errorMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return ""
}

// WriteFilePart attaches blob as a form file part carrying its MIME type.
func WriteFilePart(w *multipart.Writer, field string, blob *imagecodec.Blob) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, blob.Filename))
	h.Set("Content-Type", blob.MIMEType)
	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("api: create part %s: %w", field, err)
	}
	if _, err := part.Write(blob.Data); err != nil {
		return fmt.Errorf("api: write part %s: %w", field, err)
	}
	return nil
}
