package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"guest-intake/config"
)

var (
	ErrOCRUnavailable = errors.New("ocr provider is not configured")
	ErrNoNameOnID     = errors.New("no name found on the ID document")
)

const (
	MessageNameMatches  = "Name matches the ID document"
	MessageNameMismatch = "Name on the ID does not match the entered name"
)

// AigenResponse is the envelope returned by the Aigen OCR endpoints.
type AigenResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// OCRClient calls the Aigen card and passport OCR models.
type OCRClient struct {
	apiKey           string
	cardEndpoint     string
	passportEndpoint string
	http             *http.Client
	logger           *zap.Logger
	observe          func(time.Duration)
}

type OCROption func(*OCRClient)

func WithOCRHTTPClient(hc *http.Client) OCROption {
	return func(c *OCRClient) { c.http = hc }
}

// WithOCRObserver receives the latency of every provider call.
func WithOCRObserver(fn func(time.Duration)) OCROption {
	return func(c *OCRClient) { c.observe = fn }
}

func NewOCRClient(cfg config.OCRConfig, logger *zap.Logger, opts ...OCROption) *OCRClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &OCRClient{
		apiKey:           cfg.APIKey,
		cardEndpoint:     cfg.CardEndpoint,
		passportEndpoint: cfg.PassportEndpoint,
		http:             &http.Client{Timeout: timeout},
		logger:           logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ExtractName reads the holder's name from an ID image. The ID card model
// runs first; the passport model is tried when it yields no name.
func (c *OCRClient) ExtractName(ctx context.Context, image []byte) (string, error) {
	if c.apiKey == "" {
		return "", ErrOCRUnavailable
	}
	b64 := base64.StdEncoding.EncodeToString(image)

	var cardErr error
	if c.cardEndpoint != "" {
		fields, err := c.call(ctx, c.cardEndpoint, "ocr-v1", b64)
		if err == nil {
			if name := nameFromFields(fields); name != "" {
				return name, nil
			}
			err = ErrNoNameOnID
		}
		cardErr = err
		c.logger.Debug("card OCR gave no name, trying passport model", zap.Error(err))
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if c.passportEndpoint == "" {
		if cardErr != nil {
			return "", cardErr
		}
		return "", ErrOCRUnavailable
	}

	fields, err := c.call(ctx, c.passportEndpoint, "passport-ocr-v2", b64)
	if err != nil {
		return "", err
	}
	if name := nameFromFields(fields); name != "" {
		return name, nil
	}
	return "", ErrNoNameOnID
}

func (c *OCRClient) call(ctx context.Context, endpoint, model, imageBase64 string) (map[string]any, error) {
	b, err := json.Marshal(map[string]any{
		"image": imageBase64,
		"model": model,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("cannot build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-aigen-key", c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if c.observe != nil {
		c.observe(time.Since(start))
	}
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var ar AigenResponse
	if err := json.Unmarshal(bodyBytes, &ar); err != nil {
		return nil, fmt.Errorf("JSON parse error: %w", err)
	}
	if ar.Status != "success" {
		return nil, fmt.Errorf("API status error: %s - %s", ar.Status, ar.Message)
	}

	var arr []map[string]any
	if err := json.Unmarshal(ar.Data, &arr); err == nil && len(arr) > 0 {
		return arr[0], nil
	}
	var obj map[string]any
	if err := json.Unmarshal(ar.Data, &obj); err == nil && len(obj) > 0 {
		return obj, nil
	}
	return nil, fmt.Errorf("no data returned from OCR model %s", model)
}

var (
	fullNameKeys  = []string{"name_en", "full_name_en", "fullname_en", "full_name", "fullname", "name"}
	splitNameKeys = [][2]string{
		{"first_name_en", "last_name_en"},
		{"given_names", "surname"},
		{"first_name", "last_name"},
	}
)

func nameFromFields(fields map[string]any) string {
	str := func(key string) string {
		if v, ok := fields[key].(string); ok {
			return strings.TrimSpace(v)
		}
		return ""
	}
	for _, key := range fullNameKeys {
		if v := str(key); v != "" {
			return v
		}
	}
	for _, pair := range splitNameKeys {
		first, last := str(pair[0]), str(pair[1])
		if first != "" || last != "" {
			return strings.TrimSpace(first + " " + last)
		}
	}
	return ""
}

// NameExtractor reads a holder name off an ID image.
type NameExtractor interface {
	ExtractName(ctx context.Context, image []byte) (string, error)
}

type MatchResult struct {
	Match         bool   `json:"match"`
	Message       string `json:"message"`
	ExtractedName string `json:"-"`
}

type VerificationService struct {
	images *ImageStore
	ocr    NameExtractor
	logger *zap.Logger
}

func NewVerificationService(images *ImageStore, ocr NameExtractor, logger *zap.Logger) *VerificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VerificationService{images: images, ocr: ocr, logger: logger}
}

// VerifyName compares the name on a previously uploaded ID image with the
// name typed by staff.
func (s *VerificationService) VerifyName(ctx context.Context, imageURL, entered string) (MatchResult, error) {
	data, err := s.images.Read(imageURL)
	if err != nil {
		return MatchResult{}, err
	}
	extracted, err := s.ocr.ExtractName(ctx, data)
	if errors.Is(err, ErrNoNameOnID) {
		return MatchResult{Match: false, Message: "Could not read a name from the ID document"}, nil
	}
	if err != nil {
		return MatchResult{}, err
	}

	res := MatchResult{ExtractedName: extracted, Match: NamesMatch(entered, extracted)}
	if res.Match {
		res.Message = MessageNameMatches
	} else {
		res.Message = MessageNameMismatch
	}
	s.logger.Info("id name checked", zap.Bool("match", res.Match))
	return res, nil
}

// NamesMatch reports whether the typed name agrees with the name read off
// the ID. Case, accents and spacing are ignored; every typed word must
// appear on the ID, and a single letter matches a word it abbreviates as
// long as at least one word is spelled out.
func NamesMatch(entered, extracted string) bool {
	want, have := nameTokens(entered), nameTokens(extracted)
	if len(want) == 0 || len(have) == 0 {
		return false
	}
	if strings.Join(want, "") == strings.Join(have, "") {
		return true
	}
	whole := false
	for _, w := range want {
		if !containsToken(have, w) {
			return false
		}
		if len([]rune(w)) > 1 {
			whole = true
		}
	}
	return whole
}

func containsToken(tokens []string, w string) bool {
	for _, t := range tokens {
		if t == w {
			return true
		}
		if len([]rune(w)) == 1 && strings.HasPrefix(t, w) {
			return true
		}
	}
	return false
}

// Transformers carry state, so each call builds its own chain.
func foldName() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC, cases.Fold())
}

func nameTokens(s string) []string {
	folded, _, err := transform.String(foldName(), s)
	if err != nil {
		folded = strings.ToLower(s)
	}
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
