package esmfold

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
)

// DefaultMaxSequenceLength bounds the sequences accepted for folding.
const DefaultMaxSequenceLength = 400

// Config drives ESMFold client behaviour.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	CacheTTL          time.Duration
	CacheSize         int
	MaxSequenceLength int
}

// Client submits sequences to the ESMFold prediction API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	maxLength  int
	cache      *expirable.LRU[string, string]
}

var (
	// ErrEmptySequence is returned when no residues were supplied.
	ErrEmptySequence = errors.New("please enter a sequence")
	// ErrSequenceTooLong is returned when the sequence exceeds the configured limit.
	ErrSequenceTooLong = errors.New("sequence too long")
)

// StatusError reports a non-200 response from the folding API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("esmfold api status %d", e.Code)
	}
	return fmt.Sprintf("esmfold api status %d: %s", e.Code, e.Body)
}

// NewClient constructs an ESMFold client, filling in defaults.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = "https://api.esmatlas.com/foldSequence/v1/pdb/"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	size := cfg.CacheSize
	if size <= 0 {
		size = 128
	}

	maxLength := cfg.MaxSequenceLength
	if maxLength <= 0 {
		maxLength = DefaultMaxSequenceLength
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		maxLength:  maxLength,
		cache:      expirable.NewLRU[string, string](size, nil, ttl),
	}, nil
}

// MaxSequenceLength reports the configured limit.
func (c *Client) MaxSequenceLength() int {
	return c.maxLength
}

// ValidateSequence trims the input and checks it against the length limit.
func ValidateSequence(sequence string, maxLength int) (string, error) {
	sequence = strings.TrimSpace(sequence)
	if sequence == "" {
		return "", ErrEmptySequence
	}
	if maxLength > 0 && utf8.RuneCountInString(sequence) > maxLength {
		return "", fmt.Errorf("%w: max %d characters", ErrSequenceTooLong, maxLength)
	}
	return sequence, nil
}

// Fold predicts the structure of sequence and returns the PDB text.
// Identical sequences are served from the cache.
func (c *Client) Fold(ctx context.Context, sequence string) (string, error) {
	if c == nil {
		return "", errors.New("esmfold client is nil")
	}
	sequence, err := ValidateSequence(sequence, c.maxLength)
	if err != nil {
		return "", err
	}

	if cached, ok := c.cache.Get(sequence); ok {
		logrus.WithField("sequence_length", len(sequence)).Debug("esmfold cache hit")
		return cached, nil
	}

	content, err := c.performRequest(ctx, sequence)
	if err != nil {
		return "", err
	}
	c.cache.Add(sequence, content)
	return content, nil
}

func (c *Client) performRequest(ctx context.Context, sequence string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(sequence))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("esmfold request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read esmfold response: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"status":          resp.StatusCode,
		"sequence_length": len(sequence),
		"duration":        time.Since(start),
	}).Info("esmfold prediction")

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Code: resp.StatusCode, Body: truncate(strings.TrimSpace(string(body)), 200)}
	}
	if !utf8.Valid(body) {
		return "", errors.New("esmfold response is not valid utf-8")
	}
	return string(body), nil
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
