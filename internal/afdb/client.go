package afdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"proviewer/backend/internal/structure"
)

// Config drives AlphaFold DB client behaviour.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	ModelVersion int
}

// Client downloads precomputed models from the AlphaFold Protein Structure Database.
type Client struct {
	httpClient *http.Client
	baseURL    string
	version    int
}

var (
	// ErrInvalidAccession is returned for identifiers that are not UniProt accessions.
	ErrInvalidAccession = errors.New("invalid UniProt accession")
	// ErrNotFound is returned when the database has no model for the accession.
	ErrNotFound = errors.New("structure not found")
)

// StatusError reports an unexpected response from the database.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("alphafold db status %d", e.Code)
}

var accessionPattern = regexp.MustCompile(`^(?:[OPQ][0-9][A-Z0-9]{3}[0-9]|[A-NR-Z][0-9](?:[A-Z][A-Z0-9]{2}[0-9]){1,2})$`)

// NormalizeAccession trims and upper-cases id and checks it is a UniProt accession.
func NormalizeAccession(id string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(id))
	if normalized == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidAccession)
	}
	if !accessionPattern.MatchString(normalized) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAccession, id)
	}
	return normalized, nil
}

// NewClient constructs a client, filling in defaults.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://alphafold.ebi.ac.uk/files"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	version := cfg.ModelVersion
	if version <= 0 {
		version = 4
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		version:    version,
	}
}

// FileName is the canonical model file name for an accession.
func (c *Client) FileName(accession string, format structure.Format) string {
	return fmt.Sprintf("AF-%s-F1-model_v%d.%s", accession, c.version, format)
}

// ModelURL is the download location of the model file.
func (c *Client) ModelURL(accession string, format structure.Format) string {
	return c.baseURL + "/" + c.FileName(accession, format)
}

// Fetch downloads the model for accession in the requested format.
func (c *Client) Fetch(ctx context.Context, accession string, format structure.Format) (string, error) {
	if c == nil {
		return "", errors.New("alphafold db client is nil")
	}
	accession, err := NormalizeAccession(accession)
	if err != nil {
		return "", err
	}
	if format == "" {
		format = structure.FormatCIF
	}

	endpoint := c.ModelURL(accession, format)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("alphafold db request: %w", err)
	}
	defer resp.Body.Close()

	logrus.WithFields(logrus.Fields{
		"accession": accession,
		"status":    resp.StatusCode,
		"duration":  time.Since(start),
	}).Info("alphafold db fetch")

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%w: %s", ErrNotFound, accession)
	case resp.StatusCode != http.StatusOK:
		return "", &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read alphafold db response: %w", err)
	}
	if !utf8.Valid(body) {
		return "", errors.New("alphafold db response is not valid utf-8")
	}
	return string(body), nil
}
