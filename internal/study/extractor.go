package study

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/studyowl-platform/studyowl/internal/config"
)

// Extractor turns an uploaded PDF into plain text.
type Extractor interface {
	ExtractText(ctx context.Context, filename string, pdf []byte) (string, error)
}

// HTTPExtractor calls the external PDF text-extraction service.
type HTTPExtractor struct {
	httpClient *http.Client
	baseURL    string
}

// NewHTTPExtractor creates an extractor client from config.
func NewHTTPExtractor(cfg config.ExtractorConfig) *HTTPExtractor {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &HTTPExtractor{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.URL, "/"),
	}
}

type extractResponse struct {
	Text      string `json:"text"`
	PageCount int    `json:"page_count"`
}

// ExtractText uploads the PDF and returns its extracted text.
func (e *HTTPExtractor) ExtractText(ctx context.Context, filename string, pdf []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("creating multipart form: %w", err)
	}
	if _, err := part.Write(pdf); err != nil {
		return "", fmt.Errorf("writing PDF to form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("closing multipart form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/extract", &body)
	if err != nil {
		return "", fmt.Errorf("creating extraction request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling extraction service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("extraction service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding extraction response: %w", err)
	}
	if strings.TrimSpace(parsed.Text) == "" {
		return "", fmt.Errorf("no text could be extracted from the PDF")
	}
	return parsed.Text, nil
}
