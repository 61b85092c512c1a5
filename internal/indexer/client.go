// Package indexer is the HTTP client for the document indexing service.
//
// It covers the four routes the synchronization core needs: the file
// registry snapshot, file removal, the multipart upload, and aggregate
// indexing statistics. Every request carries the user-scoping header.
package indexer

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
	"strings"
	"time"

	"github.com/scribeapp/scribe/internal/log"
	"github.com/scribeapp/scribe/internal/registry"
)

// userHeader scopes indexer requests to one user.
const userHeader = "X-User-Id"

// requestTimeout bounds every indexer round-trip except uploads, which
// inherit the caller's context deadline instead (large batches take as
// long as they take).
const requestTimeout = 30 * time.Second

// Client is a lightweight indexer API client.
type Client struct {
	baseURL    string
	userID     string
	httpClient *http.Client
	logger     log.Logger
}

// New creates an indexer client.
func New(baseURL, userID string, logger log.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("indexer base URL is required")
	}
	if userID == "" {
		return nil, errors.New("user ID is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userID:     userID,
		httpClient: &http.Client{},
		logger:     logger,
	}, nil
}

// filesResponse is the poll payload: the full current snapshot.
type filesResponse struct {
	Files []registry.FileRecord `json:"files"`
}

// Files fetches the complete snapshot of file records for the user.
func (c *Client) Files(ctx context.Context) ([]registry.FileRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/files", nil)
	if err != nil {
		return nil, fmt.Errorf("building files request: %w", err)
	}
	req.Header.Set(userHeader, c.userID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching files: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetching files: %s", responseDetail(resp))
	}

	var payload filesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding files response: %w", err)
	}
	return payload.Files, nil
}

// removeRequest is the removal payload: a list of paths (the core only
// ever sends one).
type removeRequest struct {
	Files []string `json:"files"`
}

// Remove deletes one document by path. On failure the server's detail
// text is surfaced verbatim in the returned error.
func (c *Client) Remove(ctx context.Context, filePath string) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	body, err := json.Marshal(removeRequest{Files: []string{filePath}})
	if err != nil {
		return fmt.Errorf("encoding remove request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files/remove", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building remove request: %w", err)
	}
	req.Header.Set(userHeader, c.userID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("removing file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.New(responseDetail(resp))
	}
	return nil
}

// statsResponse carries the aggregate fields of the stats route; the
// per-file list it also returns duplicates the files poll and is
// ignored here.
type statsResponse struct {
	TotalFiles          int     `json:"total_files"`
	TotalIndexingTime   float64 `json:"total_indexing_time"`
	AverageIndexingTime float64 `json:"average_indexing_time"`
}

// Stats fetches aggregate indexing statistics from the indexer.
func (c *Client) Stats(ctx context.Context) (registry.Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/stats", nil)
	if err != nil {
		return registry.Stats{}, fmt.Errorf("building stats request: %w", err)
	}
	req.Header.Set(userHeader, c.userID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return registry.Stats{}, fmt.Errorf("fetching stats: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return registry.Stats{}, fmt.Errorf("fetching stats: %s", responseDetail(resp))
	}

	var payload statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return registry.Stats{}, fmt.Errorf("decoding stats response: %w", err)
	}
	return registry.Stats{
		TotalFiles:             payload.TotalFiles,
		TotalIndexingSeconds:   payload.TotalIndexingTime,
		AverageIndexingSeconds: payload.AverageIndexingTime,
	}, nil
}

// uploadResponse only matters for its count.
type uploadResponse struct {
	Files []json.RawMessage `json:"files"`
}

// Upload posts the given files as one multipart batch and returns the
// number of files the server acknowledged.
//
// The body is assembled up front so the total byte count is known;
// progress is then reported from actual socket writes via a counting
// reader. A non-2xx response body is treated as opaque error text.
func (c *Client) Upload(ctx context.Context, paths []string, progress func(loaded, total int64)) (int, error) {
	if len(paths) == 0 {
		return 0, errors.New("no files to upload")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, p := range paths {
		if err := appendFilePart(writer, p); err != nil {
			return 0, err
		}
	}
	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("finalizing multipart body: %w", err)
	}

	body := io.Reader(&buf)
	total := int64(buf.Len())
	if progress != nil {
		body = &countingReader{r: body, total: total, progress: progress}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files", body)
	if err != nil {
		return 0, fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set(userHeader, c.userID)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.ContentLength = total

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("uploading files: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("upload rejected: %s", strings.TrimSpace(string(text)))
	}

	var payload uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decoding upload response: %w", err)
	}
	return len(payload.Files), nil
}

func appendFilePart(writer *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	part, err := writer.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("creating form part for %s: %w", path, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

// responseDetail extracts the server's human-readable "detail" field,
// falling back to the HTTP status when the body carries none.
func responseDetail(resp *http.Response) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil && json.Unmarshal(data, &payload) == nil && payload.Detail != "" {
		return payload.Detail
	}
	return resp.Status
}

// countingReader reports cumulative bytes read against a known total.
type countingReader struct {
	r        io.Reader
	loaded   int64
	total    int64
	progress func(loaded, total int64)
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.loaded += int64(n)
		c.progress(c.loaded, c.total)
	}
	return n, err
}
