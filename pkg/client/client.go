// Package client is a thin Go wrapper around the cdhsearch HTTP API.
//
// Every method returns *APIError when the server answers with a
// non-successful status code.
//
// Example usage:
//
//	c := client.New("http://localhost:8080")
//	report, err := c.LoadDataset(ctx, files)
//	results, err := c.Search(ctx, query, 6)
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Client is a high-level HTTP client for a cdhsearch server.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// APIError represents an error returned by the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cdhsearch: %d %s", e.StatusCode, e.Message)
}

// File is one encoded image to upload.
type File struct {
	Name string
	Data []byte
}

// ReadFile loads the image at path, named by its base name.
func ReadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	return File{Name: filepath.Base(path), Data: data}, nil
}

type Entry struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
}

type Dataset struct {
	DatasetID string     `json:"dataset_id"`
	Bins      int        `json:"bins"`
	ImageSize uint       `json:"image_size"`
	Count     int        `json:"count"`
	LoadedAt  *time.Time `json:"loaded_at,omitempty"`
	Entries   []Entry    `json:"entries"`
}

type Failure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

type LoadReport struct {
	DatasetID  string    `json:"dataset_id"`
	Total      int       `json:"total"`
	Indexed    int       `json:"indexed"`
	Failures   []Failure `json:"failures"`
	DurationMS int64     `json:"duration_ms"`
}

type Result struct {
	ID       string  `json:"id"`
	Position int     `json:"position"`
	Score    float64 `json:"score"`
}

// New creates a client for baseURL.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 5 * time.Minute},
	}
}

// do sends a request and decodes a JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var e struct {
			Error string `json:"error"`
		}
		msg := string(respBody)
		if json.Unmarshal(respBody, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

// upload posts files under field as multipart form data along with fields.
func (c *Client) upload(ctx context.Context, path, field string, files []File, fields map[string]string, out any) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	for _, f := range files {
		w, err := mw.CreateFormFile(field, f.Name)
		if err != nil {
			return err
		}
		if _, err := w.Write(f.Data); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, mw.FormDataContentType(), &body, out)
}

// HealthCheck reports whether the server answers with status ok.
func (c *Client) HealthCheck(ctx context.Context) (bool, error) {
	var result map[string]any
	if err := c.do(ctx, http.MethodGet, "/", "", nil, &result); err != nil {
		return false, err
	}
	return result["status"] == "ok", nil
}

// Dataset describes the server's current dataset.
func (c *Client) Dataset(ctx context.Context) (*Dataset, error) {
	var ds Dataset
	if err := c.do(ctx, http.MethodGet, "/v1/dataset", "", nil, &ds); err != nil {
		return nil, err
	}
	return &ds, nil
}

// LoadDataset replaces the server's dataset with files, in order.
func (c *Client) LoadDataset(ctx context.Context, files []File) (*LoadReport, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("cdhsearch: no files to upload")
	}
	var report LoadReport
	if err := c.upload(ctx, "/v1/dataset", "images", files, nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// AddImage appends one image to the dataset.
func (c *Client) AddImage(ctx context.Context, f File) (*Entry, error) {
	var e Entry
	if err := c.upload(ctx, "/v1/dataset/images", "image", []File{f}, nil, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Reset clears the dataset.
func (c *Client) Reset(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/v1/dataset", "", nil, nil)
}

// Search returns the topK most similar images to query. topK <= 0 lets the
// server pick its default.
func (c *Client) Search(ctx context.Context, query File, topK int) ([]Result, error) {
	fields := map[string]string{}
	if topK > 0 {
		fields["top_k"] = strconv.Itoa(topK)
	}
	var resp struct {
		Results []Result `json:"results"`
	}
	if err := c.upload(ctx, "/v1/search", "image", []File{query}, fields, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}
