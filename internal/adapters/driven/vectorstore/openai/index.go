// Package openai provides a content index adapter backed by an OpenAI vector store.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
)

// Ensure ContentIndex implements the interface.
var _ driven.ContentIndex = (*ContentIndex)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultTimeout = 60 * time.Second

	// FilePurpose is the purpose files are uploaded with.
	FilePurpose = "assistants"
)

// Config holds configuration for the OpenAI content index.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// VectorStoreID is the vector store documents are attached to (required).
	VectorStoreID string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	// Can be changed for compatible APIs.
	BaseURL string

	// Timeout is the HTTP client timeout (default: 60s).
	Timeout time.Duration
}

// ContentIndex uploads documents as files and attaches them to a vector store.
// The content id of a document is its file id.
type ContentIndex struct {
	client        *http.Client
	baseURL       string
	apiKey        string
	vectorStoreID string
}

type fileObject struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
}

type fileBatchRequest struct {
	FileIDs []string `json:"file_ids"`
}

type apiErrorBody struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewContentIndex creates a new OpenAI content index.
func NewContentIndex(cfg Config) (*ContentIndex, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.VectorStoreID == "" {
		return nil, fmt.Errorf("openai: vector store ID is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &ContentIndex{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:       cfg.BaseURL,
		apiKey:        cfg.APIKey,
		vectorStoreID: cfg.VectorStoreID,
	}, nil
}

// VectorStoreID returns the vector store documents are attached to.
func (c *ContentIndex) VectorStoreID() string {
	return c.vectorStoreID
}

// Push uploads content as a file and attaches it to the vector store.
// If attaching fails the uploaded file is deleted again.
func (c *ContentIndex) Push(ctx context.Context, name string, content io.Reader) (string, error) {
	fileID, err := c.upload(ctx, name, content)
	if err != nil {
		return "", err
	}

	if err := c.attach(ctx, fileID); err != nil {
		if rmErr := c.Remove(ctx, fileID); rmErr != nil {
			return "", fmt.Errorf("%w (and file %s could not be removed: %v)", err, fileID, rmErr)
		}
		return "", err
	}
	return fileID, nil
}

// Remove deletes a file. Deleting a file detaches it from every vector
// store. A file that no longer exists counts as removed.
func (c *ContentIndex) Remove(ctx context.Context, contentID string) error {
	if contentID == "" {
		return nil
	}
	resp, body, err := c.do(ctx, http.MethodDelete, "/files/"+url.PathEscape(contentID), "", nil)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return checkStatus("delete file", resp, body)
}

func (c *ContentIndex) upload(ctx context.Context, name string, content io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("purpose", FilePurpose); err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}

	resp, body, err := c.do(ctx, http.MethodPost, "/files", mw.FormDataContentType(), &buf)
	if err != nil {
		return "", err
	}
	if err := checkStatus("upload file", resp, body); err != nil {
		return "", err
	}

	var file fileObject
	if err := json.Unmarshal(body, &file); err != nil {
		return "", fmt.Errorf("%w: decode upload response: %v", domain.ErrContentIndex, err)
	}
	if file.ID == "" {
		return "", fmt.Errorf("%w: upload returned no file id", domain.ErrContentIndex)
	}
	return file.ID, nil
}

func (c *ContentIndex) attach(ctx context.Context, fileID string) error {
	jsonBody, err := json.Marshal(fileBatchRequest{FileIDs: []string{fileID}})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	path := "/vector_stores/" + url.PathEscape(c.vectorStoreID) + "/file_batches"
	resp, body, err := c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(jsonBody))
	if err != nil {
		return err
	}
	return checkStatus("attach file "+fileID, resp, body)
}

// do sends a request and reads the whole response body.
func (c *ContentIndex) do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, []byte, error) {
	if body == nil {
		body = http.NoBody
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: send request: %w", domain.ErrContentIndex, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read response: %w", domain.ErrContentIndex, err)
	}
	return resp, respBody, nil
}

func checkStatus(op string, resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	msg := string(body)
	var apiErr apiErrorBody
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w: %s: %s", domain.ErrContentIndex, domain.ErrRateLimited, op, msg)
	}
	return fmt.Errorf("%w: %s (status %d): %s", domain.ErrContentIndex, op, resp.StatusCode, msg)
}
