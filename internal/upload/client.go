package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/cjeanneret/SnapGo/internal/debug"
)

// DefaultPreset is the unsigned upload preset used when none is configured.
const DefaultPreset = "react-native-camera-upload"

// ErrUploadFailed wraps every network, decoding or missing-URL failure.
var ErrUploadFailed = errors.New("upload failed")

// Request is the JSON body posted to the image host.
type Request struct {
	File         string `json:"file"`
	UploadPreset string `json:"upload_preset"`
}

// Result is the part of the host's response we read.
type Result struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id,omitempty"`
}

// Client posts captured images to a Cloudinary-style unsigned upload endpoint.
type Client struct {
	endpoint   string
	preset     string
	httpClient *http.Client
}

// NewClient creates an upload client. The underlying http.Client has no
// timeout: an upload runs until the transport resolves or fails.
func NewClient(endpoint, preset string) *Client {
	if preset == "" {
		preset = DefaultPreset
	}
	return &Client{
		endpoint:   endpoint,
		preset:     preset,
		httpClient: &http.Client{},
	}
}

// WithHTTPClient swaps the transport. Used by tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// DataURI wraps a base64 payload as a JPEG data URI.
func DataURI(payload string) string {
	return "data:image/jpg;base64," + payload
}

// Body builds the exact JSON body posted for payload.
func (c *Client) Body(payload string) ([]byte, error) {
	return json.Marshal(Request{File: DataURI(payload), UploadPreset: c.preset})
}

// Upload posts payload (base64 image bytes) and returns the hosted URL.
// Success requires a non-empty secure_url in the JSON response.
func (c *Client) Upload(ctx context.Context, payload string) (Result, error) {
	body, err := c.Body(payload)
	if err != nil {
		return Result{}, fmt.Errorf("%w: encode body: %v", ErrUploadFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("%w: request creation: %v", ErrUploadFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	debug.Verbose("Upload: POST %s (%d bytes)", c.endpoint, len(body))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: network error: %v", ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("%w: read response: %v", ErrUploadFailed, err)
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, fmt.Errorf("%w: decode response (status %d): %v", ErrUploadFailed, resp.StatusCode, err)
	}
	if result.SecureURL == "" {
		return Result{}, fmt.Errorf("%w: no secure_url in response (status %d)", ErrUploadFailed, resp.StatusCode)
	}

	debug.Info("Uploaded to %s", result.SecureURL)
	return result, nil
}
