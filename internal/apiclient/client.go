// Package apiclient is the HTTP client the CLI uses to talk to a running
// daemon. Calls carry context timeouts so commands fail fast when the daemon
// is offline.
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"suture/internal/api"
)

// SubmitInput carries the submit form fields alongside the video path.
type SubmitInput struct {
	VideoPath      string
	Name           string
	Email          string
	Program        string
	Iteration      int
	AdditionalInfo string
}

// Client talks to the daemon API.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// New builds a client for the given base URL, e.g. "http://127.0.0.1:8085".
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpc:   &http.Client{Timeout: 5 * time.Minute},
	}
}

// Submit uploads a video and returns the acknowledgement.
func (c *Client) Submit(ctx context.Context, in SubmitInput) (*api.SubmitResponse, error) {
	file, err := os.Open(in.VideoPath)
	if err != nil {
		return nil, fmt.Errorf("open video: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		err := writeSubmitForm(writer, in, file)
		writer.Close()
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/submit", pr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var resp api.SubmitResponse
	if err := c.do(req, http.StatusAccepted, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func writeSubmitForm(writer *multipart.Writer, in SubmitInput, file *os.File) error {
	fields := map[string]string{
		"name":             in.Name,
		"email":            in.Email,
		"program":          in.Program,
		"iteration_number": strconv.Itoa(in.Iteration),
		"additional_info":  in.AdditionalInfo,
	}
	for key, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(key, value); err != nil {
			return err
		}
	}
	part, err := writer.CreateFormFile("video", filepath.Base(in.VideoPath))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, file)
	return err
}

// Status fetches a single submission's state.
func (c *Client) Status(ctx context.Context, id string) (*api.StatusResponse, error) {
	req, err := c.get(ctx, "/status/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	var resp api.StatusResponse
	if err := c.do(req, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Cancel stops a submission.
func (c *Client) Cancel(ctx context.Context, id string) (*api.CancelResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/submission/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	var resp api.CancelResponse
	if err := c.do(req, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueStatus fetches the aggregate queue view.
func (c *Client) QueueStatus(ctx context.Context) (*api.QueueStatusResponse, error) {
	req, err := c.get(ctx, "/queue-status")
	if err != nil {
		return nil, err
	}
	var resp api.QueueStatusResponse
	if err := c.do(req, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health fetches the daemon's health report. Degraded daemons answer 503
// with a body, so that status is not an error here.
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	req, err := c.get(ctx, "/health")
	if err != nil {
		return nil, err
	}
	req = c.authorize(req)

	httpResp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusServiceUnavailable {
		return nil, unexpectedStatus(httpResp)
	}
	var resp api.HealthResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode health response: %w", err)
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, path string) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
}

func (c *Client) authorize(req *http.Request) *http.Request {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req
}

func (c *Client) do(req *http.Request, wantStatus int, out any) error {
	req = c.authorize(req)
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return unexpectedStatus(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func unexpectedStatus(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, payload.Error)
	}
	return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
