// Package github is a minimal client for the pieces of the GitHub REST API
// the publish protocol needs: reading a repository's metadata and reading or
// conditionally writing a single file through the contents endpoint.
//
// The file's sha acts as the revision token for optimistic concurrency: a
// PUT carrying a stale sha is rejected with a conflict, which callers detect
// with errors.Is(err, ErrConflict) and handle by re-reading.
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the public GitHub API endpoint.
const DefaultBaseURL = "https://api.github.com"

// Client talks to the GitHub REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Config holds client configuration.
type Config struct {
	// Token is the personal access token. Sent as-is; acquiring it is the
	// operator's concern.
	Token string

	// BaseURL overrides the API endpoint (tests point this at a local server).
	BaseURL string

	// HTTPClient overrides the default client (30s timeout).
	HTTPClient *http.Client
}

// New creates a GitHub client.
func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   cfg.Token,
		http:    httpClient,
	}
}

// Repo is the subset of repository metadata the verifier needs.
type Repo struct {
	FullName      string `json:"full_name"`
	DefaultBranch string `json:"default_branch"`
	Permissions   struct {
		Push bool `json:"push"`
	} `json:"permissions"`
}

// File is a file read through the contents endpoint. SHA is the revision
// token required for a safe conditional write.
type File struct {
	SHA     string
	Content []byte
}

// PutFileOptions parameterizes a conditional write.
type PutFileOptions struct {
	// Message is the commit message recorded by the write.
	Message string

	// Content is the raw file content; the client base64-encodes it.
	Content []byte

	// Branch to commit to.
	Branch string

	// SHA is the revision token from the last read. Leave empty when the
	// file does not exist yet (first publish).
	SHA string
}

func (c *Client) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// statusToError maps a non-success response to a typed error.
func statusToError(resp *http.Response) error {
	var apiMsg struct {
		Message string `json:"message"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(data, &apiMsg)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: apiMsg.Message}
}

// GetRepo fetches repository metadata.
func (c *Client) GetRepo(ctx context.Context, owner, repo string) (*Repo, error) {
	u := fmt.Sprintf("%s/repos/%s/%s", c.baseURL, url.PathEscape(owner), url.PathEscape(repo))

	req, err := c.newRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("repo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusToError(resp)
	}

	var r Repo
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("failed to decode repo metadata: %w", err)
	}
	return &r, nil
}

// GetFile reads a file at the given ref. Returns ErrNotFound if the file
// does not exist, which for the published document means "first publish".
func (c *Client) GetFile(ctx context.Context, owner, repo, path, ref string) (*File, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.baseURL,
		url.PathEscape(owner), url.PathEscape(repo), escapePath(path))
	if ref != "" {
		u += "?ref=" + url.QueryEscape(ref)
	}

	req, err := c.newRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	// The document is read back immediately after writes; never serve a
	// cached copy.
	req.Header.Set("Cache-Control", "no-store")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("read request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusToError(resp)
	}

	var payload struct {
		SHA      string `json:"sha"`
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode file response: %w", err)
	}

	file := &File{SHA: payload.SHA}
	if payload.Content != "" {
		// The API wraps base64 content at 60 columns.
		raw := strings.Map(func(r rune) rune {
			if r == '\n' || r == '\r' {
				return -1
			}
			return r
		}, payload.Content)
		content, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode file content: %w", err)
		}
		file.Content = content
	}
	return file, nil
}

// PutFile writes a file conditioned on opts.SHA. Returns ErrConflict when
// the supplied sha is stale, meaning the file changed since it was read.
func (c *Client) PutFile(ctx context.Context, owner, repo, path string, opts PutFileOptions) error {
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.baseURL,
		url.PathEscape(owner), url.PathEscape(repo), escapePath(path))

	body := struct {
		Message string `json:"message"`
		Content string `json:"content"`
		Branch  string `json:"branch,omitempty"`
		SHA     string `json:"sha,omitempty"`
	}{
		Message: opts.Message,
		Content: base64.StdEncoding.EncodeToString(opts.Content),
		Branch:  opts.Branch,
		SHA:     opts.SHA,
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode write request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPut, u, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("write request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return statusToError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// escapePath escapes each segment of a slash-separated repo path, keeping
// the slashes themselves intact.
func escapePath(path string) string {
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
