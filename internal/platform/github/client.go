// Package github publishes generated artifacts (cycle reports, batch files)
// to a GitHub repository via the contents API.
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
	"time"

	"github.com/truesightdao/tokenops/internal/domain"
)

// DefaultBaseURL is the GitHub REST API root.
const DefaultBaseURL = "https://api.github.com"

// Config holds the repository coordinates and token for the client.
type Config struct {
	BaseURL string
	Token   string
	Owner   string
	Repo    string
	Branch  string // empty means the repository default branch
}

// Client uploads files to a single GitHub repository.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// contentRequest is the payload for PUT /repos/{owner}/{repo}/contents/{path}.
type contentRequest struct {
	Message string `json:"message"`
	Content string `json:"content"` // base64
	Branch  string `json:"branch,omitempty"`
	SHA     string `json:"sha,omitempty"`
}

// contentResponse is the subset of the contents API response we use.
type contentResponse struct {
	Content struct {
		Path        string `json:"path"`
		SHA         string `json:"sha"`
		DownloadURL string `json:"download_url"`
		HTMLURL     string `json:"html_url"`
	} `json:"content"`
}

// NewClient creates a GitHub contents client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("github: token is required")
	}
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, fmt.Errorf("github: owner and repo are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// UploadFile creates or updates path in the repository with the given content
// and commit message, returning the HTML URL of the stored file. If the file
// already exists its blob SHA is fetched first so the update succeeds.
func (c *Client) UploadFile(ctx context.Context, path, commitMessage string, content []byte) (string, error) {
	reqBody := contentRequest{
		Message: commitMessage,
		Content: base64.StdEncoding.EncodeToString(content),
		Branch:  c.cfg.Branch,
	}

	if sha, err := c.getSHA(ctx, path); err == nil {
		reqBody.SHA = sha
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("github: marshal content request: %w", err)
	}

	u := c.contentsURL(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("github: create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("github: upload %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("github: read response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("github: upload %s: status %d: %s", path, resp.StatusCode, truncate(respBody, 512))
	}

	var parsed contentResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("github: decode response: %w", err)
	}
	return parsed.Content.HTMLURL, nil
}

// getSHA returns the blob SHA of an existing file, or domain.ErrNotFound.
func (c *Client) getSHA(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.contentsURL(path), nil)
	if err != nil {
		return "", fmt.Errorf("github: create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("github: stat %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("github: %s: %w", path, domain.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("github: stat %s: status %d", path, resp.StatusCode)
	}

	var parsed struct {
		SHA string `json:"sha"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("github: decode stat response: %w", err)
	}
	return parsed.SHA, nil
}

func (c *Client) contentsURL(path string) string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		c.cfg.BaseURL, url.PathEscape(c.cfg.Owner), url.PathEscape(c.cfg.Repo), path)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
