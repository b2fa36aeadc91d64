package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"time"
)

// client is a minimal HTTP client for the admin API, authenticated once at
// construction and reused for the command's lifetime via its cookie jar.
type client struct {
	baseURL string
	http    *http.Client
}

func newClient(ctx context.Context) (*client, error) {
	user := username
	if user == "" {
		user = os.Getenv("AGENTGATE_USERNAME")
	}
	pass := password
	if pass == "" {
		pass = os.Getenv("AGENTGATE_PASSWORD")
	}
	if user == "" || pass == "" {
		return nil, fmt.Errorf("admin username/password required: pass --username/--password or set AGENTGATE_USERNAME/AGENTGATE_PASSWORD")
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	c := &client{
		baseURL: serverURL,
		http:    &http.Client{Jar: jar, Timeout: 15 * time.Second},
	}
	if err := c.login(ctx, user, pass); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *client) login(ctx context.Context, user, pass string) error {
	body, _ := json.Marshal(map[string]string{"username": user, "password": pass})
	resp, err := c.do(ctx, http.MethodPost, "/api/admin/login", body)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed: %s", resp.Status)
	}
	return nil
}

func (c *client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.http.Do(req)
}

// getJSON issues a GET and decodes the JSON response into out.
func (c *client) getJSON(ctx context.Context, path string, out interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// postJSON issues a POST/PATCH/PUT with a JSON body and decodes the
// response into out, if non-nil.
func (c *client) postJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body []byte
	var err error
	if in != nil {
		body, err = json.Marshal(in)
		if err != nil {
			return err
		}
	}
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func apiError(resp *http.Response) error {
	var body struct {
		Error struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		} `json:"error"`
	}
	data, _ := io.ReadAll(resp.Body)
	if json.Unmarshal(data, &body) == nil && body.Error.Message != "" {
		return fmt.Errorf("%s: %s", body.Error.Kind, body.Error.Message)
	}
	return fmt.Errorf("request failed: %s", resp.Status)
}
