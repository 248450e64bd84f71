package keeper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hazyhaar/draftkeeper/autosave"
	"github.com/hazyhaar/draftkeeper/draftstore"
)

// Client is an autosave.Store backed by a remote keeper's HTTP routes.
type Client struct {
	base string
	hc   *http.Client
}

var _ autosave.Store = (*Client)(nil)

// NewClient creates a Client for the keeper at baseURL. A nil hc gets a
// client with a 10s timeout.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), hc: hc}
}

func (c *Client) draftURL(key string) string {
	return c.base + "/drafts/" + url.PathEscape(key)
}

// Get implements autosave.Store. A 404 means absent.
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	resp, err := c.do(ctx, http.MethodGet, c.draftURL(key), nil)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", false, fmt.Errorf("keeper: client get %q: %w", key, err)
		}
		return string(body), true, nil
	case http.StatusNotFound:
		return "", false, nil
	default:
		return "", false, statusErr("get", key, resp)
	}
}

// Set implements autosave.Store. A 413 is autosave.ErrQuotaExceeded.
func (c *Client) Set(ctx context.Context, key, value string) error {
	resp, err := c.do(ctx, http.MethodPut, c.draftURL(key), strings.NewReader(value))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusRequestEntityTooLarge:
		return fmt.Errorf("%w: %d bytes", autosave.ErrQuotaExceeded, len(value))
	default:
		return statusErr("set", key, resp)
	}
}

// Delete implements autosave.Store.
func (c *Client) Delete(ctx context.Context, key string) error {
	resp, err := c.do(ctx, http.MethodDelete, c.draftURL(key), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return statusErr("delete", key, resp)
	}
}

// List fetches the remote draft index.
func (c *Client) List(ctx context.Context) ([]draftstore.Entry, error) {
	resp, err := c.do(ctx, http.MethodGet, c.base+"/drafts", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusErr("list", "", resp)
	}
	var out []draftstore.Entry
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("keeper: client list: %w", err)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, u string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("keeper: client: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("keeper: client %s: %w", method, err)
	}
	return resp, nil
}

func statusErr(op, key string, resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	msg := resp.Status
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err == nil && body.Error != "" {
		msg = body.Error
	}
	if key != "" {
		return fmt.Errorf("keeper: client %s %q: %d %s", op, key, resp.StatusCode, msg)
	}
	return fmt.Errorf("keeper: client %s: %d %s", op, resp.StatusCode, msg)
}
