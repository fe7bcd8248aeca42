package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/flagstream-dev/flagstream/internal/errors"
)

// defaultServiceURL is where flag commands look for a running service.
const defaultServiceURL = "http://localhost:8099"

// serviceClient talks to a running flag service over its REST API.
type serviceClient struct {
	base string
	http *http.Client
}

func newServiceClient(base string) *serviceClient {
	if base == "" {
		base = defaultServiceURL
	}
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &serviceClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// snapshotResponse mirrors the service snapshot body.
type snapshotResponse struct {
	Version uint64         `json:"version"`
	Flags   map[string]any `json:"flags"`
}

// flagResponse mirrors the service single-flag body.
type flagResponse struct {
	Key     string `json:"key"`
	Value   any    `json:"value"`
	Version uint64 `json:"version"`
}

func (c *serviceClient) list() (*snapshotResponse, error) {
	var out snapshotResponse
	if err := c.do(http.MethodGet, "/flags", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *serviceClient) get(key string) (*flagResponse, error) {
	var out flagResponse
	if err := c.do(http.MethodGet, "/flags/"+url.PathEscape(key), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *serviceClient) set(key string, value any) (*flagResponse, error) {
	body := map[string]any{"value": value}
	var out flagResponse
	if err := c.do(http.MethodPut, "/flags/"+url.PathEscape(key), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *serviceClient) delete(key string) error {
	return c.do(http.MethodDelete, "/flags/"+url.PathEscape(key), nil, nil)
}

func (c *serviceClient) replace(mapping map[string]any) (*snapshotResponse, error) {
	var out snapshotResponse
	if err := c.do(http.MethodPost, "/flags", mapping, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *serviceClient) do(method, path string, body, into any) error {
	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.New("E401").Wrap(err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.base+path, reqBody)
	if err != nil {
		return errors.New("E202").Wrap(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.New("E201").Wrap(err).
			WithSuggestion("Start the service with 'flagstream serve' or pass --addr")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errors.New("E203")
	}
	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return errors.New("E202").
			WithDetail(fmt.Sprintf("%s %s returned %d: %s", method, path, resp.StatusCode, e.Error))
	}

	if into == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return errors.New("E202").Wrap(err)
	}
	return nil
}
