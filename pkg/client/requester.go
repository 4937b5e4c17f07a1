// Copyright 2024-2026 Aiku AI

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// Requester performs API requests. body is JSON-encoded when non-nil. A
// non-2xx response must be returned as an error.
type Requester interface {
	Request(ctx context.Context, method, path string, body any) ([]byte, error)
}

// HTTPRequester is the default Requester.
type HTTPRequester struct {
	BaseURL string
	Client  *http.Client
	// Auth returns the authentication header to send, if any.
	Auth    func() (name, value string)
	limiter *rate.Limiter
}

// NewHTTPRequester creates a requester for baseURL. A positive rps limits the
// request rate with the given burst.
func NewHTTPRequester(baseURL string, rps float64, burst int) *HTTPRequester {
	r := &HTTPRequester{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Client:  http.DefaultClient,
	}
	if rps > 0 {
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return r
}

func (r *HTTPRequester) Request(ctx context.Context, method, path string, body any) ([]byte, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("failed to wait for request slot: %w", err)
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.Auth != nil {
		if name, value := r.Auth(); name != "" && value != "" {
			req.Header.Set(name, value)
		}
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response of %s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpErr := &HTTPError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(data)}
		if gjson.ValidBytes(data) {
			httpErr.Type = gjson.GetBytes(data, "type").String()
		}
		return nil, httpErr
	}
	return data, nil
}
