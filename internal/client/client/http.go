package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/ilyakarpov/paycodes/internal/common"
)

const recordsCollectionPath = "/api/collections/records/records"

// HTTPClient implements Client over JSON HTTP.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient returns an HTTPClient for baseURL. The timeout bounds each
// individual request; zero means no client-side limit.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) Authenticate(ctx context.Context, userID, password string) (*AuthResult, error) {
	body := map[string]string{"identity": userID, "password": password}
	var resp struct {
		Token  string `json:"token"`
		Record struct {
			ID string `json:"id"`
		} `json:"record"`
	}
	err := c.do(ctx, http.MethodPost, "/api/collections/users/auth-with-password", "", body, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("%w: empty token in auth response", common.ErrUnavailable)
	}
	return &AuthResult{Token: resp.Token, UserID: resp.Record.ID}, nil
}

func (c *HTTPClient) Refresh(ctx context.Context, token string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, "/api/collections/users/auth-refresh", token, nil, &resp)
	if err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("%w: empty token in refresh response", common.ErrUnavailable)
	}
	return resp.Token, nil
}

func (c *HTTPClient) List(ctx context.Context, token string, opts ListOptions) (*ListResult, error) {
	q := url.Values{}
	if opts.Filter != "" {
		q.Set("filter", opts.Filter)
	}
	if opts.Sort != "" {
		q.Set("sort", opts.Sort)
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PerPage > 0 {
		q.Set("perPage", strconv.Itoa(opts.PerPage))
	}

	path := recordsCollectionPath
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		Items      []map[string]any `json:"items"`
		Page       int              `json:"page"`
		PerPage    int              `json:"perPage"`
		TotalPages int              `json:"totalPages"`
		TotalItems int              `json:"totalItems"`
	}
	if err := c.do(ctx, http.MethodGet, path, token, nil, &resp); err != nil {
		return nil, err
	}
	return &ListResult{
		Items:      resp.Items,
		Page:       resp.Page,
		PerPage:    resp.PerPage,
		TotalPages: resp.TotalPages,
		TotalItems: resp.TotalItems,
	}, nil
}

func (c *HTTPClient) Create(ctx context.Context, token string, row map[string]any) error {
	return c.do(ctx, http.MethodPost, recordsCollectionPath, token, row, nil)
}

func (c *HTTPClient) Update(ctx context.Context, token, id string, row map[string]any) error {
	return c.do(ctx, http.MethodPatch, recordsCollectionPath+"/"+url.PathEscape(id), token, row, nil)
}

func (c *HTTPClient) Delete(ctx context.Context, token, id string) error {
	return c.do(ctx, http.MethodDelete, recordsCollectionPath+"/"+url.PathEscape(id), token, nil, nil)
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", "", nil, nil)
}

// do performs one JSON request. out may be nil when the response body is not
// needed.
func (c *HTTPClient) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(common.AuthHeaderName, "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return mapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return mapStatusError(resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: malformed response body", common.ErrUnavailable)
	}
	return nil
}

func mapTransportError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err):
		return fmt.Errorf("%w: %v", common.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %v", common.ErrOffline, err)
	}
}

func mapStatusError(code int) error {
	switch {
	case code == http.StatusUnauthorized:
		return common.ErrUnauthorized
	case code == http.StatusForbidden:
		return common.ErrForbidden
	case code == http.StatusNotFound:
		return common.ErrNotFound
	case code == http.StatusBadRequest:
		return common.ErrValidation
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return common.ErrTimeout
	case code >= 500:
		return common.ErrUnavailable
	default:
		return fmt.Errorf("%w: unexpected status %d", common.ErrUnavailable, code)
	}
}
