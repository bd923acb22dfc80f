package provisioner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPProvisioner drives an external provisioning API.
type HTTPProvisioner struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPProvisioner(baseURL, token string, timeout time.Duration) *HTTPProvisioner {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPProvisioner{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProvisioner) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("provisioner %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("provisioner %s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
		if rejected(resp.StatusCode) {
			err = fmt.Errorf("%w: %w", ErrRejected, err)
		}
		return resp.StatusCode, err
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode provisioner response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// rejected reports whether a response status is final. Timeouts, throttling
// and server errors are worth retrying.
func rejected(status int) bool {
	switch {
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return false
	case status >= 400 && status < 500:
		return true
	}
	return false
}

func instancePath(externalID string, suffix ...string) string {
	parts := append([]string{"/instances", url.PathEscape(externalID)}, suffix...)
	return strings.Join(parts, "/")
}

func (p *HTTPProvisioner) Provision(ctx context.Context, spec Spec) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if _, err := p.do(ctx, http.MethodPost, "/instances", spec, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("%w: no instance id returned", ErrRejected)
	}
	return out.ID, nil
}

func (p *HTTPProvisioner) AssignNetwork(ctx context.Context, externalID string) (string, error) {
	var out struct {
		IPAddress string `json:"ip_address"`
	}
	if _, err := p.do(ctx, http.MethodPost, instancePath(externalID, "network"), nil, &out); err != nil {
		return "", err
	}
	if out.IPAddress == "" {
		return "", fmt.Errorf("%w: no ip address returned", ErrRejected)
	}
	return out.IPAddress, nil
}

func (p *HTTPProvisioner) Power(ctx context.Context, externalID, action string) error {
	if !validAction(action) {
		return fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
	_, err := p.do(ctx, http.MethodPost, instancePath(externalID, action), nil, nil)
	return err
}

// Deprovision treats an already deleted machine as success.
func (p *HTTPProvisioner) Deprovision(ctx context.Context, externalID string) error {
	status, err := p.do(ctx, http.MethodDelete, instancePath(externalID), nil, nil)
	if status == http.StatusNotFound {
		return nil
	}
	return err
}

func (p *HTTPProvisioner) Usage(ctx context.Context, externalID string) (Usage, error) {
	var u Usage
	_, err := p.do(ctx, http.MethodGet, instancePath(externalID, "usage"), nil, &u)
	return u, err
}
