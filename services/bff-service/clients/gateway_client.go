package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// UpstreamError is returned by GetJSON when the gateway answers with a
// status of 400 or above.
type UpstreamError struct {
	Status int
	Body   []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error: status=%d body=%s", e.Status, string(e.Body))
}

// Message returns the upstream {"error": ...} text when there is one.
func (e *UpstreamError) Message() string {
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(e.Body, &body) == nil && body.Error != "" {
		return body.Error
	}
	return http.StatusText(e.Status)
}

// Headers that describe a single connection and must not be forwarded.
// Accept-Encoding is dropped so the transport negotiates and decodes gzip.
var hopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
	"Host":                true,
	"Content-Length":      true,
	"Accept-Encoding":     true,
}

type GatewayClient struct {
	baseURL string
	client  *http.Client
}

func NewGatewayClient(baseURL string, timeout time.Duration) *GatewayClient {
	return &GatewayClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Do sends a request to the gateway, forwarding the caller's end-to-end headers.
func (g *GatewayClient) Do(ctx context.Context, method, path string, query url.Values, headers http.Header, body io.Reader) (*http.Response, error) {
	u := g.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}

	for k, v := range headers {
		if hopHeaders[http.CanonicalHeaderKey(k)] {
			continue
		}
		for _, vv := range v {
			req.Header.Add(k, vv)
		}
	}

	return g.client.Do(req)
}

// GetJSON performs a GET and returns the raw JSON body.
func (g *GatewayClient) GetJSON(ctx context.Context, path string, query url.Values, headers http.Header) (json.RawMessage, error) {
	resp, err := g.Do(ctx, http.MethodGet, path, query, headers, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: body}
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("upstream returned invalid JSON from %s", path)
	}
	return body, nil
}

// CopyResponse writes resp to w, dropping hop-by-hop headers.
func CopyResponse(w http.ResponseWriter, resp *http.Response) error {
	defer resp.Body.Close()

	for k, v := range resp.Header {
		if hopHeaders[k] {
			continue
		}
		for _, vv := range v {
			w.Header().Add(k, vv)
		}
	}
	w.WriteHeader(resp.StatusCode)

	_, err := io.Copy(w, resp.Body)
	return err
}
