package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrListingNotFound = errors.New("listing not found")

type Specs struct {
	CPUCores  int    `json:"cpu_cores"`
	RAMGB     int    `json:"ram_gb"`
	StorageGB int    `json:"storage_gb"`
	OSType    string `json:"os_type"`
}

// Listing is the subset of a catalog listing other services price and
// provision against.
type Listing struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Price          float64  `json:"price"`
	Status         string   `json:"status"`
	Regions        []string `json:"regions"`
	ImageType      string   `json:"image_type"`
	Specifications Specs    `json:"specifications"`
}

// Client looks up listings in the catalog-service.
type Client interface {
	GetListing(ctx context.Context, id string) (*Listing, error)
}

type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *HTTPClient) GetListing(ctx context.Context, id string) (*Listing, error) {
	endpoint := fmt.Sprintf("%s/vms/%s", c.baseURL, url.PathEscape(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusBadRequest:
		return nil, ErrListingNotFound
	default:
		return nil, fmt.Errorf("catalog service returned %d", resp.StatusCode)
	}

	var l Listing
	if err := json.NewDecoder(resp.Body).Decode(&l); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}
	return &l, nil
}
