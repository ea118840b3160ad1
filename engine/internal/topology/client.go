package topology

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrFetch marks an HTTP-level failure against either external service.
// The CLI maps it to exit code 2.
var ErrFetch = errors.New("topology: service fetch failed")

// TrafficMatrix maps src city -> dst city -> offered bytes per second.
type TrafficMatrix map[string]map[string]float64

// Rate returns the offered load for a pair; zero when absent.
func (m TrafficMatrix) Rate(src, dst string) float64 {
	if row, ok := m[src]; ok {
		return row[dst]
	}
	return 0
}

// Client talks to the topology builder and traffic matrix services.
type Client struct {
	TopologyURL      string
	TrafficMatrixURL string
	HTTPClient       *http.Client
}

// NewClient builds a client with a sane default timeout.
func NewClient(topologyURL, trafficMatrixURL string) *Client {
	return &Client{
		TopologyURL:      topologyURL,
		TrafficMatrixURL: trafficMatrixURL,
		HTTPClient:       &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %s", ErrFetch, rawURL, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	return body, nil
}

// FetchTopology retrieves and decodes the constellation snapshot for wall
// clock instant t.
func (c *Client) FetchTopology(ctx context.Context, t time.Time, cities []string) (*Topology, error) {
	q := url.Values{}
	q.Set("t", t.Format("2006-01-02 15:04:05 -0700"))
	q.Set("cities", strings.Join(cities, ","))
	body, err := c.get(ctx, c.TopologyURL+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	return Decode(body)
}

// FetchTrafficMatrix retrieves the gravity-model traffic matrix. Entries
// with src == dst may be present; callers ignore them.
func (c *Client) FetchTrafficMatrix(ctx context.Context, totalVolume float64, cities []string) (TrafficMatrix, error) {
	q := url.Values{}
	q.Set("total_volume_of_traffic", strconv.FormatFloat(totalVolume, 'f', -1, 64))
	q.Set("cities", strings.Join(cities, ","))
	body, err := c.get(ctx, c.TrafficMatrixURL+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	var tm TrafficMatrix
	if err := json.Unmarshal(body, &tm); err != nil {
		return nil, fmt.Errorf("%w: decoding traffic matrix: %v", ErrFetch, err)
	}
	return tm, nil
}
