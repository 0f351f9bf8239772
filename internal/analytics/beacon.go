package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Tables accepted by the beacon endpoint.
const (
	TableSessions  = "sessions"
	TablePageViews = "page_views"
)

const beaconTimeout = 10 * time.Second

// beaconRequest represents the request body for the beacon endpoint
type beaconRequest struct {
	Table   string         `json:"table"`
	Payload map[string]any `json:"payload"`
}

// beaconResponse represents the response from the beacon endpoint
type beaconResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}

// BeaconClient writes telemetry rows to the table-store endpoint. A
// payload with an id patches that row; a payload without one inserts a
// new row and the endpoint returns its id.
type BeaconClient struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
	meter      metric.Meter

	wg sync.WaitGroup
}

// NewBeaconClient creates a client for the beacon endpoint at url.
func NewBeaconClient(url string, httpClient *http.Client, logger *slog.Logger, tracer trace.Tracer, meter metric.Meter) *BeaconClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: beaconTimeout}
	}
	return &BeaconClient{url: url, httpClient: httpClient, logger: logger, tracer: tracer, meter: meter}
}

// Insert creates a row in table and returns its remote id.
func (c *BeaconClient) Insert(ctx context.Context, table string, payload map[string]any) (string, error) {
	return c.send(ctx, table, payload)
}

// Patch updates the row with the given id. Only the fields present in
// payload change.
func (c *BeaconClient) Patch(ctx context.Context, table, id string, payload map[string]any) error {
	_, err := c.send(ctx, table, withID(payload, id))
	return err
}

// SendBeacon delivers a patch without waiting for the response. It is
// initiated synchronously and never awaited, so a teardown path that will
// not get another turn can still issue it. Failures are logged and
// counted, nothing more.
func (c *BeaconClient) SendBeacon(table, id string, payload map[string]any) {
	body := withID(payload, id)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), beaconTimeout)
		defer cancel()
		if _, err := c.send(ctx, table, body); err != nil {
			c.logger.Warn("beacon dropped", "table", table, "id", id, "error", err)
			counter, cerr := c.meter.Int64Counter(
				"beacon.dropped",
				metric.WithDescription("Fire-and-forget beacons that failed to deliver"),
			)
			if cerr == nil {
				counter.Add(ctx, 1)
			}
		}
	}()
}

// Flush waits for in-flight fire-and-forget beacons. Used on shutdown and
// in tests.
func (c *BeaconClient) Flush() {
	c.wg.Wait()
}

func (c *BeaconClient) send(ctx context.Context, table string, payload map[string]any) (string, error) {
	ctx, span := c.tracer.Start(ctx, "beacon_api_call")
	defer span.End()

	start := time.Now()

	jsonData, err := json.Marshal(beaconRequest{Table: table, Payload: payload})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("content-type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("API error: %s - %s", resp.Status, string(body))
	}

	var apiResp beaconResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if !apiResp.Success {
		return "", fmt.Errorf("beacon rejected: %s", apiResp.Error)
	}

	duration := time.Since(start)
	histogram, err := c.meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
	)
	if err == nil {
		histogram.Record(ctx, float64(duration.Milliseconds()))
	}

	return apiResp.ID, nil
}

func withID(payload map[string]any, id string) map[string]any {
	out := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		out[k] = v
	}
	out["id"] = id
	return out
}
