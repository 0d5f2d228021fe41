package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/oakhurst-automation/stategate/internal/infrastructure/config"
	"github.com/oakhurst-automation/stategate/internal/store"
)

// Default timeouts for InfluxDB operations.
const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second
)

// Sentinel errors for the InfluxDB source.
var (
	// ErrDisabled indicates InfluxDB integration is disabled in config.
	ErrDisabled = errors.New("history: disabled in configuration")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("history: connection failed")

	// ErrNotConnected indicates the client is not connected.
	ErrNotConnected = errors.New("history: not connected")
)

// InfluxSource serves time-series queries from InfluxDB v2 and records
// acknowledged state values as they happen.
//
// Writes are non-blocking and batched; queries run Flux against the
// configured bucket. All methods are safe for concurrent use.
type InfluxSource struct {
	client   influxdb2.Client
	queryAPI api.QueryAPI
	writeAPI api.WriteAPI
	cfg      config.InfluxDBConfig

	connected bool
	mu        sync.RWMutex

	// onError is called when async write errors occur.
	onError func(err error)
}

// Connect establishes a connection to the InfluxDB server and verifies it
// with a ping.
func Connect(cfg config.InfluxDBConfig) (*InfluxSource, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	s := &InfluxSource{
		client:    client,
		queryAPI:  client.QueryAPI(cfg.Org),
		writeAPI:  client.WriteAPI(cfg.Org, cfg.Bucket),
		cfg:       cfg,
		connected: true,
	}

	go s.handleWriteErrors(s.writeAPI.Errors())

	return s, nil
}

// handleWriteErrors processes async write errors from the WriteAPI.
func (s *InfluxSource) handleWriteErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		s.mu.RLock()
		callback := s.onError
		s.mu.RUnlock()

		if callback != nil {
			callback(err)
		}
	}
}

// SetOnError sets a callback for asynchronous write failures.
func (s *InfluxSource) SetOnError(callback func(err error)) {
	s.mu.Lock()
	s.onError = callback
	s.mu.Unlock()
}

// Close flushes pending writes and shuts the connection down.
func (s *InfluxSource) Close() error {
	if s.client == nil {
		return nil
	}

	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()

	s.writeAPI.Flush()
	s.client.Close()
	return nil
}

// HealthCheck verifies the InfluxDB connection with an active ping.
func (s *InfluxSource) HealthCheck(ctx context.Context) error {
	if !s.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	healthy, err := s.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return errors.New("influxdb health check failed: server not healthy")
	}
	return nil
}

// IsConnected returns the last known connection state.
func (s *InfluxSource) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Record writes one datapoint sample. Non-numeric values are skipped;
// InfluxDB history only carries numeric series.
func (s *InfluxSource) Record(id string, val any, ts time.Time) {
	if !s.IsConnected() {
		return
	}

	f, ok := toFloat(val)
	if !ok {
		return
	}

	point := write.NewPoint(
		s.cfg.Measurement,
		map[string]string{"id": id},
		map[string]any{"value": f},
		ts,
	)
	s.writeAPI.WritePoint(point)
}

// Query returns recorded samples for one datapoint via Flux.
func (s *InfluxSource) Query(ctx context.Context, req Request) ([]Point, error) {
	if !s.IsConnected() {
		return nil, ErrNotConnected
	}

	result, err := s.queryAPI.Query(ctx, s.buildFlux(req))
	if err != nil {
		return nil, fmt.Errorf("history query for %q: %w", req.Target, err)
	}

	var points []Point
	for result.Next() {
		record := result.Record()
		if record.Value() == nil {
			continue
		}
		points = append(points, Point{
			Val: record.Value(),
			TS:  record.Time().UnixMilli(),
		})
		if req.Count > 0 && len(points) >= req.Count {
			break
		}
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("history query for %q: %w", req.Target, err)
	}
	return points, nil
}

// Targets lists recorded datapoint ids, optionally narrowed by a glob
// pattern.
func (s *InfluxSource) Targets(ctx context.Context, pattern string) ([]string, error) {
	if !s.IsConnected() {
		return nil, ErrNotConnected
	}

	flux := fmt.Sprintf(`import "influxdata/influxdb/schema"
schema.tagValues(bucket: %q, tag: "id", predicate: (r) => r._measurement == %q)`,
		s.cfg.Bucket, s.cfg.Measurement)

	result, err := s.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("listing history targets: %w", err)
	}

	var targets []string
	for result.Next() {
		id, ok := result.Record().Value().(string)
		if !ok {
			continue
		}
		if pattern == "" || store.MatchGlob(pattern, id) {
			targets = append(targets, id)
		}
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("listing history targets: %w", err)
	}
	return targets, nil
}

// buildFlux assembles the Flux script for a query request.
func (s *InfluxSource) buildFlux(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "from(bucket: %q)\n", s.cfg.Bucket)
	fmt.Fprintf(&b, "  |> range(start: %s, stop: %s)\n",
		req.From.UTC().Format(time.RFC3339), req.To.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "  |> filter(fn: (r) => r._measurement == %q and r.id == %q and r._field == \"value\")\n",
		s.cfg.Measurement, req.Target)

	if req.Aggregate != "" && req.Aggregate != "none" {
		step := req.Step
		if step <= 0 {
			step = deriveStep(req)
		}
		fmt.Fprintf(&b, "  |> aggregateWindow(every: %s, fn: %s, createEmpty: false)\n",
			step.String(), fluxAggregate(req.Aggregate))
	}
	if req.Count > 0 {
		fmt.Fprintf(&b, "  |> limit(n: %d)\n", req.Count)
	}
	return b.String()
}

// deriveStep sizes aggregation windows when no explicit step was given.
func deriveStep(req Request) time.Duration {
	count := req.Count
	if count <= 0 {
		count = 500
	}
	step := req.To.Sub(req.From) / time.Duration(count)
	if step < time.Second {
		step = time.Second
	}
	return step
}

// fluxAggregate maps request aggregate names onto Flux functions.
func fluxAggregate(name string) string {
	switch name {
	case "min", "max", "mean", "median", "sum", "count", "first", "last":
		return name
	case "average", "avg":
		return "mean"
	case "total":
		return "sum"
	default:
		return "mean"
	}
}

// toFloat converts a state value to a float64 field value.
func toFloat(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
