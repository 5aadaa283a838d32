package health_monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/NordCoder/Healthwatch/internal/domain/health"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const maxHealthBody = 1 << 20

// Checker checks every configured service once.
type Checker interface {
	CheckAll(ctx context.Context) []health.CheckResult
}

type HealthChecker struct {
	client    *http.Client
	services  []health.ServiceDefinition
	timeout   time.Duration
	userAgent string
	log       *zap.Logger
	now       func() time.Time
}

func NewHealthChecker(client *http.Client, services []health.ServiceDefinition, timeout time.Duration, userAgent string, log *zap.Logger) *HealthChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &HealthChecker{
		client:    client,
		services:  services,
		timeout:   timeout,
		userAgent: userAgent,
		log:       log.With(zap.String("component", "health_checker")),
		now:       time.Now,
	}
}

type healthBody struct {
	Status string          `json:"status"`
	Checks json.RawMessage `json:"checks"`
	Error  string          `json:"error"`
}

// CheckService never returns an error: every failure is folded into an unhealthy result.
func (c *HealthChecker) CheckService(ctx context.Context, def health.ServiceDefinition) health.CheckResult {
	ctx, span := otel.Tracer("health.checker").Start(ctx, "health.check")
	defer span.End()
	span.SetAttributes(attribute.String("service.name", def.Name))

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := c.now()
	res := health.CheckResult{Service: def.Name, Status: health.StatusUnhealthy, Timestamp: start.UTC()}
	defer func() {
		span.SetAttributes(attribute.String("health.status", string(res.Status)))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, def.Endpoint(), nil)
	if err != nil {
		res.ResponseTimeMs = c.now().Sub(start).Milliseconds()
		res.Error = fmt.Sprintf("build request: %v", err)
		return res
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		res.ResponseTimeMs = c.now().Sub(start).Milliseconds()
		res.Error = c.describeTransportErr(ctx, err)
		span.RecordError(err)
		return res
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxHealthBody))
	res.ResponseTimeMs = c.now().Sub(start).Milliseconds()
	if readErr != nil {
		res.Error = c.describeTransportErr(ctx, readErr)
		return res
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		res.Error = fmt.Sprintf("unexpected status code %d", resp.StatusCode)
		var hb healthBody
		if json.Unmarshal(body, &hb) == nil {
			res.Checks = hb.Checks
			if hb.Error != "" {
				res.Error += ": " + hb.Error
			}
		}
		return res
	}

	var hb healthBody
	if err := json.Unmarshal(body, &hb); err != nil {
		res.Error = fmt.Sprintf("invalid health response: %v", err)
		return res
	}
	res.Checks = hb.Checks

	switch health.Status(hb.Status) {
	case health.StatusHealthy:
		res.Status = health.StatusHealthy
	case health.StatusDegraded:
		res.Status = health.StatusDegraded
		res.Error = hb.Error
	default:
		res.Error = hb.Error
		if res.Error == "" {
			res.Error = fmt.Sprintf("service reported status %q", hb.Status)
		}
	}
	return res
}

func (c *HealthChecker) describeTransportErr(ctx context.Context, err error) string {
	var ne net.Error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Sprintf("health check timed out after %s", c.timeout)
	}
	return err.Error()
}

// CheckAll checks every service concurrently and waits for all of them.
// The result order follows the configuration and its length always matches it.
func (c *HealthChecker) CheckAll(ctx context.Context) []health.CheckResult {
	results := make([]health.CheckResult, len(c.services))

	var wg conc.WaitGroup
	for i, def := range c.services {
		wg.Go(func() {
			var pc panics.Catcher
			pc.Try(func() { results[i] = c.CheckService(ctx, def) })
			if r := pc.Recovered(); r != nil {
				c.log.Error("health check panicked",
					zap.String("service", def.Name), zap.String("panic", r.String()))
				results[i] = health.CheckResult{
					Service:   def.Name,
					Status:    health.StatusUnhealthy,
					Timestamp: c.now().UTC(),
					Error:     fmt.Sprintf("health check failed: %v", r.Value),
				}
			}
		})
	}
	wg.Wait()
	return results
}
