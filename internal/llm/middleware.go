package llm

import (
	"context"
	"time"

	"github.com/redirect10-prog/siteForge-ai/internal/metrics"

	"go.uber.org/zap"
)

// Middleware decorates a Client with a cross-cutting concern.
type Middleware func(Client) Client

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner Client, mws ...Middleware) Client {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// WithLogging logs every call with its latency. Prompts are not logged,
// only their sizes.
func WithLogging(log *zap.Logger) Middleware {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next Client) Client {
		return &logged{next: next, log: log.With(zap.String("client", next.Name()))}
	}
}

type logged struct {
	next Client
	log  *zap.Logger
}

func (c *logged) Name() string { return c.next.Name() }
func (c *logged) Close() error { return c.next.Close() }
func (c *logged) Complete(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	out, err := c.next.Complete(ctx, req)
	fields := []zap.Field{
		zap.Int("system_bytes", len(req.System)),
		zap.Int("user_bytes", len(req.User)),
		zap.Duration("took", time.Since(start)),
	}
	if err != nil {
		c.log.Warn("llm call failed", append(fields, zap.Error(err))...)
		return "", err
	}
	c.log.Debug("llm call", append(fields, zap.Int("reply_bytes", len(out)))...)
	return out, nil
}

// WithMetrics records call counts and latency.
func WithMetrics() Middleware {
	return func(next Client) Client {
		return &measured{next: next}
	}
}

type measured struct {
	next Client
}

func (c *measured) Name() string { return c.next.Name() }
func (c *measured) Close() error { return c.next.Close() }
func (c *measured) Complete(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	out, err := c.next.Complete(ctx, req)
	metrics.LLMRequestDuration.WithLabelValues(c.next.Name()).Observe(time.Since(start).Seconds())
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.LLMRequestsTotal.WithLabelValues(c.next.Name(), outcome).Inc()
	return out, err
}

// WithTimeout bounds each call.
func WithTimeout(d time.Duration) Middleware {
	return func(next Client) Client {
		if d <= 0 {
			return next
		}
		return &timed{next: next, d: d}
	}
}

type timed struct {
	next Client
	d    time.Duration
}

func (c *timed) Name() string { return c.next.Name() }
func (c *timed) Close() error { return c.next.Close() }
func (c *timed) Complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.d)
	defer cancel()
	return c.next.Complete(ctx, req)
}
