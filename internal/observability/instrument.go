package observability

import (
	"context"
	"time"

	"applyforge/internal/ai"
)

type instrumentedClient struct {
	ai.Client
	metrics *Metrics
}

// InstrumentClient wraps client so every Invoke is recorded on metrics.
// A nil metrics returns client unchanged.
func InstrumentClient(client ai.Client, metrics *Metrics) ai.Client {
	if metrics == nil {
		return client
	}
	return &instrumentedClient{Client: client, metrics: metrics}
}

func (c *instrumentedClient) Invoke(ctx context.Context, req ai.Request) (*ai.Response, error) {
	start := time.Now()
	resp, err := c.Client.Invoke(ctx, req)

	var usage *ai.TokenUsage
	if resp != nil {
		usage = resp.Usage
	}
	c.metrics.RecordAIOperation(ctx, req.Operation, time.Since(start), usage, err)
	return resp, err
}
