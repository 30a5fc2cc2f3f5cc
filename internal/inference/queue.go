package inference

import (
	"context"

	"go.uber.org/zap"
)

type job struct {
	ctx context.Context
	req Request
	out chan Response
}

// Start launches the queue worker. It is a no-op when already started or closed.
// The worker stops when ctx is done or Close is called.
func (c *Client) Start(ctx context.Context) {
	c.qmu.Lock()
	if c.running || c.closed {
		c.qmu.Unlock()
		return
	}
	c.running = true
	c.qmu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for j := range c.queue {
			j.out <- c.Do(j.ctx, j.req)
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.done:
		}
	}()

	c.logger.Debug("inference queue worker started", zap.Int("queue_capacity", cap(c.queue)))
}

// Submit enqueues a request and returns a channel that receives exactly one
// response. A full or stopped queue yields the fallback immediately.
func (c *Client) Submit(ctx context.Context, prompt, category string) <-chan Response {
	req := Request{Prompt: prompt, Category: category}
	out := make(chan Response, 1)

	c.qmu.RLock()
	defer c.qmu.RUnlock()

	if !c.running || c.closed {
		out <- c.fallback(req, ErrQueueUnavailable, 0)
		return out
	}

	select {
	case c.queue <- job{ctx: ctx, req: req, out: out}:
	default:
		c.logger.Warn("inference queue overflow", zap.Int("queue_capacity", cap(c.queue)))
		out <- c.fallback(req, ErrQueueFull, 0)
	}
	return out
}

// InferAsync submits the request and waits for its answer or ctx.
func (c *Client) InferAsync(ctx context.Context, prompt, category string) string {
	select {
	case resp := <-c.Submit(ctx, prompt, category):
		return resp.Content
	case <-ctx.Done():
		return Fallback(category)
	}
}

// Close stops accepting requests and waits for queued ones to be answered.
func (c *Client) Close() {
	c.stopOnce.Do(func() {
		c.qmu.Lock()
		c.closed = true
		close(c.queue)
		c.qmu.Unlock()
		close(c.done)
	})
	c.wg.Wait()
}
