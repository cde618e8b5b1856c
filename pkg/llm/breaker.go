package llm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerClient wraps a Client with a circuit breaker so that a provider
// outage fails fast instead of queueing chat turns behind dead requests.
type BreakerClient struct {
	inner   Client
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerClient wraps inner with a circuit breaker. The breaker opens
// after five consecutive failures and probes again after 30 seconds.
func NewBreakerClient(inner Client, name string) *BreakerClient {
	if name == "" {
		name = "llm"
	}
	settings := gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &BreakerClient{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Chat implements Client.
func (b *BreakerClient) Chat(ctx context.Context, messages []Message) (*Response, error) {
	result, err := b.breaker.Execute(func() (any, error) {
		return b.inner.Chat(ctx, messages)
	})
	if err != nil {
		return nil, wrapBreakerErr(err, "chat completion")
	}
	return result.(*Response), nil
}

// ChatJSON implements Client.
func (b *BreakerClient) ChatJSON(ctx context.Context, messages []Message) (json.RawMessage, error) {
	result, err := b.breaker.Execute(func() (any, error) {
		return b.inner.ChatJSON(ctx, messages)
	})
	if err != nil {
		return nil, wrapBreakerErr(err, "structured completion")
	}
	return result.(json.RawMessage), nil
}

// Close implements Client.
func (b *BreakerClient) Close() error {
	return b.inner.Close()
}

func wrapBreakerErr(err error, op string) error {
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return &ProviderError{Provider: "breaker", Op: op, Err: err}
	}
	return err
}
