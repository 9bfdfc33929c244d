package llm

import (
	"context"
	"net/http"
	"time"

	"github.com/dainotech/beespace-demo/pkg/resilience"
)

const maxRetries = 3

var retryConfig = resilience.HTTPRetryConfig{
	MaxRetries:  maxRetries,
	BaseDelay:   200 * time.Millisecond,
	MaxDelay:    4 * time.Second,
	ShouldRetry: resilience.DefaultShouldRetry,
}

// doWithRetry sends a model request, retrying rate limits and 5xx answers.
// newRequest is called once per attempt.
func doWithRetry(ctx context.Context, client *http.Client, newRequest func() (*http.Request, error)) (*http.Response, error) {
	return resilience.DoHTTP(ctx, client, retryConfig, func(context.Context) (*http.Request, error) {
		return newRequest()
	})
}
