package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/lox/marinedash/internal/htmlutil"
	"github.com/lox/marinedash/internal/httputil"
	"github.com/lox/marinedash/internal/metrics"
)

const maxBodyBytes = 32 << 20

// fetcher performs GET requests against upstream sources. Retries are only
// attempted for 429/5xx and transport errors, and only when retries > 0.
type fetcher struct {
	client  *http.Client
	retries uint64
	logger  zerolog.Logger
}

func newFetcher(client *http.Client, retries uint64, logger zerolog.Logger) *fetcher {
	if client == nil {
		client = httputil.NewClient(0)
	}
	return &fetcher{client: client, retries: retries, logger: logger}
}

func (f *fetcher) get(ctx context.Context, source, url string) ([]byte, error) {
	start := time.Now()
	status := "error"

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("User-Agent", httputil.UserAgent)
		req.Header.Set("Cache-Control", "no-store")

		resp, err := f.client.Do(req)
		if err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				status = "canceled"
				return backoff.Permanent(ctx.Err())
			}
			if ctx.Err() != nil {
				return backoff.Permanent(fmt.Errorf("%w: %w", ErrUpstream, err))
			}
			return fmt.Errorf("%w: %w", ErrUpstream, err)
		}
		defer resp.Body.Close()

		status = strconv.Itoa(resp.StatusCode)
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			err := fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, htmlutil.Summarize(string(b), 200))
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return err
			}
			return backoff.Permanent(err)
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("%w: read body: %w", ErrUpstream, err))
		}
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), f.retries), ctx)
	notify := func(err error, wait time.Duration) {
		f.logger.Warn().Err(err).Str("source", source).Dur("wait", wait).Msg("retrying upstream")
	}
	err := backoff.RetryNotify(operation, bo, notify)

	metrics.UpstreamCallsTotal.WithLabelValues(source, status).Inc()
	metrics.UpstreamLatency.WithLabelValues(source).Observe(time.Since(start).Seconds())

	if err != nil {
		if !errors.Is(err, ErrUpstream) && !errors.Is(err, context.Canceled) {
			err = fmt.Errorf("%w: %w", ErrUpstream, err)
		}
		return nil, err
	}

	f.logger.Debug().Str("source", source).Int("bytes", len(body)).Dur("took", time.Since(start)).Msg("fetched upstream")
	return body, nil
}
