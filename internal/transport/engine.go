// Package transport owns the request-attempt loop shared by every call
// shape the SDK exposes. One engine, one loop: simple request/response and
// streaming initiation both go through Engine.Do, so a change to retry
// semantics takes effect everywhere at once.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/azfoundry/foundry-go/internal/sanitize"
	"github.com/azfoundry/foundry-go/sdk/apierr"
)

// maxErrorBodyBytes bounds how much of an error response body is read.
const maxErrorBodyBytes = 64 * 1024

// AttemptFunc issues one HTTP attempt. It is invoked once per loop
// iteration and is responsible for re-resolving the credential itself;
// the engine never caches an authorization value across attempts, since a
// long cumulative backoff can outlive a token.
type AttemptFunc func(ctx context.Context, attempt int) (*http.Response, error)

// Engine drives the retry loop for a fixed policy.
type Engine struct {
	Policy RetryPolicy
	Logger zerolog.Logger
}

// Do runs makeAttempt up to Policy.MaxRetries+1 times and returns the
// first success, or a terminal error built through the error model.
//
// Classification per attempt:
//   - errors already shaped as *apierr.Error (auth, configuration)
//     surface immediately; the loop never retries them in isolation
//   - context cancellation surfaces immediately
//   - other transport errors get the same retry-or-surface decision as a
//     retriable status
//   - 2xx responses return as-is; for streaming calls the open body now
//     belongs to the caller and the engine's job ends
//   - 429/502/503/504 retry until attempts run out, then convert to a
//     terminal error; every other status converts right away
//
// The number of attempts made is returned alongside the response.
func (e *Engine) Do(ctx context.Context, makeAttempt AttemptFunc) (*http.Response, int, error) {
	for attempt := 0; ; attempt++ {
		resp, err := makeAttempt(ctx, attempt)

		if err != nil {
			var ae *apierr.Error
			if errors.As(err, &ae) {
				return nil, attempt + 1, err
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, attempt + 1, apierr.HTTP(0, "request aborted", err)
			}
			if attempt == e.Policy.MaxRetries {
				return nil, attempt + 1, apierr.HTTP(0, sanitize.Clean(err.Error()), err)
			}
			delay := backoffDelay(e.Policy, attempt, nil)
			e.Logger.Debug().
				Int("attempt", attempt).
				Dur("delay", delay).
				Str("cause", sanitize.Clean(err.Error())).
				Msg("transport failure, retrying")
			if err := e.sleep(ctx, delay); err != nil {
				return nil, attempt + 1, err
			}
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, attempt + 1, nil
		}

		if !retriable(resp.StatusCode) || attempt == e.Policy.MaxRetries {
			return nil, attempt + 1, responseError(resp)
		}

		delay := backoffDelay(e.Policy, attempt, resp.Header)
		e.Logger.Debug().
			Int("attempt", attempt).
			Int("status", resp.StatusCode).
			Dur("delay", delay).
			Msg("retriable status, backing off")

		drain(resp)
		if err := e.sleep(ctx, delay); err != nil {
			return nil, attempt + 1, err
		}
	}
}

// sleep suspends for the backoff delay, waking early on cancellation.
func (e *Engine) sleep(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return apierr.HTTP(0, "request aborted during backoff", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// drain discards and closes a response body so the connection can be
// reused for the next attempt.
func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyBytes))
	resp.Body.Close()
}

// apiErrorBody is the structured error envelope the service returns.
type apiErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// responseError converts a terminal non-2xx response into an *apierr.Error,
// consuming and closing the body. Structured bodies become API errors with
// their machine code; everything else becomes an HTTP error carrying the
// sanitized, truncated body text.
func responseError(resp *http.Response) error {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Code != "" {
		msg := parsed.Error.Message
		if msg == "" {
			msg = string(body)
		}
		return apierr.API(resp.StatusCode, parsed.Error.Code, sanitize.Clean(msg))
	}

	msg := string(body)
	if msg == "" {
		msg = resp.Status
	}
	return apierr.HTTP(resp.StatusCode, sanitize.Clean(msg), nil)
}
