package gemini

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/spigell/talentmatch/internal/ai"
	"github.com/spigell/talentmatch/internal/utils"
)

const (
	baseBackoff   = 2 * time.Second
	maxQuotaDelay = 30 * time.Second
)

var (
	// wait is replaced in tests.
	wait = utils.WaitFor

	retryAfterPattern = regexp.MustCompile(`(?i)retry (?:after|in) ([0-9]+(?:\.[0-9]+)?)\s*s`)
)

type caller struct {
	maxRetries int
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// do runs call until it succeeds, fails permanently or the attempts run out.
// maxRetries counts total attempts.
func (c caller) do(ctx context.Context, op string, call func(context.Context) error) error {
	attempts := c.maxRetries
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ai.Wait(ctx, c.limiter); err != nil {
			return errors.Wrapf(err, "%s: rate limiter", op)
		}

		lastErr = call(ctx)
		if lastErr == nil {
			return nil
		}

		delay, retry := retryDelay(lastErr, attempt)
		if !retry || attempt == attempts {
			break
		}

		c.logger.Warn("gemini call failed, retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(lastErr),
		)

		if err := wait(ctx, delay); err != nil {
			return errors.Wrapf(err, "%s: waiting for retry", op)
		}
	}

	return errors.Wrap(lastErr, op)
}

// retryDelay decides whether err is worth another attempt and how long to
// back off first.
func retryDelay(err error, attempt int) (time.Duration, bool) {
	apiErr, ok := asAPIError(err)
	if !ok {
		return 0, false
	}

	backoff := baseBackoff * time.Duration(1<<(attempt-1))

	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		delay, found := quotaDelay(apiErr)
		if !found {
			return backoff, true
		}
		if delay > maxQuotaDelay {
			return 0, false
		}
		return delay, true
	case apiErr.Code >= http.StatusInternalServerError:
		return backoff, true
	default:
		return 0, false
	}
}

func asAPIError(err error) (genai.APIError, bool) {
	var value genai.APIError
	if errors.As(err, &value) {
		return value, true
	}
	var ptr *genai.APIError
	if errors.As(err, &ptr) && ptr != nil {
		return *ptr, true
	}
	return genai.APIError{}, false
}

// quotaDelay reads the server-suggested delay from RetryInfo details or
// from the message text.
func quotaDelay(apiErr genai.APIError) (time.Duration, bool) {
	for _, detail := range apiErr.Details {
		typ, _ := detail["@type"].(string)
		if !strings.HasSuffix(typ, "RetryInfo") {
			continue
		}
		if raw, ok := detail["retryDelay"].(string); ok {
			if d, err := time.ParseDuration(raw); err == nil {
				return d, true
			}
		}
	}

	match := retryAfterPattern.FindStringSubmatch(apiErr.Message)
	if match == nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}
