package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sethvargo/go-retry"

	id "dsrengine/pkg/domain"
	"dsrengine/pkg/platform/circuit"
	"dsrengine/pkg/platform/sentinel"
)

// maxResponseBytes caps how much of a provider response is read.
const maxResponseBytes = 64 << 10

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPVerifier calls GET {baseURL}/users/{id}/verification on the identity
// service. Calls are guarded by a circuit breaker; an open circuit fails fast
// with sentinel.ErrUnavailable.
type HTTPVerifier struct {
	baseURL   string
	client    HTTPDoer
	breaker   *circuit.Breaker
	logger    *slog.Logger
	retries   uint64
	baseDelay time.Duration
}

type HTTPOption func(*HTTPVerifier)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(client HTTPDoer) HTTPOption {
	return func(v *HTTPVerifier) {
		v.client = client
	}
}

func WithBreaker(b *circuit.Breaker) HTTPOption {
	return func(v *HTTPVerifier) {
		v.breaker = b
	}
}

func WithLogger(logger *slog.Logger) HTTPOption {
	return func(v *HTTPVerifier) {
		v.logger = logger
	}
}

// WithRetries retries unavailable responses n times with exponential backoff
// starting at base. Zero disables retries.
func WithRetries(n uint64, base time.Duration) HTTPOption {
	return func(v *HTTPVerifier) {
		v.retries = n
		v.baseDelay = base
	}
}

func NewHTTPVerifier(baseURL string, timeout time.Duration, opts ...HTTPOption) *HTTPVerifier {
	v := &HTTPVerifier{
		baseURL:   baseURL,
		client:    &http.Client{Timeout: timeout},
		breaker:   circuit.New("identity_service"),
		logger:    slog.Default(),
		retries:   2,
		baseDelay: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.baseDelay <= 0 {
		v.baseDelay = time.Millisecond
	}
	return v
}

type verificationResponse struct {
	UserID     string    `json:"user_id"`
	Verified   bool      `json:"verified"`
	VerifiedAt time.Time `json:"verified_at"`
}

func (v *HTTPVerifier) Verify(ctx context.Context, userID id.UserID) (Identity, error) {
	var ident Identity
	backoff := retry.WithMaxRetries(v.retries, retry.NewExponential(v.baseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		ident, err = v.verifyOnce(ctx, userID)
		if errors.Is(err, sentinel.ErrUnavailable) && v.breaker.State() != circuit.StateOpen {
			return retry.RetryableError(err)
		}
		return err
	})
	return ident, err
}

func (v *HTTPVerifier) verifyOnce(ctx context.Context, userID id.UserID) (Identity, error) {
	if !v.breaker.Allow() {
		return Identity{}, fmt.Errorf("identity service circuit open: %w", sentinel.ErrUnavailable)
	}

	ident, err := v.call(ctx, userID)
	if err != nil && errors.Is(err, sentinel.ErrUnavailable) {
		if v.breaker.RecordFailure() {
			v.logger.ErrorContext(ctx, "circuit breaker opened",
				"circuit", v.breaker.Name(),
				"error", err,
			)
		}
		return Identity{}, err
	}
	if v.breaker.RecordSuccess() {
		v.logger.InfoContext(ctx, "circuit breaker closed", "circuit", v.breaker.Name())
	}
	return ident, err
}

func (v *HTTPVerifier) call(ctx context.Context, userID id.UserID) (Identity, error) {
	endpoint := fmt.Sprintf("%s/users/%s/verification", v.baseURL, url.PathEscape(userID.String()))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return Identity{}, fmt.Errorf("build identity request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("call identity service: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Identity{}, sentinel.ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return Identity{}, fmt.Errorf("identity service returned %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	case resp.StatusCode != http.StatusOK:
		return Identity{}, fmt.Errorf("identity service returned unexpected status %d", resp.StatusCode)
	}

	var body verificationResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return Identity{}, fmt.Errorf("decode identity response: %w", err)
	}
	return Identity{
		UserID:     userID,
		Verified:   body.Verified,
		VerifiedAt: body.VerifiedAt,
	}, nil
}

// Health reports whether the breaker is currently admitting calls.
func (v *HTTPVerifier) Health(context.Context) error {
	if v.breaker.State() == circuit.StateOpen {
		return fmt.Errorf("identity service circuit open: %w", sentinel.ErrUnavailable)
	}
	return nil
}
