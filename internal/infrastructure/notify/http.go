package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"vision-relay/internal/domain/port"
)

// HTTPNotifier делает GET <baseURL>?predictionId=<job_id>.
// Вызовы идут через circuit breaker.
type HTTPNotifier struct {
	baseURL *url.URL
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// Options: настройки уведомителя
type Options struct {
	BaseURL     string
	Timeout     time.Duration
	InsecureTLS bool // шлюз за балансировщиком с самоподписанным сертификатом
}

// NewHTTPNotifier создаёт уведомитель
func NewHTTPNotifier(opts Options) (*HTTPNotifier, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse notify url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("notify url %q must be absolute", opts.BaseURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "notify",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &HTTPNotifier{
		baseURL: base,
		client:  &http.Client{Timeout: timeout, Transport: transport},
		breaker: breaker,
	}, nil
}

// Notify сообщает шлюзу, что итог задания готов
func (n *HTTPNotifier) Notify(ctx context.Context, jobID string) error {
	_, err := n.breaker.Execute(func() (interface{}, error) {
		return nil, n.call(ctx, jobID)
	})
	return err
}

func (n *HTTPNotifier) call(ctx context.Context, jobID string) error {
	u := *n.baseURL
	q := u.Query()
	q.Set("predictionId", jobID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notify: unexpected status %d", resp.StatusCode)
	}
	return nil
}

var _ port.Notifier = (*HTTPNotifier)(nil)
