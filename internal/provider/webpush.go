package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/sony/gobreaker/v2"

	"github.com/maintenancehub/escalation-engine/internal/domain"
)

// WebPushConfig holds the VAPID identity and delivery options.
type WebPushConfig struct {
	PublicKey  string
	PrivateKey string
	Subject    string
	TTL        time.Duration
	Timeout    time.Duration
}

// WebPushSender delivers through the browser push services using VAPID.
// One circuit breaker is kept per push service host so an outage at one
// vendor does not stall delivery to the others.
type WebPushSender struct {
	cfg        WebPushConfig
	httpClient *http.Client

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[*http.Response]
}

func NewWebPushSender(cfg WebPushConfig, httpClient *http.Client) *WebPushSender {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &WebPushSender{
		cfg:        cfg,
		httpClient: httpClient,
		breakers:   make(map[string]*gobreaker.CircuitBreaker[*http.Response]),
	}
}

func (s *WebPushSender) breaker(endpoint string) *gobreaker.CircuitBreaker[*http.Response] {
	host := endpoint
	if u, err := url.Parse(endpoint); err == nil {
		host = u.Host
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cb, ok := s.breakers[host]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "webpush:" + host,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		// A dead subscription is the subscriber's problem, not the service's.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrSubscriptionGone)
		},
	})
	s.breakers[host] = cb
	return cb
}

func (s *WebPushSender) Push(ctx context.Context, sub *domain.PushSubscription, n *domain.Notification) error {
	payload, err := json.Marshal(NewPushMessage(n))
	if err != nil {
		return fmt.Errorf("marshal push message: %w", err)
	}

	resp, err := s.breaker(sub.Endpoint).Execute(func() (*http.Response, error) {
		r, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys:     webpush.Keys{P256dh: sub.P256dhKey, Auth: sub.AuthKey},
		}, &webpush.Options{
			HTTPClient:      s.httpClient,
			Subscriber:      s.cfg.Subject,
			VAPIDPublicKey:  s.cfg.PublicKey,
			VAPIDPrivateKey: s.cfg.PrivateKey,
			TTL:             int(s.cfg.TTL.Seconds()),
			Urgency:         urgency(n.Priority),
			Topic:           topic(n.ID),
		})
		if err != nil {
			return nil, fmt.Errorf("send push: %w", err)
		}
		return r, classify(r)
	})
	if resp != nil {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		resp.Body.Close()
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("push service unavailable: %w", err)
	}
	return err
}

// classify maps a push service response onto delivery outcomes.
func classify(r *http.Response) error {
	switch {
	case r.StatusCode >= 200 && r.StatusCode < 300:
		return nil
	case r.StatusCode == http.StatusNotFound, r.StatusCode == http.StatusGone:
		return fmt.Errorf("%w: push service returned %d", domain.ErrSubscriptionGone, r.StatusCode)
	case r.StatusCode == http.StatusBadRequest, r.StatusCode == http.StatusForbidden:
		// Malformed keys or a VAPID mismatch never recover for this subscription.
		return fmt.Errorf("%w: push service returned %d", domain.ErrSubscriptionGone, r.StatusCode)
	default:
		return fmt.Errorf("push service returned %d", r.StatusCode)
	}
}

func urgency(p domain.Priority) webpush.Urgency {
	switch p {
	case domain.PriorityCritical, domain.PriorityHigh:
		return webpush.UrgencyHigh
	case domain.PriorityLow:
		return webpush.UrgencyLow
	default:
		return webpush.UrgencyNormal
	}
}

// topic collapses redelivered copies of a notification on the push service.
// Topics are limited to 32 URL-safe characters.
func topic(id string) string {
	t := make([]byte, 0, 32)
	for i := 0; i < len(id) && len(t) < 32; i++ {
		if id[i] != '-' {
			t = append(t, id[i])
		}
	}
	return string(t)
}

var _ Pusher = (*WebPushSender)(nil)
