package provider_test

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maintenancehub/escalation-engine/internal/domain"
	"github.com/maintenancehub/escalation-engine/internal/provider"
)

func newSender(t *testing.T, srv *httptest.Server) *provider.WebPushSender {
	t.Helper()
	priv, pub, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)
	return provider.NewWebPushSender(provider.WebPushConfig{
		PublicKey:  pub,
		PrivateKey: priv,
		Subject:    "ops@example.com",
		TTL:        time.Hour,
		Timeout:    time.Second,
	}, srv.Client())
}

func newSubscription(t *testing.T, endpoint string) *domain.PushSubscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)
	return &domain.PushSubscription{
		ID:        "sub-1",
		UserID:    "user-1",
		Endpoint:  endpoint,
		P256dhKey: base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		AuthKey:   base64.RawURLEncoding.EncodeToString(auth),
		Active:    true,
	}
}

var criticalNotification = &domain.Notification{
	ID:       "6f1c1c1e-8a0e-4a43-9d8c-2b5f4e0b7a11",
	UserID:   "user-1",
	Type:     domain.TypeWorkOrderOverdue,
	Title:    "Work order escalated (level 1)",
	Message:  "WO-1001 is overdue",
	Priority: domain.PriorityCritical,
}

func TestWebPushSender_Delivers(t *testing.T) {
	var got *http.Request
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	sender := newSender(t, srv)
	err := sender.Push(context.Background(), newSubscription(t, srv.URL+"/push/abc"), criticalNotification)
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "aes128gcm", got.Header.Get("Content-Encoding"))
	assert.Equal(t, "high", got.Header.Get("Urgency"))
	assert.Equal(t, "3600", got.Header.Get("TTL"))
	assert.Equal(t, "6f1c1c1e8a0e4a439d8c2b5f4e0b7a11", got.Header.Get("Topic"))
	assert.Contains(t, got.Header.Get("Authorization"), "vapid")
}

func TestWebPushSender_GoneSubscription(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusGone} {
		srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))

		err := newSender(t, srv).Push(context.Background(), newSubscription(t, srv.URL), criticalNotification)
		assert.ErrorIs(t, err, domain.ErrSubscriptionGone, "status %d", status)
		srv.Close()
	}
}

func TestWebPushSender_TransientFailure(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := newSender(t, srv).Push(context.Background(), newSubscription(t, srv.URL), criticalNotification)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrSubscriptionGone)
}

func TestWebPushSender_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sender := newSender(t, srv)
	sub := newSubscription(t, srv.URL)
	for i := 0; i < 10; i++ {
		_ = sender.Push(context.Background(), sub, criticalNotification)
	}

	err := sender.Push(context.Background(), sub, criticalNotification)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "push service unavailable")
	assert.Equal(t, int32(6), calls.Load())
}

func TestNewPushMessage(t *testing.T) {
	wo := "wo-1"
	n := *criticalNotification
	n.WorkOrderID = &wo

	msg := provider.NewPushMessage(&n)
	assert.True(t, msg.RequireInteraction)
	assert.Equal(t, "wo_overdue:"+n.ID, msg.Tag)
	assert.Equal(t, n.ID, msg.Data.NotificationID)
	require.NotNil(t, msg.Data.WorkOrderID)
	assert.Equal(t, wo, *msg.Data.WorkOrderID)

	n.Priority = domain.PriorityMedium
	assert.False(t, provider.NewPushMessage(&n).RequireInteraction)
}
