package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maintenancehub/escalation-engine/internal/domain"
)

// MockNotificationRepository is a hand-written, in-memory implementation of
// NotificationRepository used in unit tests. No mock-generation library needed.
type MockNotificationRepository struct {
	mu            sync.RWMutex
	notifications map[string]*domain.Notification

	// Optional error overrides, set in tests to simulate failure paths.
	CreateErr error
}

func NewMockNotificationRepository() *MockNotificationRepository {
	return &MockNotificationRepository{notifications: make(map[string]*domain.Notification)}
}

func (m *MockNotificationRepository) CreateIfAbsent(_ context.Context, n *domain.Notification) (bool, error) {
	if m.CreateErr != nil {
		return false, m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notifications[n.ID]; ok {
		return false, nil
	}
	clone := *n
	m.notifications[n.ID] = &clone
	return true, nil
}

func (m *MockNotificationRepository) GetByID(_ context.Context, id string) (*domain.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.notifications[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *n
	return &clone, nil
}

func (m *MockNotificationRepository) ListByUser(_ context.Context, userID string, f domain.InboxFilter) ([]*domain.Notification, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []*domain.Notification
	for _, n := range m.notifications {
		if n.UserID != userID || (f.UnreadOnly && n.Read) {
			continue
		}
		clone := *n
		all = append(all, &clone)
	}
	sort.Slice(all, func(a, b int) bool { return all[a].CreatedAt.After(all[b].CreatedAt) })

	total := len(all)
	start := (f.Page - 1) * f.Limit
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (m *MockNotificationRepository) MarkRead(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return domain.ErrNotFound
	}
	n.Read = true
	return nil
}

func (m *MockNotificationRepository) MarkAllRead(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, n := range m.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			count++
		}
	}
	return count, nil
}

// Count returns how many notifications are stored.
func (m *MockNotificationRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.notifications)
}

// MockPreferenceRepository is an in-memory PreferenceRepository.
type MockPreferenceRepository struct {
	mu    sync.RWMutex
	prefs map[string]*domain.NotificationPreference

	GetErr error
}

func NewMockPreferenceRepository() *MockPreferenceRepository {
	return &MockPreferenceRepository{prefs: make(map[string]*domain.NotificationPreference)}
}

func prefKey(userID string, t domain.NotificationType) string {
	return userID + "/" + string(t)
}

func (m *MockPreferenceRepository) Get(_ context.Context, userID string, t domain.NotificationType) (*domain.NotificationPreference, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.prefs[prefKey(userID, t)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (m *MockPreferenceRepository) ListByUser(_ context.Context, userID string) ([]*domain.NotificationPreference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.NotificationPreference
	for _, p := range m.prefs {
		if p.UserID == userID {
			clone := *p
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(a, b int) bool { return result[a].NotificationType < result[b].NotificationType })
	return result, nil
}

func (m *MockPreferenceRepository) Upsert(_ context.Context, p *domain.NotificationPreference) (*domain.NotificationPreference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := prefKey(p.UserID, p.NotificationType)
	clone := *p
	if existing, ok := m.prefs[key]; ok {
		clone.ID = existing.ID
		clone.CreatedAt = existing.CreatedAt
	} else if clone.ID == "" {
		clone.ID = uuid.New().String()
	}
	m.prefs[key] = &clone
	out := clone
	return &out, nil
}

func (m *MockPreferenceRepository) Delete(_ context.Context, userID string, t domain.NotificationType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := prefKey(userID, t)
	if _, ok := m.prefs[key]; !ok {
		return domain.ErrNotFound
	}
	delete(m.prefs, key)
	return nil
}

// MockSubscriptionRepository is an in-memory SubscriptionRepository.
type MockSubscriptionRepository struct {
	mu   sync.RWMutex
	subs map[string]*domain.PushSubscription

	ListErr error
}

func NewMockSubscriptionRepository() *MockSubscriptionRepository {
	return &MockSubscriptionRepository{subs: make(map[string]*domain.PushSubscription)}
}

func (m *MockSubscriptionRepository) Upsert(_ context.Context, s *domain.PushSubscription) (*domain.PushSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.subs {
		if existing.Endpoint == s.Endpoint {
			existing.UserID = s.UserID
			existing.P256dhKey = s.P256dhKey
			existing.AuthKey = s.AuthKey
			existing.UserAgent = s.UserAgent
			existing.Active = true
			clone := *existing
			return &clone, nil
		}
	}
	clone := *s
	if clone.ID == "" {
		clone.ID = uuid.New().String()
	}
	clone.Active = true
	m.subs[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (m *MockSubscriptionRepository) GetByID(_ context.Context, id string) (*domain.PushSubscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.subs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *s
	return &clone, nil
}

func (m *MockSubscriptionRepository) ListByUser(_ context.Context, userID string, activeOnly bool) ([]*domain.PushSubscription, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.PushSubscription
	for _, s := range m.subs {
		if s.UserID != userID || (activeOnly && !s.Active) {
			continue
		}
		clone := *s
		result = append(result, &clone)
	}
	sort.Slice(result, func(a, b int) bool { return result[a].Endpoint < result[b].Endpoint })
	return result, nil
}

func (m *MockSubscriptionRepository) Deactivate(_ context.Context, id string) error {
	return m.update(id, func(s *domain.PushSubscription) { s.Active = false })
}

func (m *MockSubscriptionRepository) Touch(_ context.Context, id string, at time.Time) error {
	return m.update(id, func(s *domain.PushSubscription) { s.LastUsed = &at })
}

func (m *MockSubscriptionRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.subs, id)
	return nil
}

func (m *MockSubscriptionRepository) update(id string, fn func(*domain.PushSubscription)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return domain.ErrNotFound
	}
	fn(s)
	return nil
}
