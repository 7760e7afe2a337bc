package repository

import (
	"context"
	"sync"
	"time"

	"github.com/maintenancehub/escalation-engine/internal/domain"
)

// MockPMRepository is an in-memory PMRepository holding pre-seeded due work
// orders.
type MockPMRepository struct {
	mu   sync.Mutex
	Due  []*domain.WorkOrder
	Jobs *MockJobRepository

	GenerateErr error
}

func (m *MockPMRepository) GenerateDue(ctx context.Context, now time.Time, _ *string, notify NotifyFunc) ([]*domain.WorkOrder, error) {
	if m.GenerateErr != nil {
		return nil, m.GenerateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	created := m.Due
	m.Due = nil
	for _, wo := range created {
		intent := notify(wo)
		if intent == nil {
			continue
		}
		job, err := NewJob(domain.JobNotificationSend, intent, now, now)
		if err != nil {
			return nil, err
		}
		if err := m.Jobs.Enqueue(ctx, job); err != nil {
			return nil, err
		}
	}
	return created, nil
}
