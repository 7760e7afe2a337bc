package scheduler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/maintenancehub/escalation-engine/internal/domain"
	"github.com/maintenancehub/escalation-engine/internal/repository"
	"github.com/maintenancehub/escalation-engine/internal/scheduler"
	"github.com/maintenancehub/escalation-engine/internal/service"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisTickLock_Acquire(t *testing.T) {
	mr, client := newRedis(t)
	lock := scheduler.NewRedisTickLock(client, "instance-a")
	ctx := context.Background()

	won, err := lock.Acquire(ctx, "tick:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = scheduler.NewRedisTickLock(client, "instance-b").Acquire(ctx, "tick:1", time.Minute)
	require.NoError(t, err)
	assert.False(t, won)

	owner, err := mr.Get("tick:1")
	require.NoError(t, err)
	assert.Equal(t, "instance-a", owner)

	mr.FastForward(2 * time.Minute)
	won, err = lock.Acquire(ctx, "tick:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, won)
}

func TestTrigger_OneEnqueuePerTickAcrossInstances(t *testing.T) {
	_, client := newRedis(t)
	jobs := repository.NewMockJobRepository()
	svc := service.NewJobService(jobs, domain.RealClock{}, zap.NewNop())

	var triggers []*scheduler.Trigger
	for _, name := range []string{"a", "b", "c"} {
		triggers = append(triggers, scheduler.NewTrigger(svc, scheduler.NewRedisTickLock(client, name), domain.RealClock{}, zap.NewNop()))
	}

	tick := time.Date(2026, 3, 2, 10, 15, 0, 0, time.UTC)
	var wg sync.WaitGroup
	for i, tr := range triggers {
		wg.Add(1)
		go func(i int, tr *scheduler.Trigger) {
			defer wg.Done()
			// Out-of-phase timers within the same 15 minute bucket.
			at := tick.Add(time.Duration(i) * 3 * time.Minute)
			_, err := tr.Fire(context.Background(), domain.JobEscalationCheck, at, 15*time.Minute)
			assert.NoError(t, err)
		}(i, tr)
	}
	wg.Wait()
	assert.Len(t, jobs.Jobs(domain.JobEscalationCheck), 1)

	fired, err := triggers[0].Fire(context.Background(), domain.JobEscalationCheck, tick.Add(15*time.Minute), 15*time.Minute)
	require.NoError(t, err)
	assert.True(t, fired)
	assert.Len(t, jobs.Jobs(domain.JobEscalationCheck), 2)

	// Job types do not share ticks.
	fired, err = triggers[1].Fire(context.Background(), domain.JobPMGeneration, tick, time.Hour)
	require.NoError(t, err)
	assert.True(t, fired)
}

func TestTrigger_FailsOpenWithoutRedis(t *testing.T) {
	mr, client := newRedis(t)
	mr.Close()

	jobs := repository.NewMockJobRepository()
	svc := service.NewJobService(jobs, domain.RealClock{}, zap.NewNop())
	tr := scheduler.NewTrigger(svc, scheduler.NewRedisTickLock(client, "a"), domain.RealClock{}, zap.NewNop())

	fired, err := tr.Fire(context.Background(), domain.JobEscalationCheck, time.Now(), 15*time.Minute)
	require.NoError(t, err)
	assert.True(t, fired)
	assert.Len(t, jobs.Jobs(domain.JobEscalationCheck), 1)
}

func TestTrigger_Schedule(t *testing.T) {
	jobs := repository.NewMockJobRepository()
	svc := service.NewJobService(jobs, domain.RealClock{}, zap.NewNop())
	tr := scheduler.NewTrigger(svc, nil, domain.RealClock{}, zap.NewNop())

	assert.Error(t, tr.Schedule("every fifteen minutes", domain.JobEscalationCheck))
	assert.NoError(t, tr.Schedule("", domain.JobPMGeneration))
	require.NoError(t, tr.Schedule("@every 1s", domain.JobEscalationCheck))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tr.Start(ctx)
	require.Eventually(t, func() bool {
		return len(jobs.Jobs(domain.JobEscalationCheck)) >= 1
	}, 3*time.Second, 20*time.Millisecond)
	tr.Stop()
	assert.Empty(t, jobs.Jobs(domain.JobPMGeneration))
}
