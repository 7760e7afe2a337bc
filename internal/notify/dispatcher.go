package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/maintenancehub/escalation-engine/internal/domain"
	"github.com/maintenancehub/escalation-engine/internal/provider"
	"github.com/maintenancehub/escalation-engine/internal/ratelimiter"
	"github.com/maintenancehub/escalation-engine/internal/repository"
)

// notificationNamespace seeds the UUIDv5 notification id derived from a job id.
var notificationNamespace = uuid.MustParse("5d0c6b8e-2f1a-4c2e-9a57-0f3f8a1b6c4d")

// Result labels a delivery outcome.
type Result string

const (
	ResultSent     Result = "sent"
	ResultFailed   Result = "failed"
	ResultSkipped  Result = "skipped"
	ResultDeferred Result = "deferred"
)

// Hooks carries metric callbacks; nil fields are no-ops.
type Hooks struct {
	OnDelivery    func(ch domain.Channel, result Result)
	OnDeactivated func()
}

// Transports are the configured senders. A nil transport disables its
// channel regardless of preferences.
type Transports struct {
	Push       provider.Pusher
	Email      provider.Emailer
	SMS        provider.Texter
	PushFanout int
}

// Dispatcher is the notification_send job handler.
type Dispatcher struct {
	notifications repository.NotificationRepository
	subs          repository.SubscriptionRepository
	jobs          repository.JobRepository
	dir           repository.Directory
	resolver      *Resolver
	transports    Transports
	limiter       *ratelimiter.ChannelLimiters
	clock         domain.Clock
	logger        *zap.Logger
	hooks         Hooks
}

func NewDispatcher(
	notifications repository.NotificationRepository,
	subs repository.SubscriptionRepository,
	jobs repository.JobRepository,
	dir repository.Directory,
	resolver *Resolver,
	transports Transports,
	limiter *ratelimiter.ChannelLimiters,
	clock domain.Clock,
	logger *zap.Logger,
	hooks Hooks,
) *Dispatcher {
	if hooks.OnDelivery == nil {
		hooks.OnDelivery = func(domain.Channel, Result) {}
	}
	if hooks.OnDeactivated == nil {
		hooks.OnDeactivated = func() {}
	}
	if transports.PushFanout < 1 {
		transports.PushFanout = 1
	}
	if limiter == nil {
		limiter = ratelimiter.New(nil)
	}
	return &Dispatcher{
		notifications: notifications,
		subs:          subs,
		jobs:          jobs,
		dir:           dir,
		resolver:      resolver,
		transports:    transports,
		limiter:       limiter,
		clock:         clock,
		logger:        logger,
		hooks:         hooks,
	}
}

// NotificationID is the inbox row id for a job: the intent's own id when it
// carries one, otherwise a stable id derived from the job so a retried job
// finds the row it already wrote.
func NotificationID(job *domain.Job, intent *domain.NotificationIntent) string {
	if intent.NotificationID != nil && *intent.NotificationID != "" {
		return *intent.NotificationID
	}
	return uuid.NewSHA1(notificationNamespace, []byte(job.ID)).String()
}

// Handle persists the inbox row, resolves preferences, and fans out to the
// enabled channels. Channel failures are logged, never returned: once the
// inbox row exists the job has done its durable work.
func (d *Dispatcher) Handle(ctx context.Context, job *domain.Job) error {
	var intent domain.NotificationIntent
	if err := json.Unmarshal(job.Payload, &intent); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if err := intent.Validate(); err != nil {
		return err
	}

	now := d.clock.Now()
	id := NotificationID(job, &intent)
	log := d.logger.With(
		zap.String("notification_id", id),
		zap.String("user_id", intent.UserID),
		zap.String("notification_type", string(intent.Type)),
	)

	n := intent.ToNotification(id, now)
	created, err := d.notifications.CreateIfAbsent(ctx, n)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	if created {
		log.Debug("notification stored")
	}

	decision, err := d.resolver.Resolve(ctx, intent.UserID, intent.Type, intent.Priority, now)
	if err != nil {
		return err
	}

	if decision.DeferUntil != nil {
		return d.deferDelivery(ctx, job, intent, id, *decision.DeferUntil, decision.Channels, now, log)
	}
	if !decision.DeliverNow {
		log.Debug("delivery disabled by preference")
		return nil
	}
	if n.Expired(now) {
		log.Info("notification expired before delivery")
		return nil
	}

	var contact *domain.Contact
	if (decision.Channels.Email && d.transports.Email != nil) || (decision.Channels.SMS && d.transports.SMS != nil) {
		contact, err = d.dir.LookupContact(ctx, intent.UserID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			log.Warn("contact lookup failed", zap.Error(err))
		}
	}

	var g errgroup.Group
	if decision.Channels.Push && d.transports.Push != nil {
		g.Go(func() error {
			d.deliverPush(ctx, n, now, log)
			return nil
		})
	}
	if decision.Channels.Email && d.transports.Email != nil {
		g.Go(func() error {
			d.deliverEmail(ctx, n, contact, log)
			return nil
		})
	}
	if decision.Channels.SMS && d.transports.SMS != nil {
		g.Go(func() error {
			d.deliverSMS(ctx, n, contact, log)
			return nil
		})
	}
	_ = g.Wait()
	return nil
}

func (d *Dispatcher) deferDelivery(
	ctx context.Context,
	job *domain.Job,
	intent domain.NotificationIntent,
	id string,
	until time.Time,
	channels Channels,
	now time.Time,
	log *zap.Logger,
) error {
	intent.NotificationID = &id
	next, err := repository.NewJob(domain.JobNotificationSend, intent, until, now)
	if err != nil {
		return err
	}
	if job.MaxAttempts > 0 {
		next.MaxAttempts = job.MaxAttempts
	}
	if err := d.jobs.Enqueue(ctx, next); err != nil {
		return fmt.Errorf("enqueue deferred delivery: %w", err)
	}
	for _, ch := range channels.Enabled() {
		d.hooks.OnDelivery(ch, ResultDeferred)
	}
	log.Info("delivery deferred for quiet hours",
		zap.Time("deliver_at", until), zap.String("job_id", next.ID))
	return nil
}

// deliverPush sends to every active subscription independently. A permanent
// failure deactivates only the subscription that produced it.
func (d *Dispatcher) deliverPush(ctx context.Context, n *domain.Notification, now time.Time, log *zap.Logger) {
	subs, err := d.subs.ListByUser(ctx, n.UserID, true)
	if err != nil {
		log.Warn("list push subscriptions", zap.Error(err))
		d.hooks.OnDelivery(domain.ChannelPush, ResultFailed)
		return
	}
	if len(subs) == 0 {
		d.hooks.OnDelivery(domain.ChannelPush, ResultSkipped)
		return
	}

	var g errgroup.Group
	g.SetLimit(d.transports.PushFanout)
	for _, sub := range subs {
		g.Go(func() error {
			sublog := log.With(zap.String("subscription_id", sub.ID))
			if err := d.limiter.Wait(ctx, domain.ChannelPush); err != nil {
				d.hooks.OnDelivery(domain.ChannelPush, ResultFailed)
				return nil
			}

			err := d.transports.Push.Push(ctx, sub, n)
			switch {
			case err == nil:
				d.hooks.OnDelivery(domain.ChannelPush, ResultSent)
				if err := d.subs.Touch(ctx, sub.ID, now); err != nil {
					sublog.Warn("touch push subscription", zap.Error(err))
				}
			case errors.Is(err, domain.ErrSubscriptionGone):
				d.hooks.OnDelivery(domain.ChannelPush, ResultFailed)
				if err := d.subs.Deactivate(ctx, sub.ID); err != nil {
					sublog.Error("deactivate push subscription", zap.Error(err))
					return nil
				}
				d.hooks.OnDeactivated()
				sublog.Info("push subscription deactivated", zap.Error(err))
			default:
				d.hooks.OnDelivery(domain.ChannelPush, ResultFailed)
				sublog.Warn("push delivery failed", zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (d *Dispatcher) deliverEmail(ctx context.Context, n *domain.Notification, contact *domain.Contact, log *zap.Logger) {
	if contact == nil || contact.Email == "" {
		d.hooks.OnDelivery(domain.ChannelEmail, ResultSkipped)
		return
	}
	if err := d.limiter.Wait(ctx, domain.ChannelEmail); err != nil {
		d.hooks.OnDelivery(domain.ChannelEmail, ResultFailed)
		return
	}
	if err := d.transports.Email.SendEmail(ctx, contact.Email, n.Title, n.Message); err != nil {
		d.hooks.OnDelivery(domain.ChannelEmail, ResultFailed)
		log.Warn("email delivery failed", zap.Error(err))
		return
	}
	d.hooks.OnDelivery(domain.ChannelEmail, ResultSent)
}

func (d *Dispatcher) deliverSMS(ctx context.Context, n *domain.Notification, contact *domain.Contact, log *zap.Logger) {
	if contact == nil || contact.Phone == nil || *contact.Phone == "" {
		d.hooks.OnDelivery(domain.ChannelSMS, ResultSkipped)
		return
	}
	if err := d.limiter.Wait(ctx, domain.ChannelSMS); err != nil {
		d.hooks.OnDelivery(domain.ChannelSMS, ResultFailed)
		return
	}
	if err := d.transports.SMS.SendSMS(ctx, *contact.Phone, n.Title+": "+n.Message); err != nil {
		d.hooks.OnDelivery(domain.ChannelSMS, ResultFailed)
		log.Warn("sms delivery failed", zap.Error(err))
		return
	}
	d.hooks.OnDelivery(domain.ChannelSMS, ResultSent)
}
