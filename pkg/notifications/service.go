package notifications

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/gurulk/platform/pkg/async"
	"github.com/gurulk/platform/pkg/auth"
	"github.com/gurulk/platform/pkg/observability"
)

// fanoutConcurrency bounds concurrent inserts during role and broadcast
// fanout
const fanoutConcurrency = 10

// recentDefault is the recent-list size when the caller does not say
const recentDefault = 5

// Directory resolves recipients through the auth service. The caller's
// bearer token is forwarded so the auth service applies its own access
// control.
type Directory interface {
	UserEmail(ctx context.Context, bearerToken string, userID int64) (string, error)
	UserIDsByRole(ctx context.Context, bearerToken string, role auth.Role) ([]int64, error)
	AllUserIDs(ctx context.Context, bearerToken string) ([]int64, error)
}

// Service implements the notification domain rules.
type Service struct {
	store     *Store
	directory Directory
	mailer    Mailer
	pool      *async.WorkerPool
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewService creates the notification service core. mailer and pool may
// be nil, which disables email delivery. metrics may be nil.
func NewService(store *Store, directory Directory, mailer Mailer, pool *async.WorkerPool,
	logger *observability.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		store:     store,
		directory: directory,
		mailer:    mailer,
		pool:      pool,
		logger:    logger,
		metrics:   metrics,
	}
}

// Create stores a notification for one user and queues the email.
func (s *Service) Create(ctx context.Context, bearerToken string, req NotificationRequest) (*Notification, error) {
	if err := validateRequest(req.UserID, req.Type, req.Message); err != nil {
		return nil, err
	}

	notification, err := s.store.Create(ctx, &Notification{
		UserID:      req.UserID,
		Type:        req.Type,
		Message:     req.Message,
		ReferenceID: req.ReferenceID,
	})
	if err != nil {
		return nil, err
	}

	s.countCreated(req.Type)
	s.queueEmail(bearerToken, req.UserID, req.Type, req.Message)
	return notification, nil
}

// SendToRole fans a notification out to every user holding the role.
func (s *Service) SendToRole(ctx context.Context, bearerToken string, req RoleRequest) (*FanoutResult, error) {
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		return nil, err
	}
	if req.Type == "" || req.Message == "" {
		return nil, fmt.Errorf("type and message are required")
	}

	userIDs, err := s.directory.UserIDsByRole(ctx, bearerToken, role)
	if err != nil {
		return nil, fmt.Errorf("resolving users for role %s: %w", role, err)
	}

	return s.fanout(ctx, bearerToken, userIDs, string(role), req.Type, req.Message, req.ReferenceID)
}

// Broadcast fans a notification out to every registered user.
func (s *Service) Broadcast(ctx context.Context, bearerToken string, req BroadcastRequest) (*FanoutResult, error) {
	if req.Type == "" || req.Message == "" {
		return nil, fmt.Errorf("type and message are required")
	}

	userIDs, err := s.directory.AllUserIDs(ctx, bearerToken)
	if err != nil {
		return nil, fmt.Errorf("resolving broadcast recipients: %w", err)
	}

	return s.fanout(ctx, bearerToken, userIDs, "", req.Type, req.Message, req.ReferenceID)
}

func (s *Service) fanout(ctx context.Context, bearerToken string, userIDs []int64,
	role, notificationType, message string, referenceID int64) (*FanoutResult, error) {
	if s.metrics != nil {
		s.metrics.NotificationFanoutSize.Observe(float64(len(userIDs)))
	}
	if len(userIDs) == 0 {
		s.logger.Warn("notification fanout found no recipients")
		return &FanoutResult{}, nil
	}

	var created atomic.Int64
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(fanoutConcurrency)

	for _, userID := range userIDs {
		userID := userID
		group.Go(func() error {
			_, err := s.store.Create(groupCtx, &Notification{
				UserID:      userID,
				Role:        role,
				Type:        notificationType,
				Message:     message,
				ReferenceID: referenceID,
			})
			if err != nil {
				return err
			}
			created.Add(1)
			s.countCreated(notificationType)
			s.queueEmail(bearerToken, userID, notificationType, message)
			return nil
		})
	}

	err := group.Wait()
	result := &FanoutResult{Recipients: len(userIDs), Created: int(created.Load())}
	if err != nil {
		return result, fmt.Errorf("fanout to %d users completed partially: %w", len(userIDs), err)
	}

	s.logger.WithField("recipients", result.Recipients).Info("notification fanout complete")
	return result, nil
}

// queueEmail hands the email lookup and send to the worker pool. Email
// is best-effort; a full pool or a delivery failure never fails the
// notification itself.
func (s *Service) queueEmail(bearerToken string, userID int64, notificationType, message string) {
	if s.mailer == nil || s.pool == nil {
		return
	}

	err := s.pool.Submit(func(ctx context.Context) error {
		email, err := s.directory.UserEmail(ctx, bearerToken, userID)
		if err != nil {
			return fmt.Errorf("resolving email for user %d: %w", userID, err)
		}
		return s.mailer.SendNotificationEmail(email, notificationType, message)
	})
	if err != nil {
		s.logger.WithError(err).WithField("userId", userID).Warn("email task rejected")
	}
}

// ForUser lists the actor's notifications.
func (s *Service) ForUser(ctx context.Context, actor *auth.Principal) ([]*Notification, error) {
	return s.store.ByUser(ctx, actor.UserID)
}

// ForUserOrRole lists notifications addressed to the actor or their
// role.
func (s *Service) ForUserOrRole(ctx context.Context, actor *auth.Principal) ([]*Notification, error) {
	return s.store.ByUserOrRole(ctx, actor.UserID, string(actor.Role))
}

// ForUserPaginated lists one page of the actor's notifications.
func (s *Service) ForUserPaginated(ctx context.Context, actor *auth.Principal, page, size int) (*Page, error) {
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	if page < 0 {
		page = 0
	}

	items, total, err := s.store.ByUserPaginated(ctx, actor.UserID, size, page*size)
	if err != nil {
		return nil, err
	}
	return &Page{Items: items, Page: page, Size: size, Total: total}, nil
}

// Unread lists the actor's unread notifications.
func (s *Service) Unread(ctx context.Context, actor *auth.Principal) ([]*Notification, error) {
	return s.store.Unread(ctx, actor.UserID)
}

// UnreadCount counts the actor's unread notifications.
func (s *Service) UnreadCount(ctx context.Context, actor *auth.Principal) (int, error) {
	return s.store.UnreadCount(ctx, actor.UserID)
}

// Recent lists the actor's newest notifications.
func (s *Service) Recent(ctx context.Context, actor *auth.Principal, count int) ([]*Notification, error) {
	if count <= 0 {
		count = recentDefault
	}
	return s.store.Recent(ctx, actor.UserID, count)
}

// MarkRead marks one of the actor's notifications as read and returns
// it.
func (s *Service) MarkRead(ctx context.Context, actor *auth.Principal, id int64) (*Notification, error) {
	notification, err := s.store.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Is(notification.UserID) {
		return nil, ErrNotOwner
	}

	if err := s.store.MarkRead(ctx, id); err != nil {
		return nil, err
	}
	notification.IsRead = true
	return notification, nil
}

// MarkAllRead marks all of the actor's notifications read and returns
// how many changed.
func (s *Service) MarkAllRead(ctx context.Context, actor *auth.Principal) (int64, error) {
	return s.store.MarkAllRead(ctx, actor.UserID)
}

// Delete removes one of the actor's notifications.
func (s *Service) Delete(ctx context.Context, actor *auth.Principal, id int64) error {
	notification, err := s.store.ByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.Is(notification.UserID) {
		return ErrNotOwner
	}
	return s.store.Delete(ctx, id)
}

func (s *Service) countCreated(notificationType string) {
	if s.metrics != nil {
		s.metrics.NotificationsCreatedTotal.WithLabelValues(notificationType).Inc()
	}
}

func validateRequest(userID int64, notificationType, message string) error {
	if userID == 0 {
		return fmt.Errorf("userId is required")
	}
	if notificationType == "" {
		return fmt.Errorf("type is required")
	}
	if message == "" {
		return fmt.Errorf("message is required")
	}
	return nil
}
