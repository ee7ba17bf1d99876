package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/grc-approval/internal/application/port"
	"github.com/garyjia/grc-approval/internal/domain/entity"
	"github.com/garyjia/grc-approval/internal/domain/errs"
)

// NotificationService stores notices for users. It is the engine's notification sink.
type NotificationService interface {
	port.NotificationSink

	ListForUser(ctx context.Context, userID, status string, limit int) ([]*entity.Notification, error)
	MarkRead(ctx context.Context, id string) error
	Archive(ctx context.Context, id string) error
}

type notificationServiceImpl struct {
	notificationRepo port.NotificationRepository
	logger           Logger
	now              func() time.Time
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(notificationRepo port.NotificationRepository, logger Logger) NotificationService {
	return &notificationServiceImpl{
		notificationRepo: notificationRepo,
		logger:           logger,
		now:              time.Now,
	}
}

// Notify stores one notification per recipient. Every recipient is attempted; failures are joined.
func (s *notificationServiceImpl) Notify(ctx context.Context, notice port.Notice) error {
	kind := notice.Type
	if kind == "" {
		kind = entity.NotificationTypeInfo
	}

	var failed []error
	for _, userID := range notice.Recipients {
		n := &entity.Notification{
			ID:                uuid.NewString(),
			UserID:            userID,
			Title:             notice.Title,
			Message:           notice.Message,
			Type:              kind,
			Status:            entity.NotificationStatusUnread,
			RelatedEntityType: notice.RelatedEntityType,
			RelatedEntityID:   notice.RelatedEntityID,
			CreatedAt:         s.now(),
		}
		if err := s.notificationRepo.Create(ctx, n); err != nil {
			s.logger.Error("Failed to store notification", "user_id", userID, "title", notice.Title, "error", err)
			failed = append(failed, fmt.Errorf("notify %s: %w", userID, err))
		}
	}

	if len(failed) > 0 {
		return errors.Join(failed...)
	}

	s.logger.Info("Notification stored", "title", notice.Title, "recipients", len(notice.Recipients))
	return nil
}

func (s *notificationServiceImpl) ListForUser(ctx context.Context, userID, status string, limit int) ([]*entity.Notification, error) {
	if userID == "" {
		return nil, errs.Invalid("user_id", "must not be empty")
	}
	switch status {
	case "", entity.NotificationStatusUnread, entity.NotificationStatusRead, entity.NotificationStatusArchived:
	default:
		return nil, errs.Invalid("status", fmt.Sprintf("unknown notification status %q", status))
	}

	list, err := s.notificationRepo.ListByUser(ctx, userID, status, limit)
	if err != nil {
		return nil, errs.Store("list notifications", err)
	}
	return list, nil
}

func (s *notificationServiceImpl) MarkRead(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, entity.NotificationStatusRead)
}

func (s *notificationServiceImpl) Archive(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, entity.NotificationStatusArchived)
}

func (s *notificationServiceImpl) setStatus(ctx context.Context, id, status string) error {
	err := s.notificationRepo.UpdateStatus(ctx, id, status)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return err
		}
		s.logger.Error("Failed to update notification", "id", id, "status", status, "error", err)
		return errs.Store("update notification", err)
	}
	return nil
}
