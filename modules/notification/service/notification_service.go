package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"go-meeting-core/core/errors"
	"go-meeting-core/core/logger"
	"go-meeting-core/core/params"
	bookingService "go-meeting-core/modules/booking/service"
	"go-meeting-core/modules/notification/entity"
	"go-meeting-core/modules/notification/repository"
)

// NotificationService fans a message out over its channels and owns the
// in-app feed. It backs the workflow engine's notification steps.
type NotificationService struct {
	feed    repository.NotificationRepositoryInterface
	senders map[string]ChannelSender
}

func NewNotificationService(feed repository.NotificationRepositoryInterface) *NotificationService {
	return &NotificationService{
		feed:    feed,
		senders: make(map[string]ChannelSender),
	}
}

func (s *NotificationService) RegisterSender(sender ChannelSender) {
	s.senders[sender.Channel()] = sender
}

// Send delivers to every recipient on every requested channel and reports
// one outcome per channel. A failed channel is recorded, not returned as an
// error; only zero registered channels fails the call.
func (s *NotificationService) Send(ctx context.Context, subject, body string, recipients []string, channels []string) ([]bookingService.DeliveryOutcome, error) {
	if len(channels) == 0 {
		channels = []string{ChannelInApp}
	}

	outcomes := make([]bookingService.DeliveryOutcome, 0, len(channels))
	matched := 0
	for _, channel := range channels {
		sender, ok := s.senders[channel]
		if !ok {
			outcomes = append(outcomes, bookingService.DeliveryOutcome{
				Channel: channel,
				Status:  "failed",
				Detail:  "no sender registered",
			})
			continue
		}
		matched++

		outcome := bookingService.DeliveryOutcome{Channel: channel, Status: "sent"}
		for _, recipient := range recipients {
			status, err := sender.Deliver(ctx, recipient, subject, body)
			if err != nil {
				outcome.Status = "failed"
				outcome.Detail = err.Error()
				logger.Warn("NotificationService:Send", "channel", channel, "recipient", recipient, "error", err)
				continue
			}
			outcome.Status = status
		}
		outcomes = append(outcomes, outcome)
	}

	if matched == 0 {
		return outcomes, fmt.Errorf("no sender registered for channels %v", channels)
	}
	return outcomes, nil
}

// ===================== Feed =====================

func (s *NotificationService) ListMyNotifications(ctx context.Context, userID uuid.UUID, qp params.QueryParams) (*entity.PaginatedNotifications, *errors.AppError) {
	qp.Normalize()
	page, err := s.feed.ListByUser(ctx, userID, qp)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to list notifications", err)
	}
	return page, nil
}

func (s *NotificationService) MarkAsRead(ctx context.Context, userID uuid.UUID, ids []string) *errors.AppError {
	if err := s.feed.MarkAsRead(ctx, userID, ids); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "Failed to mark notifications read", err)
	}
	return nil
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) *errors.AppError {
	if err := s.feed.MarkAllAsRead(ctx, userID); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "Failed to mark notifications read", err)
	}
	return nil
}

func (s *NotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int, *errors.AppError) {
	count, err := s.feed.CountUnread(ctx, userID)
	if err != nil {
		return 0, errors.NewAppError(errors.ErrInternalServer, "Failed to count unread notifications", err)
	}
	return count, nil
}
