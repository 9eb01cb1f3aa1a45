package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"go-meeting-core/core/entity"
	notifEntity "go-meeting-core/modules/notification/entity"
	"go-meeting-core/modules/notification/repository"
)

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
	ChannelInApp = "in_app"
)

// ChannelSender delivers one message to one recipient over a single channel.
type ChannelSender interface {
	Channel() string
	// Deliver returns the delivery status (sent | queued) or an error.
	Deliver(ctx context.Context, recipient, subject, body string) (string, error)
}

// OutboxSender queues email/sms payloads as outbox rows; a relay owns the
// actual transport.
type OutboxSender struct {
	channel string
	outbox  repository.OutboxRepositoryInterface
}

func NewOutboxSender(channel string, outbox repository.OutboxRepositoryInterface) *OutboxSender {
	return &OutboxSender{channel: channel, outbox: outbox}
}

func (s *OutboxSender) Channel() string { return s.channel }

func (s *OutboxSender) Deliver(ctx context.Context, recipient, subject, body string) (string, error) {
	msg := &notifEntity.OutboxMessage{
		Channel:   s.channel,
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
		Status:    notifEntity.OutboxPending,
	}
	if _, err := s.outbox.Create(ctx, msg); err != nil {
		return "", err
	}
	return "queued", nil
}

// InAppSender lands the message in the recipient's notification feed.
// Recipients must be user ids.
type InAppSender struct {
	feed repository.NotificationRepositoryInterface
}

func NewInAppSender(feed repository.NotificationRepositoryInterface) *InAppSender {
	return &InAppSender{feed: feed}
}

func (s *InAppSender) Channel() string { return ChannelInApp }

func (s *InAppSender) Deliver(ctx context.Context, recipient, subject, body string) (string, error) {
	userID, err := uuid.Parse(recipient)
	if err != nil {
		return "", fmt.Errorf("in_app recipient %q is not a user id", recipient)
	}
	notification := &notifEntity.Notification{
		UserID:  userID,
		Title:   subject,
		Message: body,
		Type:    "booking",
		Data:    entity.JSONB{},
	}
	if _, err := s.feed.Create(ctx, notification); err != nil {
		return "", err
	}
	return "sent", nil
}
