package entity

import (
	"time"

	"github.com/google/uuid"

	coreEntity "go-meeting-core/core/entity"
)

// Notification is one in-app feed entry for a user.
type Notification struct {
	coreEntity.BaseEntity
	UserID  uuid.UUID        `db:"user_id" json:"user_id"`
	Title   string           `db:"title" json:"title"`
	Message string           `db:"message" json:"message"`
	Type    string           `db:"type" json:"type"`
	Data    coreEntity.JSONB `db:"data" json:"data"`
	IsRead  bool             `db:"is_read" json:"is_read"`
}

func (Notification) TableName() string { return "notifications" }

type PaginatedNotifications = coreEntity.Pagination[Notification]

// OutboxStatus tracks an outbound message through its channel transport.
type OutboxStatus string

const (
	OutboxPending OutboxStatus = "pending"
	OutboxSent    OutboxStatus = "sent"
	OutboxFailed  OutboxStatus = "failed"
)

// OutboxMessage is one email/sms payload waiting for (or already handed to)
// its transport. A relay process drains pending rows.
type OutboxMessage struct {
	coreEntity.BaseEntity
	Channel   string       `db:"channel" json:"channel"`
	Recipient string       `db:"recipient" json:"recipient"`
	Subject   string       `db:"subject" json:"subject"`
	Body      string       `db:"body" json:"body"`
	Status    OutboxStatus `db:"status" json:"status"`
	SentAt    *time.Time   `db:"sent_at" json:"sent_at,omitempty"`
}

func (OutboxMessage) TableName() string { return "notification_outbox" }
