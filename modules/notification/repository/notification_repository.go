package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"go-meeting-core/core/database"
	"go-meeting-core/core/logger"
	"go-meeting-core/core/params"
	"go-meeting-core/modules/notification/entity"
)

type NotificationRepositoryInterface interface {
	Create(ctx context.Context, notification *entity.Notification) (*entity.Notification, error)
	ListByUser(ctx context.Context, userID uuid.UUID, qp params.QueryParams) (*entity.PaginatedNotifications, error)
	MarkAsRead(ctx context.Context, userID uuid.UUID, ids []string) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

type OutboxRepositoryInterface interface {
	Create(ctx context.Context, msg *entity.OutboxMessage) (*entity.OutboxMessage, error)
	ListPending(ctx context.Context, limit int) ([]entity.OutboxMessage, error)
	Update(ctx context.Context, msg *entity.OutboxMessage) error
}

type NotificationRepository struct {
	DB database.IDatabase
}

func NewNotificationRepository(db database.IDatabase) *NotificationRepository {
	return &NotificationRepository{DB: db}
}

func (r *NotificationRepository) Create(ctx context.Context, notification *entity.Notification) (*entity.Notification, error) {
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	query := `
		INSERT INTO notifications (id, user_id, title, message, type, data, is_read)
		VALUES (:id, :user_id, :title, :message, :type, :data, :is_read)
	`
	if _, err := r.DB.NamedExecContext(ctx, query, notification); err != nil {
		logger.Error("NotificationRepository:Create", err)
		return nil, err
	}
	return notification, nil
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, qp params.QueryParams) (*entity.PaginatedNotifications, error) {
	var total int
	if err := r.DB.GetContext(ctx, &total, `SELECT COUNT(*) FROM notifications WHERE user_id = $1`, userID); err != nil {
		logger.Error("NotificationRepository:ListByUser:Count", err)
		return nil, err
	}

	offset := (qp.PageNumber - 1) * qp.PageSize
	query := `
		SELECT * FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	var items []entity.Notification
	if err := r.DB.SelectContext(ctx, &items, query, userID, qp.PageSize, offset); err != nil {
		logger.Error("NotificationRepository:ListByUser", err)
		return nil, err
	}

	return &entity.PaginatedNotifications{
		Items:      items,
		TotalItems: total,
		PageNumber: qp.PageNumber,
		PageSize:   qp.PageSize,
	}, nil
}

func (r *NotificationRepository) MarkAsRead(ctx context.Context, userID uuid.UUID, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`UPDATE notifications SET is_read = true WHERE user_id = ? AND id IN (?)`, userID, ids)
	if err != nil {
		return err
	}
	query = r.DB.SQLx().Rebind(query)
	if err := r.DB.ExecContext(ctx, query, args...); err != nil {
		logger.Error("NotificationRepository:MarkAsRead", err)
		return err
	}
	return nil
}

func (r *NotificationRepository) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	if err := r.DB.ExecContext(ctx, `UPDATE notifications SET is_read = true WHERE user_id = $1`, userID); err != nil {
		logger.Error("NotificationRepository:MarkAllAsRead", err)
		return err
	}
	return nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = false`
	if err := r.DB.GetContext(ctx, &count, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		logger.Error("NotificationRepository:CountUnread", err)
		return 0, err
	}
	return count, nil
}

type OutboxRepository struct {
	DB database.IDatabase
}

func NewOutboxRepository(db database.IDatabase) *OutboxRepository {
	return &OutboxRepository{DB: db}
}

func (r *OutboxRepository) Create(ctx context.Context, msg *entity.OutboxMessage) (*entity.OutboxMessage, error) {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	query := `
		INSERT INTO notification_outbox (id, channel, recipient, subject, body, status, sent_at)
		VALUES (:id, :channel, :recipient, :subject, :body, :status, :sent_at)
	`
	if _, err := r.DB.NamedExecContext(ctx, query, msg); err != nil {
		logger.Error("OutboxRepository:Create", err)
		return nil, err
	}
	return msg, nil
}

func (r *OutboxRepository) ListPending(ctx context.Context, limit int) ([]entity.OutboxMessage, error) {
	query := `
		SELECT * FROM notification_outbox
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1
	`
	var items []entity.OutboxMessage
	if err := r.DB.SelectContext(ctx, &items, query, limit); err != nil {
		logger.Error("OutboxRepository:ListPending", err)
		return nil, err
	}
	return items, nil
}

func (r *OutboxRepository) Update(ctx context.Context, msg *entity.OutboxMessage) error {
	query := `
		UPDATE notification_outbox
		SET status = :status, sent_at = :sent_at, updated_at = NOW()
		WHERE id = :id
	`
	if _, err := r.DB.NamedExecContext(ctx, query, msg); err != nil {
		logger.Error("OutboxRepository:Update", err)
		return err
	}
	return nil
}
