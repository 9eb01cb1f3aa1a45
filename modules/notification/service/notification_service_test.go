package service

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"go-meeting-core/core/params"
	"go-meeting-core/modules/notification/entity"
	"go-meeting-core/modules/notification/repository"
)

func newServiceWithSenders() (*NotificationService, *repository.MemoryNotificationRepository, *repository.MemoryOutboxRepository) {
	feed := repository.NewMemoryNotificationRepository()
	outbox := repository.NewMemoryOutboxRepository()

	svc := NewNotificationService(feed)
	svc.RegisterSender(NewInAppSender(feed))
	svc.RegisterSender(NewOutboxSender(ChannelEmail, outbox))
	svc.RegisterSender(NewOutboxSender(ChannelSMS, outbox))
	return svc, feed, outbox
}

func TestSend_FansOutPerChannel(t *testing.T) {
	svc, feed, outbox := newServiceWithSenders()
	userID := uuid.New()

	outcomes, err := svc.Send(context.Background(), "Booking confirmed", "See you Monday",
		[]string{userID.String()}, []string{ChannelInApp})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Channel != ChannelInApp || outcomes[0].Status != "sent" {
		t.Fatalf("unexpected outcomes: %+v", outcomes)
	}

	count, _ := feed.CountUnread(context.Background(), userID)
	if count != 1 {
		t.Fatalf("feed unread = %d, want 1", count)
	}

	outcomes, err = svc.Send(context.Background(), "Reminder", "Starts in 15 minutes",
		[]string{"host@example.com"}, []string{ChannelEmail, ChannelSMS})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(outcomes))
	}
	for _, o := range outcomes {
		if o.Status != "queued" {
			t.Fatalf("channel %s status = %s, want queued", o.Channel, o.Status)
		}
	}

	queued := outbox.All()
	if len(queued) != 2 {
		t.Fatalf("outbox rows = %d, want 2", len(queued))
	}
	for _, m := range queued {
		if m.Status != entity.OutboxPending || m.Recipient != "host@example.com" {
			t.Fatalf("unexpected outbox row: %+v", m)
		}
	}
}

func TestSend_UnknownChannelRecordedNotFatal(t *testing.T) {
	svc, _, _ := newServiceWithSenders()
	userID := uuid.New()

	outcomes, err := svc.Send(context.Background(), "s", "b",
		[]string{userID.String()}, []string{ChannelInApp, "carrier_pigeon"})
	if err != nil {
		t.Fatalf("one live channel should keep Send succeeding: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(outcomes))
	}
	var failed bool
	for _, o := range outcomes {
		if o.Channel == "carrier_pigeon" && o.Status == "failed" {
			failed = true
		}
	}
	if !failed {
		t.Fatalf("unknown channel should report failed: %+v", outcomes)
	}

	if _, err := svc.Send(context.Background(), "s", "b", []string{userID.String()}, []string{"carrier_pigeon"}); err == nil {
		t.Fatalf("all-unknown channels should fail the call")
	}
}

func TestSend_BadInAppRecipientFailsChannel(t *testing.T) {
	svc, _, _ := newServiceWithSenders()

	outcomes, err := svc.Send(context.Background(), "s", "b",
		[]string{"not-a-uuid"}, []string{ChannelInApp})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if outcomes[0].Status != "failed" || outcomes[0].Detail == "" {
		t.Fatalf("bad recipient should fail the channel with detail: %+v", outcomes[0])
	}
}

func TestFeed_MarkReadAndCount(t *testing.T) {
	svc, feed, _ := newServiceWithSenders()
	userID := uuid.New()
	other := uuid.New()

	var firstID string
	for i := 0; i < 3; i++ {
		n := &entity.Notification{UserID: userID, Title: "t", Message: "m", Type: "booking"}
		if _, err := feed.Create(context.Background(), n); err != nil {
			t.Fatalf("seed: %v", err)
		}
		if i == 0 {
			firstID = n.ID.String()
		}
	}
	if _, err := feed.Create(context.Background(), &entity.Notification{UserID: other, Title: "t", Message: "m"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if appErr := svc.MarkAsRead(context.Background(), userID, []string{firstID}); appErr != nil {
		t.Fatalf("MarkAsRead: %v", appErr)
	}
	count, appErr := svc.CountUnread(context.Background(), userID)
	if appErr != nil || count != 2 {
		t.Fatalf("unread = %d (%v), want 2", count, appErr)
	}

	// Another user's ids are ignored.
	if appErr := svc.MarkAllAsRead(context.Background(), userID); appErr != nil {
		t.Fatalf("MarkAllAsRead: %v", appErr)
	}
	count, _ = svc.CountUnread(context.Background(), userID)
	if count != 0 {
		t.Fatalf("unread after mark-all = %d, want 0", count)
	}
	otherCount, _ := svc.CountUnread(context.Background(), other)
	if otherCount != 1 {
		t.Fatalf("other user's unread = %d, want 1", otherCount)
	}

	page, appErr := svc.ListMyNotifications(context.Background(), userID, params.QueryParams{PageNumber: 1, PageSize: 2})
	if appErr != nil {
		t.Fatalf("ListMyNotifications: %v", appErr)
	}
	if page.TotalItems != 3 || len(page.Items) != 2 {
		t.Fatalf("page = %d items of %d total, want 2 of 3", len(page.Items), page.TotalItems)
	}
}
