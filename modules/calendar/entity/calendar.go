package entity

import (
	"time"

	"github.com/google/uuid"

	coreEntity "go-meeting-core/core/entity"
)

type ProviderType string

const (
	ProviderGoogle  ProviderType = "google"
	ProviderOutlook ProviderType = "outlook"
	ProviderCalDAV  ProviderType = "caldav"
)

// ProviderDescriptor declares a provider's capabilities and request budget.
// The adapter's rate limiter is built from these numbers.
type ProviderDescriptor struct {
	Type                ProviderType `json:"type"`
	Name                string       `json:"name"`
	SupportsIncremental bool         `json:"supports_incremental"`
	RequestsPerSecond   float64      `json:"requests_per_second"`
	Burst               int          `json:"burst"`
}

type ConnectionStatus string

const (
	ConnectionConnected    ConnectionStatus = "connected"
	ConnectionDisconnected ConnectionStatus = "disconnected"
	ConnectionError        ConnectionStatus = "error"
)

type SyncDirection string

const (
	SyncPull SyncDirection = "pull"
	SyncPush SyncDirection = "push"
	SyncBoth SyncDirection = "both"
)

type ConflictPolicy string

const (
	RemoteWins ConflictPolicy = "remote_wins"
	LocalWins  ConflictPolicy = "local_wins"
)

type SyncSettings struct {
	Direction        SyncDirection  `json:"direction"`
	FrequencyMinutes int            `json:"frequency_minutes"`
	ConflictPolicy   ConflictPolicy `json:"conflict_policy"`
	Enabled          bool           `json:"enabled"`
	MaxRetries       int            `json:"max_retries"`
}

// CalendarConnection links a user to one external provider. Access and
// refresh tokens are stored encrypted (core/crypto TokenCipher); Cursor is
// the provider's incremental sync token.
type CalendarConnection struct {
	coreEntity.BaseEntity
	UserID         uuid.UUID                        `db:"user_id" json:"user_id"`
	Provider       ProviderType                     `db:"provider" json:"provider"`
	CalendarEmail  string                           `db:"calendar_email" json:"calendar_email"`
	AccessToken    string                           `db:"access_token" json:"-"`
	RefreshToken   string                           `db:"refresh_token" json:"-"`
	TokenExpiresAt time.Time                        `db:"token_expires_at" json:"token_expires_at"`
	Status         ConnectionStatus                 `db:"status" json:"status"`
	Settings       coreEntity.JSONDoc[SyncSettings] `db:"settings" json:"settings"`
	Cursor         string                           `db:"cursor" json:"-"`
	NextSyncAt     *time.Time                       `db:"next_sync_at" json:"next_sync_at,omitempty"`
	LastSyncAt     *time.Time                       `db:"last_sync_at" json:"last_sync_at,omitempty"`
}

func (CalendarConnection) TableName() string { return "calendar_connections" }

type EventSyncStatus string

const (
	EventSynced      EventSyncStatus = "synced"
	EventSyncPending EventSyncStatus = "sync_pending"
	EventSyncFailed  EventSyncStatus = "sync_failed"
)

type ShowAs string

const (
	ShowBusy        ShowAs = "busy"
	ShowTentative   ShowAs = "tentative"
	ShowOutOfOffice ShowAs = "out_of_office"
	ShowFree        ShowAs = "free"
)

// CalendarEvent is the local record of an event on a connection, either
// mirrored outward from a booking or pulled inward from the provider.
type CalendarEvent struct {
	coreEntity.BaseEntity
	ConnectionID   uuid.UUID                    `db:"connection_id" json:"connection_id"`
	UserID         uuid.UUID                    `db:"user_id" json:"user_id"`
	BookingID      *uuid.UUID                   `db:"booking_id" json:"booking_id,omitempty"`
	ExternalID     string                       `db:"external_id" json:"external_id,omitempty"`
	Title          string                       `db:"title" json:"title"`
	StartTime      time.Time                    `db:"start_time" json:"start_time"`
	EndTime        time.Time                    `db:"end_time" json:"end_time"`
	Attendees      coreEntity.JSONDoc[[]string] `db:"attendees" json:"attendees"`
	RecurrenceRule string                       `db:"recurrence_rule" json:"recurrence_rule,omitempty"`
	ShowAs         ShowAs                       `db:"show_as" json:"show_as"`
	SyncStatus     EventSyncStatus              `db:"sync_status" json:"sync_status"`
	LastError      string                       `db:"last_error" json:"last_error,omitempty"`
}

func (CalendarEvent) TableName() string { return "calendar_events" }

// Overlaps reports intersection with the half-open interval [start, end).
func (e *CalendarEvent) Overlaps(start, end time.Time) bool {
	return e.StartTime.Before(end) && start.Before(e.EndTime)
}

type SyncMode string

const (
	SyncFull        SyncMode = "full"
	SyncIncremental SyncMode = "incremental"
)

type SyncStatus string

const (
	SyncPending   SyncStatus = "pending"
	SyncRunning   SyncStatus = "running"
	SyncCompleted SyncStatus = "completed"
	SyncFailed    SyncStatus = "failed"
	SyncCancelled SyncStatus = "cancelled"
)

func (s SyncStatus) IsTerminal() bool {
	return s == SyncCompleted || s == SyncFailed || s == SyncCancelled
}

// CalendarSync is one execution record of a sync run for a connection.
type CalendarSync struct {
	coreEntity.BaseEntity
	ConnectionID uuid.UUID                    `db:"connection_id" json:"connection_id"`
	Mode         SyncMode                     `db:"mode" json:"mode"`
	Status       SyncStatus                   `db:"status" json:"status"`
	Processed    int                          `db:"processed" json:"processed"`
	Created      int                          `db:"created_count" json:"created"`
	Updated      int                          `db:"updated_count" json:"updated"`
	Deleted      int                          `db:"deleted_count" json:"deleted"`
	Errors       coreEntity.JSONDoc[[]string] `db:"errors" json:"errors"`
	Progress     int                          `db:"progress" json:"progress"`
	Attempt      int                          `db:"attempt" json:"attempt"`
	StartedAt    *time.Time                   `db:"started_at" json:"started_at,omitempty"`
	FinishedAt   *time.Time                   `db:"finished_at" json:"finished_at,omitempty"`
}

func (CalendarSync) TableName() string { return "calendar_syncs" }
