package dto

import (
	"time"

	"go-meeting-core/modules/calendar/entity"
)

// ===================== Request DTOs =====================

type CreateConnectionRequest struct {
	Provider       string               `json:"provider" validate:"required"`
	CalendarEmail  string               `json:"calendar_email" validate:"required,email"`
	AccessToken    string               `json:"access_token" validate:"required"`
	RefreshToken   string               `json:"refresh_token"`
	TokenExpiresAt time.Time            `json:"token_expires_at"`
	Settings       *entity.SyncSettings `json:"settings,omitempty"`
}

type UpdateSettingsRequest struct {
	Settings entity.SyncSettings `json:"settings"`
}

type RunSyncRequest struct {
	Mode string `json:"mode,omitempty"` // full | incremental, defaults to incremental
}

// ===================== Response DTOs =====================

type ConnectionResponse struct {
	ID            string              `json:"id"`
	Provider      string              `json:"provider"`
	CalendarEmail string              `json:"calendar_email"`
	Status        string              `json:"status"`
	Settings      entity.SyncSettings `json:"settings"`
	NextSyncAt    *time.Time          `json:"next_sync_at,omitempty"`
	LastSyncAt    *time.Time          `json:"last_sync_at,omitempty"`
	ConnectedAt   time.Time           `json:"connected_at"`
}

type SyncResponse struct {
	ID           string     `json:"id"`
	ConnectionID string     `json:"connection_id"`
	Mode         string     `json:"mode"`
	Status       string     `json:"status"`
	Processed    int        `json:"processed"`
	Created      int        `json:"created"`
	Updated      int        `json:"updated"`
	Deleted      int        `json:"deleted"`
	Errors       []string   `json:"errors,omitempty"`
	Progress     int        `json:"progress"`
	Attempt      int        `json:"attempt"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

type EventResponse struct {
	ID         string    `json:"id"`
	BookingID  string    `json:"booking_id,omitempty"`
	ExternalID string    `json:"external_id,omitempty"`
	Title      string    `json:"title"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	ShowAs     string    `json:"show_as"`
	SyncStatus string    `json:"sync_status"`
}

// DaySlice is one 15-minute slice of a day's availability timeline.
type DaySlice struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Status string    `json:"status"` // available | busy | tentative | out_of_office
}

type DayAvailabilityResponse struct {
	Date   string     `json:"date"`
	Slices []DaySlice `json:"slices"`
}

// ===================== Mappers =====================

func ToConnectionResponse(c *entity.CalendarConnection) *ConnectionResponse {
	return &ConnectionResponse{
		ID:            c.ID.String(),
		Provider:      string(c.Provider),
		CalendarEmail: c.CalendarEmail,
		Status:        string(c.Status),
		Settings:      c.Settings.V,
		NextSyncAt:    c.NextSyncAt,
		LastSyncAt:    c.LastSyncAt,
		ConnectedAt:   c.CreatedAt,
	}
}

func ToSyncResponse(j *entity.CalendarSync) *SyncResponse {
	return &SyncResponse{
		ID:           j.ID.String(),
		ConnectionID: j.ConnectionID.String(),
		Mode:         string(j.Mode),
		Status:       string(j.Status),
		Processed:    j.Processed,
		Created:      j.Created,
		Updated:      j.Updated,
		Deleted:      j.Deleted,
		Errors:       j.Errors.V,
		Progress:     j.Progress,
		Attempt:      j.Attempt,
		StartedAt:    j.StartedAt,
		FinishedAt:   j.FinishedAt,
	}
}

func ToEventResponse(e *entity.CalendarEvent) *EventResponse {
	resp := &EventResponse{
		ID:         e.ID.String(),
		ExternalID: e.ExternalID,
		Title:      e.Title,
		StartTime:  e.StartTime,
		EndTime:    e.EndTime,
		ShowAs:     string(e.ShowAs),
		SyncStatus: string(e.SyncStatus),
	}
	if e.BookingID != nil {
		resp.BookingID = e.BookingID.String()
	}
	return resp
}
