package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"go-meeting-core/modules/calendar/entity"
)

const (
	googleAPIBase   = "https://www.googleapis.com/calendar/v3"
	googleEventsAPI = googleAPIBase + "/calendars/primary/events"
	googleTokenURL  = "https://oauth2.googleapis.com/token"
)

// GoogleProvider talks to the Google Calendar REST API. Requests share one
// rate limiter sized from the descriptor's budget.
type GoogleProvider struct {
	oauth      oauth2.Config
	client     *http.Client
	limiter    *rate.Limiter
	descriptor entity.ProviderDescriptor
}

func NewGoogleProvider(clientID, clientSecret string) *GoogleProvider {
	descriptor := entity.ProviderDescriptor{
		Type:                entity.ProviderGoogle,
		Name:                "Google Calendar",
		SupportsIncremental: true,
		RequestsPerSecond:   10,
		Burst:               20,
	}
	return &GoogleProvider{
		oauth: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: googleTokenURL},
		},
		client:     &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(descriptor.RequestsPerSecond), descriptor.Burst),
		descriptor: descriptor,
	}
}

func (p *GoogleProvider) Descriptor() entity.ProviderDescriptor { return p.descriptor }

func (p *GoogleProvider) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", time.Time{}, err
	}
	source := p.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("refresh google token: %w", err)
	}
	return token.AccessToken, token.Expiry, nil
}

type googleEvent struct {
	ID        string `json:"id,omitempty"`
	Summary   string `json:"summary,omitempty"`
	Status    string `json:"status,omitempty"`
	Start     googleEventTime `json:"start,omitempty"`
	End       googleEventTime `json:"end,omitempty"`
	Attendees []struct {
		Email string `json:"email"`
	} `json:"attendees,omitempty"`
	Recurrence   []string `json:"recurrence,omitempty"`
	Transparency string   `json:"transparency,omitempty"`
}

type googleEventTime struct {
	DateTime string `json:"dateTime,omitempty"`
}

func (p *GoogleProvider) CreateRemoteEvent(ctx context.Context, accessToken string, event *entity.CalendarEvent) (string, error) {
	body := p.eventPayload(event)
	raw, err := p.call(ctx, accessToken, http.MethodPost, googleEventsAPI, body)
	if err != nil {
		return "", err
	}

	var created googleEvent
	if err := json.Unmarshal(raw, &created); err != nil {
		return "", fmt.Errorf("decode google event: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("google returned no event id")
	}
	return created.ID, nil
}

func (p *GoogleProvider) UpdateRemoteEvent(ctx context.Context, accessToken string, event *entity.CalendarEvent) error {
	if event.ExternalID == "" {
		return fmt.Errorf("event has no external id")
	}
	body := p.eventPayload(event)
	_, err := p.call(ctx, accessToken, http.MethodPatch, googleEventsAPI+"/"+url.PathEscape(event.ExternalID), body)
	return err
}

func (p *GoogleProvider) DeleteRemoteEvent(ctx context.Context, accessToken, externalID string) error {
	_, err := p.call(ctx, accessToken, http.MethodDelete, googleEventsAPI+"/"+url.PathEscape(externalID), nil)
	return err
}

func (p *GoogleProvider) ListChangesSince(ctx context.Context, accessToken, cursor string) ([]RemoteEvent, string, error) {
	params := url.Values{}
	params.Set("singleEvents", "false")
	params.Set("maxResults", "250")
	if cursor != "" {
		params.Set("syncToken", cursor)
	}

	raw, err := p.call(ctx, accessToken, http.MethodGet, googleEventsAPI+"?"+params.Encode(), nil)
	if err != nil {
		return nil, "", err
	}

	var page struct {
		Items         []googleEvent `json:"items"`
		NextSyncToken string        `json:"nextSyncToken"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, "", fmt.Errorf("decode google events page: %w", err)
	}

	changes := make([]RemoteEvent, 0, len(page.Items))
	for _, item := range page.Items {
		change := RemoteEvent{
			ID:      item.ID,
			Title:   item.Summary,
			Deleted: item.Status == "cancelled",
			ShowAs:  entity.ShowBusy,
		}
		if item.Transparency == "transparent" {
			change.ShowAs = entity.ShowFree
		}
		if t, err := time.Parse(time.RFC3339, item.Start.DateTime); err == nil {
			change.Start = t
		}
		if t, err := time.Parse(time.RFC3339, item.End.DateTime); err == nil {
			change.End = t
		}
		for _, a := range item.Attendees {
			change.Attendees = append(change.Attendees, a.Email)
		}
		if len(item.Recurrence) > 0 {
			change.RecurrenceRule = item.Recurrence[0]
		}
		changes = append(changes, change)
	}
	return changes, page.NextSyncToken, nil
}

func (p *GoogleProvider) eventPayload(event *entity.CalendarEvent) *googleEvent {
	payload := &googleEvent{
		Summary: event.Title,
		Start:   googleEventTime{DateTime: event.StartTime.Format(time.RFC3339)},
		End:     googleEventTime{DateTime: event.EndTime.Format(time.RFC3339)},
	}
	for _, email := range event.Attendees.V {
		payload.Attendees = append(payload.Attendees, struct {
			Email string `json:"email"`
		}{Email: email})
	}
	if event.RecurrenceRule != "" {
		payload.Recurrence = []string{event.RecurrenceRule}
	}
	if event.ShowAs == entity.ShowFree {
		payload.Transparency = "transparent"
	}
	return payload
}

func (p *GoogleProvider) call(ctx context.Context, accessToken, method, endpoint string, body any) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("google API %s %s: status %d: %s", method, endpoint, resp.StatusCode, raw)
	}
	return raw, nil
}
