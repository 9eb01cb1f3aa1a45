package provider

import (
	"context"
	"time"

	"go-meeting-core/modules/calendar/entity"
)

// RemoteEvent is the provider-neutral shape of one event on the remote
// calendar. Deleted marks a cancellation seen during incremental sync.
type RemoteEvent struct {
	ID             string
	Title          string
	Start          time.Time
	End            time.Time
	Attendees      []string
	RecurrenceRule string
	ShowAs         entity.ShowAs
	Deleted        bool
}

// Credentials are the decrypted tokens for one connection. The sync
// coordinator owns decryption and refresh persistence; adapters only consume
// the access token and report a refresh back through its return values.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Provider adapts one external calendar API. Every method is subject to the
// request budget in the provider's descriptor.
type Provider interface {
	Descriptor() entity.ProviderDescriptor

	// Refresh exchanges the refresh token for a fresh access token.
	Refresh(ctx context.Context, refreshToken string) (accessToken string, expiresAt time.Time, err error)

	CreateRemoteEvent(ctx context.Context, accessToken string, event *entity.CalendarEvent) (externalID string, err error)
	UpdateRemoteEvent(ctx context.Context, accessToken string, event *entity.CalendarEvent) error
	DeleteRemoteEvent(ctx context.Context, accessToken, externalID string) error

	// ListChangesSince returns remote changes after the cursor. An empty
	// cursor requests a full listing; the returned cursor resumes from the
	// end of this page on the next sync.
	ListChangesSince(ctx context.Context, accessToken, cursor string) ([]RemoteEvent, string, error)
}

// Registry maps provider types to their adapters.
type Registry struct {
	providers map[entity.ProviderType]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[entity.ProviderType]Provider)}
}

func (r *Registry) Register(p Provider) {
	r.providers[p.Descriptor().Type] = p
}

func (r *Registry) Get(t entity.ProviderType) (Provider, bool) {
	p, ok := r.providers[t]
	return p, ok
}
