package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"go-meeting-core/modules/resource/dto"
	"go-meeting-core/modules/resource/repository"
)

var reserveRef = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newResourceFixture(t *testing.T) *ResourceService {
	t.Helper()
	return NewResourceService(repository.NewMemoryResourceRepository(), repository.NewMemoryReservationRepository())
}

func seedRoom(t *testing.T, svc *ResourceService, name string, capacity int) {
	t.Helper()
	_, appErr := svc.CreateResource(context.Background(), &dto.CreateResourceRequest{
		Type: "room", Name: name, Capacity: capacity, Location: "HQ",
	})
	if appErr != nil {
		t.Fatalf("CreateResource: %v", appErr)
	}
}

func TestReserve_OverlapCountsAgainstCapacity(t *testing.T) {
	svc := newResourceFixture(t)
	seedRoom(t, svc, "Aurora", 2)

	start, end := reserveRef, reserveRef.Add(time.Hour)

	first, err := svc.Reserve(context.Background(), "room", 1, start, end)
	if err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	if _, err := svc.Reserve(context.Background(), "room", 1, start, end); err != nil {
		t.Fatalf("second reserve within capacity: %v", err)
	}
	if _, err := svc.Reserve(context.Background(), "room", 1, start, end); err == nil {
		t.Fatalf("third overlapping reserve should exceed capacity")
	}

	// Adjacent windows share no capacity; half-open intervals.
	if _, err := svc.Reserve(context.Background(), "room", 2, end, end.Add(time.Hour)); err != nil {
		t.Fatalf("adjacent reserve: %v", err)
	}

	// Releasing frees the window again.
	if err := svc.Release(context.Background(), first); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := svc.Reserve(context.Background(), "room", 1, start, end); err != nil {
		t.Fatalf("reserve after release: %v", err)
	}
}

func TestReserve_FallsThroughToNextResource(t *testing.T) {
	svc := newResourceFixture(t)
	seedRoom(t, svc, "Aurora", 1)
	seedRoom(t, svc, "Borealis", 1)

	start, end := reserveRef, reserveRef.Add(30*time.Minute)

	if _, err := svc.Reserve(context.Background(), "room", 1, start, end); err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	if _, err := svc.Reserve(context.Background(), "room", 1, start, end); err != nil {
		t.Fatalf("second room should absorb the overlap: %v", err)
	}
	if _, err := svc.Reserve(context.Background(), "room", 1, start, end); err == nil {
		t.Fatalf("both rooms taken, reserve should fail")
	}
}

func TestReserve_UnknownTypeAndBadWindow(t *testing.T) {
	svc := newResourceFixture(t)
	seedRoom(t, svc, "Aurora", 1)

	if _, err := svc.Reserve(context.Background(), "submarine", 1, reserveRef, reserveRef.Add(time.Hour)); err == nil {
		t.Fatalf("unknown type should fail")
	}
	if _, err := svc.Reserve(context.Background(), "room", 1, reserveRef, reserveRef); err == nil {
		t.Fatalf("empty window should fail")
	}
}

func TestRelease_DoubleAndUnknown(t *testing.T) {
	svc := newResourceFixture(t)
	seedRoom(t, svc, "Aurora", 1)

	id, err := svc.Reserve(context.Background(), "room", 1, reserveRef, reserveRef.Add(time.Hour))
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := svc.Release(context.Background(), id); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := svc.Release(context.Background(), id); err == nil {
		t.Fatalf("double release should error")
	}
	if err := svc.Release(context.Background(), "not-a-uuid"); err == nil {
		t.Fatalf("malformed id should error")
	}
}

func TestCatalog_UpdateDeactivatesResource(t *testing.T) {
	svc := newResourceFixture(t)
	seedRoom(t, svc, "Aurora", 1)

	list, appErr := svc.ListResources(context.Background())
	if appErr != nil || len(list) != 1 {
		t.Fatalf("list: %v (%d items)", appErr, len(list))
	}

	inactive := false
	if _, appErr := svc.UpdateResource(context.Background(), uuid.MustParse(list[0].ID), &dto.UpdateResourceRequest{IsActive: &inactive}); appErr != nil {
		t.Fatalf("update: %v", appErr)
	}

	// Inactive resources never serve reservations.
	if _, err := svc.Reserve(context.Background(), "room", 1, reserveRef, reserveRef.Add(time.Hour)); err == nil {
		t.Fatalf("inactive resource should not be reservable")
	}
}
