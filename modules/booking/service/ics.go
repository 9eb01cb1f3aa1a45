package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go-meeting-core/core/logger"
	"go-meeting-core/core/storage"
	"go-meeting-core/modules/booking/entity"
)

// ICSExporter renders a confirmed booking as an iCalendar document and
// archives it. Export failure never fails the confirmation.
type ICSExporter struct {
	uploader storage.Uploader
}

func NewICSExporter(uploader storage.Uploader) *ICSExporter {
	return &ICSExporter{uploader: uploader}
}

func (e *ICSExporter) Export(ctx context.Context, booking *entity.Booking) {
	if e == nil || e.uploader == nil {
		return
	}
	key := fmt.Sprintf("bookings/%s.ics", booking.ID)
	if err := e.uploader.Upload(ctx, key, "text/calendar", []byte(renderICS(booking))); err != nil {
		logger.Warn("ICSExporter:Export:Failed", "booking_id", booking.ID, "error", err)
	}
}

const icsTimeLayout = "20060102T150405Z"

func renderICS(b *entity.Booking) string {
	var sb strings.Builder
	write := func(line string) {
		sb.WriteString(line)
		sb.WriteString("\r\n")
	}

	write("BEGIN:VCALENDAR")
	write("VERSION:2.0")
	write("PRODID:-//MeetCore//Booking//EN")
	write("METHOD:PUBLISH")
	write("BEGIN:VEVENT")
	write("UID:" + b.ID.String() + "@meetcore")
	write("DTSTAMP:" + time.Now().UTC().Format(icsTimeLayout))
	write("DTSTART:" + b.StartTime.UTC().Format(icsTimeLayout))
	write("DTEND:" + b.EndTime.UTC().Format(icsTimeLayout))
	write("SUMMARY:" + escapeICS(b.Title))
	if b.Location != "" {
		write("LOCATION:" + escapeICS(b.Location))
	}
	write("STATUS:CONFIRMED")
	for _, a := range b.Attendees.V {
		role := "REQ-PARTICIPANT"
		if a.Role == entity.AttendeeOptional {
			role = "OPT-PARTICIPANT"
		}
		write(fmt.Sprintf("ATTENDEE;ROLE=%s;CN=%s:mailto:%s", role, escapeICS(a.Name), a.Email))
	}
	write("END:VEVENT")
	write("END:VCALENDAR")
	return sb.String()
}

func escapeICS(s string) string {
	r := strings.NewReplacer("\\", "\\\\", ";", "\\;", ",", "\\,", "\n", "\\n")
	return r.Replace(s)
}
