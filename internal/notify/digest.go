package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"carrental/internal/models"
)

// BookingSource lists bookings overlapping an inclusive date range.
type BookingSource interface {
	GetBookingsInRange(ctx context.Context, from, to models.Date) ([]*models.Booking, error)
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (hour, minute int, err error) {
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid time %q", s)
	}
	return hour, minute, nil
}

// StartDigest sends the day's pickups and returns every day at clock (HH:MM) in loc.
func (n *Notifier) StartDigest(ctx context.Context, src BookingSource, clock string, loc *time.Location) error {
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return err
	}
	if loc == nil {
		loc = time.UTC
	}

	go func() {
		timer := time.NewTimer(timeUntilNext(time.Now(), hour, minute, loc))
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				day := digestDay(time.Now(), loc)
				if err := n.sendDigest(ctx, src, day); err != nil {
					n.logger.Error().Err(err).Str("day", day.String()).Msg("digest error")
				}
				timer.Reset(timeUntilNext(time.Now(), hour, minute, loc))
			}
		}
	}()
	return nil
}

// digestDay is the calendar day in loc at the moment the digest fires.
func digestDay(now time.Time, loc *time.Location) models.Date {
	return models.DateOf(now.In(loc))
}

func (n *Notifier) sendDigest(ctx context.Context, src BookingSource, day models.Date) error {
	bookings, err := src.GetBookingsInRange(ctx, day, day)
	if err != nil {
		return err
	}
	if text := formatDigest(day, bookings); text != "" {
		n.Broadcast(text)
	}
	return nil
}

// formatDigest lists pickups and returns on day; empty when there are none.
func formatDigest(day models.Date, bookings []*models.Booking) string {
	var pickups, returns []string
	for _, b := range bookings {
		line := fmt.Sprintf("- %s %s: %s %s", b.Brand, b.Model, b.CustomerName, b.MobileNo)
		if b.StartDate.Equal(day.Time) {
			pickups = append(pickups, line)
		}
		if b.EndDate.Equal(day.Time) {
			returns = append(returns, line)
		}
	}
	if len(pickups) == 0 && len(returns) == 0 {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Schedule for %s", day)
	if len(pickups) > 0 {
		fmt.Fprintf(&sb, "\nPickups (%d):\n%s", len(pickups), strings.Join(pickups, "\n"))
	}
	if len(returns) > 0 {
		fmt.Fprintf(&sb, "\nReturns (%d):\n%s", len(returns), strings.Join(returns, "\n"))
	}
	return sb.String()
}
