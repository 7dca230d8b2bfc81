package service

import (
	"context"
	"errors"
	"strings"
	"time"

	sh "smart_heating"
	"smart_heating/internal/repository"
)

// LogFilter narrows an event-log query.
type LogFilter struct {
	AreaID string
	From   time.Time
	To     time.Time
	Type   string
}

var errInvalidTimeRange = errors.New("invalid time range: From must be <= To")

type EventLogService struct {
	eventRepo repository.EventRepo
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// List returns events matching the filter, oldest first.
func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]sh.AreaEvent, error) {
	from := normalizeToUTC(f.From)
	to := normalizeToUTC(f.To)
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return nil, errInvalidTimeRange
	}
	typ := strings.TrimSpace(strings.ToUpper(f.Type))
	return s.eventRepo.List(ctx, f.AreaID, from, to, typ)
}
