// Package calendar keeps "List: <item>" reminder events in Google Calendar a
// configurable number of days ahead of each key date, and reads them back.
package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"datedriven/internal/common/config"
	apperrors "datedriven/internal/common/errors"
	"datedriven/internal/common/logger"
	"datedriven/internal/keydates"
	"datedriven/internal/pipeline"
	"datedriven/internal/pricing"
)

const (
	DefaultCalendarID = "primary"
	DefaultTimeZone   = "America/Los_Angeles"
	DefaultDaysBefore = 7
	DefaultDaysAhead  = 30

	summaryPrefix = "📦 List: "
	listMarker    = "List:"
	keyDateMarker = "Key Date:"
	propKey       = "datedrivenKey"
)

// NewService builds a Calendar client from a service-account or OAuth
// credentials file. Extra options are appended, so tests can redirect the
// endpoint.
func NewService(ctx context.Context, credentialsFile string, opts ...option.ClientOption) (*gcal.Service, error) {
	base := []option.ClientOption{option.WithScopes(gcal.CalendarEventsScope)}
	if credentialsFile != "" {
		base = append(base, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := gcal.NewService(ctx, append(base, opts...)...)
	if err != nil {
		return nil, apperrors.NewCalendarSyncFailedError(err)
	}
	return svc, nil
}

// ItemDates pairs an item with its stored ranked dates.
type ItemDates struct {
	Item  pipeline.InventoryItem
	Dates []keydates.RankedDate
}

// LoadItemDates pairs every inventory item with its stored dates, dropping
// items that have none.
func LoadItemDates(ctx context.Context, inv pipeline.InventorySource, store pipeline.KeyDateStore) ([]ItemDates, error) {
	items, err := inv.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	var out []ItemDates
	for _, it := range items {
		dates, err := store.LoadKeyDates(ctx, it.ID)
		if err != nil {
			return nil, fmt.Errorf("load key dates for %s: %w", it.ID, err)
		}
		if len(dates) > 0 {
			out = append(out, ItemDates{Item: it, Dates: dates})
		}
	}
	return out, nil
}

// Reminder is one planned listing reminder.
type Reminder struct {
	ItemID    string    `json:"item_id"`
	ItemName  string    `json:"item_name"`
	Event     string    `json:"event"`
	EventDate time.Time `json:"event_date"`
	RemindOn  time.Time `json:"remind_on"`
}

// Key identifies a reminder across runs.
func (r Reminder) Key() string {
	return fmt.Sprintf("%s|%s|%s", r.ItemID, keydates.Canonicalize(r.Event), r.EventDate.Format("2006-01-02"))
}

// Listing is a reminder read back from the calendar.
type Listing struct {
	Item     string    `json:"item"`
	Event    string    `json:"event"`
	Date     time.Time `json:"date"`
	EventID  string    `json:"event_id"`
	Summary  string    `json:"summary"`
	KeyDated bool      `json:"key_dated"`
}

type Syncer struct {
	svc        *gcal.Service
	calendarID string
	loc        *time.Location
	daysBefore int
	daysAhead  int
	logger     logger.Logger
	now        func() time.Time
}

func NewSyncer(svc *gcal.Service, cfg config.CalendarConfig, log logger.Logger) (*Syncer, error) {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	tz := cfg.TimeZone
	if tz == "" {
		tz = DefaultTimeZone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, apperrors.NewInvalidConfigError(fmt.Sprintf("calendar time_zone %q: %v", tz, err))
	}
	s := &Syncer{
		svc:        svc,
		calendarID: cfg.CalendarID,
		loc:        loc,
		daysBefore: cfg.DaysBefore,
		daysAhead:  cfg.DaysAhead,
		logger:     log,
		now:        time.Now,
	}
	if s.calendarID == "" {
		s.calendarID = DefaultCalendarID
	}
	if s.daysBefore <= 0 {
		s.daysBefore = DefaultDaysBefore
	}
	if s.daysAhead <= 0 {
		s.daysAhead = DefaultDaysAhead
	}
	return s, nil
}

// PlanReminders places every key date on the calendar at its next occurrence
// and schedules the reminder daysBefore earlier, or today when that day has
// already gone.
func (s *Syncer) PlanReminders(items []ItemDates) []Reminder {
	today := s.now().In(s.loc)
	var out []Reminder
	for _, it := range items {
		for _, d := range it.Dates {
			event := pricing.NextOccurrence(today, d.Date, 0)
			remind := event.AddDate(0, 0, -s.daysBefore)
			if pricing.DaysUntil(today, remind) < 0 {
				remind = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, s.loc)
			}
			out = append(out, Reminder{
				ItemID:    it.Item.ID,
				ItemName:  it.Item.Name,
				Event:     d.Label,
				EventDate: event,
				RemindOn:  remind,
			})
		}
	}
	return out
}

// BuildEvent renders a reminder as an all-day event with a popup one day ahead.
func (s *Syncer) BuildEvent(r Reminder) *gcal.Event {
	day := r.RemindOn.Format("2006-01-02")
	next := r.RemindOn.AddDate(0, 0, 1).Format("2006-01-02")
	return &gcal.Event{
		Summary: summaryPrefix + r.ItemName,
		Description: fmt.Sprintf("%s %s on %s\n\nThis is a reminder to list this item before the key date.",
			keyDateMarker, r.Event, r.EventDate.Format("January 2, 2006")),
		Start: &gcal.EventDateTime{Date: day, TimeZone: s.loc.String()},
		End:   &gcal.EventDateTime{Date: next, TimeZone: s.loc.String()},
		Reminders: &gcal.EventReminders{
			UseDefault:      false,
			Overrides:       []*gcal.EventReminder{{Method: "popup", Minutes: 1440}},
			ForceSendFields: []string{"UseDefault"},
		},
		ExtendedProperties: &gcal.EventExtendedProperties{
			Private: map[string]string{propKey: r.Key()},
		},
	}
}

// PushReminders inserts reminders not already on the calendar. It returns how
// many events were created.
func (s *Syncer) PushReminders(ctx context.Context, reminders []Reminder) (int, error) {
	if len(reminders) == 0 {
		return 0, nil
	}
	existing, err := s.existingKeys(ctx)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, r := range reminders {
		key := r.Key()
		if existing[key] {
			continue
		}
		ev, err := s.svc.Events.Insert(s.calendarID, s.BuildEvent(r)).Context(ctx).Do()
		if err != nil {
			return created, apperrors.NewCalendarSyncFailedError(fmt.Errorf("insert %q: %w", key, err))
		}
		existing[key] = true
		created++
		s.logger.Debug("calendar reminder created", map[string]interface{}{
			"eventId":  ev.Id,
			"itemId":   r.ItemID,
			"event":    r.Event,
			"remindOn": r.RemindOn.Format("2006-01-02"),
		})
	}
	s.logger.Info("calendar reminders pushed", map[string]interface{}{
		"planned": len(reminders),
		"created": created,
	})
	return created, nil
}

func (s *Syncer) existingKeys(ctx context.Context) (map[string]bool, error) {
	keys := make(map[string]bool)
	today := s.now().In(s.loc)
	call := s.svc.Events.List(s.calendarID).
		TimeMin(time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, s.loc).Format(time.RFC3339)).
		SingleEvents(true).
		Q(listMarker)
	err := call.Pages(ctx, func(page *gcal.Events) error {
		for _, ev := range page.Items {
			if ev.ExtendedProperties != nil {
				if k := ev.ExtendedProperties.Private[propKey]; k != "" {
					keys[k] = true
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.NewCalendarSyncFailedError(err)
	}
	return keys, nil
}

// UpcomingListings returns reminder events starting within daysAhead, earliest
// first.
func (s *Syncer) UpcomingListings(ctx context.Context) ([]Listing, error) {
	now := s.now()
	res, err := s.svc.Events.List(s.calendarID).
		TimeMin(now.UTC().Format(time.RFC3339)).
		TimeMax(now.AddDate(0, 0, s.daysAhead).UTC().Format(time.RFC3339)).
		MaxResults(100).
		SingleEvents(true).
		OrderBy("startTime").
		Q(listMarker).
		Context(ctx).
		Do()
	if err != nil {
		return nil, apperrors.NewCalendarSyncFailedError(err)
	}

	var out []Listing
	for _, ev := range res.Items {
		l, ok := s.parseListing(ev)
		if ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *Syncer) parseListing(ev *gcal.Event) (Listing, bool) {
	_, item, ok := strings.Cut(ev.Summary, listMarker)
	if !ok {
		return Listing{}, false
	}
	l := Listing{
		Item:    strings.TrimSpace(item),
		EventID: ev.Id,
		Summary: ev.Summary,
	}
	if _, rest, ok := strings.Cut(ev.Description, keyDateMarker); ok {
		line, _, _ := strings.Cut(rest, "\n")
		l.Event = strings.TrimSpace(line)
		l.KeyDated = true
	}
	if ev.Start != nil {
		raw := ev.Start.Date
		if raw == "" && len(ev.Start.DateTime) >= 10 {
			raw = ev.Start.DateTime[:10]
		}
		if t, err := time.ParseInLocation("2006-01-02", raw, s.loc); err == nil {
			l.Date = t
		}
	}
	return l, true
}
