package engine

import (
	"bytes"
	"fmt"
	"log/slog"
	"time"

	"github.com/emersion/go-ical"
	"github.com/tartampluch/go-lunarcal/internal/config"
	"github.com/tartampluch/go-lunarcal/internal/holiday"
)

// BuildICS renders schedules and holidays as one iCalendar document.
//
// Schedules become timed events (UTC) with a DISPLAY alarm when their alert
// is enabled; holidays become all-day events tagged HOLIDAY. An empty input
// still yields a valid, empty VCALENDAR so subscribed clients keep the feed.
func BuildICS(schedules []Schedule, holidays []holiday.Day, now time.Time, loc *time.Location) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(config.PropVersion, config.ICalVersion)
	cal.Props.SetText(config.PropProdid, config.ICalProdid)
	cal.Props.SetText(config.PropXWRCalName, config.ICalCalName)
	cal.Props.SetText(config.PropCalScale, config.ICalScale)
	cal.Props.SetText(config.PropMethod, config.ICalMethod)

	refresh := ical.NewProp(config.PropRefresh)
	refresh.SetDuration(config.DefaultICalRefresh)
	cal.Props.Set(refresh)

	stamp := ical.NewProp(config.PropDTStamp)
	stamp.SetDateTime(now.UTC())

	for _, s := range schedules {
		e := scheduleEvent(s, loc)
		e.Props.Set(stamp)
		cal.Children = append(cal.Children, e.Component)
	}
	for _, h := range holidays {
		e := holidayEvent(h)
		e.Props.Set(stamp)
		cal.Children = append(cal.Children, e.Component)
	}

	if len(cal.Children) == 0 {
		return []byte(config.StubVCalendar), nil
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrICalEncode, err)
	}

	slog.Debug(config.MsgFeedUpdated,
		config.LogKeyComponent, config.CompEngine,
		config.LogKeyCount, len(cal.Children),
		config.LogKeySizeBytes, buf.Len())
	return buf.Bytes(), nil
}

func scheduleEvent(s Schedule, loc *time.Location) *ical.Event {
	e := ical.NewEvent()
	e.Props.SetText(config.PropUID, fmt.Sprintf(config.FormatEventUID, s.ID, config.ICalDomain))
	e.Props.SetText(config.PropSummary, s.Title)
	if s.Memo != "" {
		e.Props.SetText(config.PropDescription, s.Memo)
	}

	start := s.Start.On(s.Date, loc)
	end := s.End.On(s.Date, loc)
	if !s.Start.Before(s.End) {
		end = start.Add(config.DefaultDuration)
	}
	e.Props.SetDateTime(config.PropDTStart, start.UTC())
	e.Props.SetDateTime(config.PropDTEnd, end.UTC())

	if s.AlertEnabled {
		addAlarm(e, s.AlertInstant(loc).Sub(start), s.Title)
	}
	return e
}

func holidayEvent(h holiday.Day) *ical.Event {
	e := ical.NewEvent()
	e.Props.SetText(config.PropUID, fmt.Sprintf(config.FormatHolidayUID, h.Date, config.ICalDomain))
	e.Props.SetText(config.PropSummary, h.Name)
	e.Props.SetText(config.PropCategories, config.CategoryHoliday)
	e.Props.SetDate(config.PropDTStart, h.Date.Time(time.UTC))
	e.Props.SetDate(config.PropDTEnd, h.Date.AddDays(1).Time(time.UTC))
	return e
}

// addAlarm appends a DISPLAY alarm triggered offset from the event start.
func addAlarm(event *ical.Event, offset time.Duration, description string) {
	alarm := ical.NewComponent(config.ICalComponent)
	alarm.Props.SetText(config.PropAction, config.ICalAction)
	alarm.Props.SetText(config.PropDescription, description)

	trigger := ical.NewProp(config.PropTrigger)
	trigger.SetDuration(offset)
	alarm.Props.Set(trigger)

	event.Children = append(event.Children, alarm)
}
