package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-vcard"
	"github.com/tartampluch/go-lunarcal/internal/calendar"
	"github.com/tartampluch/go-lunarcal/internal/config"
)

// Importer turns vCard birthdays into yearly schedules.
type Importer struct {
	IDs IDFunc // nil means NewID

	// FormatTitle allows the UI to inject a localized event title.
	FormatTitle func(name string) string
}

// ImportBirthdays is Importer{IDs: ids}.Import without cancellation.
func ImportBirthdays(r io.Reader, now time.Time, ids IDFunc) ([]Schedule, error) {
	return Importer{IDs: ids}.Import(context.Background(), r, now)
}

// Import decodes every card of r and returns one anchor schedule per
// birthday, repeating yearly in the Gregorian calendar and dated on the
// next occurrence on or after now. The birth date itself, when the card
// has a year, goes into the memo. Malformed cards and dates are skipped.
func (im Importer) Import(ctx context.Context, r io.Reader, now time.Time) ([]Schedule, error) {
	log := slog.With(config.LogKeyComponent, config.CompEngine)
	ids := im.IDs
	if ids == nil {
		ids = NewID
	}
	today := calendar.FromTime(now)

	dec := vcard.NewDecoder(r)
	var out []Schedule
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		card, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Warn(config.MsgSkippedCard, config.LogKeyError, err)
			continue
		}

		bday := card.Get(config.VCardBDAY)
		if bday == nil || bday.Value == "" {
			continue
		}
		born, yearKnown, err := parseBirthday(bday.Value)
		if err != nil {
			log.Debug(config.MsgSkippedDate, config.LogKeyValue, bday.Value)
			continue
		}

		name := config.FallbackName
		if fn := card.Get(config.VCardFN); fn != nil && fn.Value != "" {
			name = fn.Value
		} else if n := card.Name(); n != nil {
			if full := strings.TrimSpace(n.GivenName + " " + n.FamilyName); full != "" {
				name = full
			}
		}

		title := name
		if im.FormatTitle != nil {
			title = im.FormatTitle(name)
		}

		s := Schedule{
			ID:     ids(),
			Title:  title,
			Date:   nextOccurrence(today, born),
			Repeat: YearlySolar,
		}
		if yearKnown {
			s.Memo = born.String()
		}
		out = append(out, s)
	}

	log.Info(config.MsgImportDone, config.LogKeyCount, len(out))
	return out, nil
}

// nextOccurrence returns the first date on or after today that has born's
// month and day. Feb 29 waits for the next leap year.
func nextOccurrence(today, born calendar.Date) calendar.Date {
	for y := today.Year; ; y++ {
		d, err := calendar.NewDate(y, born.Month, born.Day)
		if err == nil && !d.Before(today) {
			return d
		}
	}
}

// parseBirthday handles the BDAY layouts found in the wild. Year-less
// values are placed in config.DefaultLeapYear so --02-29 survives.
func parseBirthday(value string) (calendar.Date, bool, error) {
	withYear := []string{
		config.DateFormatISO,
		config.DateFormatFullBasic,
		config.DateFormatRFC3339,
		config.DateFormatFullT,
	}
	for _, layout := range withYear {
		if t, err := time.Parse(layout, value); err == nil {
			return calendar.FromTime(t), true, nil
		}
	}

	for _, layout := range []string{config.DateFormatNoYearD, config.DateFormatNoYearB} {
		if t, err := time.Parse(layout, value); err == nil {
			d, err := calendar.NewDate(config.DefaultLeapYear, t.Month(), t.Day())
			return d, false, err
		}
	}

	return calendar.Date{}, false, errors.New(config.ErrDateParse)
}
