package ui

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/robfig/cron/v3"
	"github.com/tartampluch/go-lunarcal/internal/calendar"
	"github.com/tartampluch/go-lunarcal/internal/config"
	"github.com/tartampluch/go-lunarcal/internal/engine"
	"github.com/tartampluch/go-lunarcal/internal/holiday"
	"github.com/tartampluch/go-lunarcal/internal/notify"
	"github.com/tartampluch/go-lunarcal/internal/server"
	"github.com/zalando/go-keyring"
	"golang.org/x/sync/errgroup"
)

//go:embed Icon.png
var appIconData []byte

// LunarCalApp encapsulates the UI state, preferences, and background services.
type LunarCalApp struct {
	App         fyne.App
	Window      fyne.Window
	Preferences fyne.Preferences
	I18nBundle  *i18n.Bundle
	Localizer   *i18n.Localizer
	Ctx         context.Context

	Planner  *engine.Planner
	Holidays *holiday.Cache
	Alerts   *notify.Scheduler
	Server   *server.FeedServer
	Clock    calendar.Clock

	Tray desktop.App
	Menu *fyne.Menu

	TrayStatusItem   *fyne.MenuItem
	TrayMonthItem    *fyne.MenuItem
	TrayRefreshItem  *fyne.MenuItem
	TrayImportItem   *fyne.MenuItem
	TraySettingsItem *fyne.MenuItem

	SupportedLanguages []string
	configChan         chan string

	importWindow fyne.Window
}

// NewLunarCalApp constructs the application and wires dependencies.
func NewLunarCalApp(a fyne.App, ctx context.Context, planner *engine.Planner, holidays *holiday.Cache, alerts *notify.Scheduler, srv *server.FeedServer) *LunarCalApp {
	a.SetIcon(fyne.NewStaticResource(config.IconFile, appIconData))

	app := &LunarCalApp{
		App:                a,
		Preferences:        a.Preferences(),
		Ctx:                ctx,
		Planner:            planner,
		Holidays:           holidays,
		Alerts:             alerts,
		Server:             srv,
		Clock:              calendar.RealClock{},
		SupportedLanguages: config.SupportedLanguages,
		configChan:         make(chan string, config.ChannelBufferSize),
	}
	app.wire()
	return app
}

// wire connects the services to each other and to the shell.
func (app *LunarCalApp) wire() {
	if app.Alerts != nil {
		app.Alerts.Sender = fyneSender{app: app.App}
	}
	if app.Planner != nil {
		app.Planner.FormatAlert = app.formatAlert
		app.Planner.OnChange = app.publishFeed
		if app.Holidays != nil {
			app.Planner.Holidays = app.Holidays
		}
	}
	if app.Holidays != nil {
		app.Holidays.Subscribe(func() {
			if !app.Holidays.Loading() {
				app.publishFeed(app.Ctx)
			}
		})
	}
}

// Run launches the application services and the main UI loop.
func (app *LunarCalApp) Run() {
	app.SetupI18n()
	app.watchPreferences()

	ctx, cancel := context.WithCancel(app.Ctx)
	defer cancel()

	// Services publish into the tray menu, so it has to exist first.
	app.setupTray()
	g := app.startServices(ctx)

	app.App.Run()

	cancel()
	_ = g.Wait()
	app.Alerts.CancelAll()
}

// setupTray installs the icon and menu on the desktop system tray.
func (app *LunarCalApp) setupTray() {
	if app.Tray == nil {
		desk, ok := app.App.(desktop.App)
		if !ok {
			slog.Warn(config.ErrTrayNotSupported,
				config.LogKeyComponent, config.CompUI)
			return
		}
		app.Tray = desk
	}
	app.Tray.SetSystemTrayIcon(app.App.Icon())
	app.setupTrayMenu()
	app.updateTrayStatus()
}

// startServices arms alerts, starts the holiday cache and the feed, then
// runs the feed server and the refresh worker until ctx ends.
func (app *LunarCalApp) startServices(ctx context.Context) *errgroup.Group {
	if err := app.Planner.RearmAll(ctx); err != nil {
		slog.Error(config.ErrAlertArm,
			config.LogKeyComponent, config.CompUI,
			config.LogKeyError, err)
	}
	app.Holidays.Start(ctx)
	app.publishFeed(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		app.serve(gctx)
		return nil
	})
	g.Go(func() error {
		app.backgroundWorker(gctx)
		return nil
	})
	return g
}

// serve runs the feed server until ctx ends. A busy port is reported to the
// user but does not stop the rest of the application.
func (app *LunarCalApp) serve(ctx context.Context) {
	slog.Info(config.MsgServerListen,
		config.LogKeyPort, app.Server.Port,
		config.LogKeyComponent, config.CompUI)

	if err := app.Server.Start(ctx); err != nil {
		slog.Error(config.ErrServerStartup,
			config.LogKeyError, err,
			config.LogKeyComponent, config.CompUI)

		app.App.SendNotification(fyne.NewNotification(
			config.TitleStartupError,
			fmt.Sprintf(config.MsgPortBusy, app.Server.Port)))
	}
}

// watchPreferences monitors changes to settings to reschedule the worker.
func (app *LunarCalApp) watchPreferences() {
	app.Preferences.AddChangeListener(func() {
		select {
		case app.configChan <- config.PrefRefreshCron:
		default:
		}
	})
}

// setupTrayMenu constructs the system tray menu.
func (app *LunarCalApp) setupTrayMenu() {
	app.TrayStatusItem = fyne.NewMenuItem(config.FallbackTrayLabel, nil)
	app.TrayStatusItem.Disabled = true

	app.TrayMonthItem = fyne.NewMenuItem("", nil)
	app.TrayMonthItem.Disabled = true

	app.TrayRefreshItem = fyne.NewMenuItem(app.GetMsg(config.TKeyMenuRefresh), func() {
		go app.refreshHolidays(true)
	})

	app.TrayImportItem = fyne.NewMenuItem(app.GetMsg(config.TKeyMenuImport), func() {
		app.ShowImportDialog()
	})

	app.TraySettingsItem = fyne.NewMenuItem(app.GetMsg(config.TKeyMenuSettings), func() {
		app.ShowSettingsWindow()
	})

	app.Menu = fyne.NewMenu(config.AppName,
		app.TrayStatusItem,
		app.TrayMonthItem,
		fyne.NewMenuItemSeparator(),
		app.TrayRefreshItem,
		app.TrayImportItem,
		app.TraySettingsItem,
	)

	if app.Tray != nil {
		app.Tray.SetSystemTrayMenu(app.Menu)
	}
}

// RefreshTrayMenu updates localized labels in the tray menu.
func (app *LunarCalApp) RefreshTrayMenu() {
	if app.Menu == nil {
		return
	}
	app.TrayRefreshItem.Label = app.GetMsg(config.TKeyMenuRefresh)
	app.TrayImportItem.Label = app.GetMsg(config.TKeyMenuImport)
	app.TraySettingsItem.Label = app.GetMsg(config.TKeyMenuSettings)
	app.Menu.Refresh()
	app.updateTrayStatus()
}

// backgroundWorker checks the holiday cache for staleness on a cron schedule,
// so a year boundary crossed while the app runs triggers a refresh.
func (app *LunarCalApp) backgroundWorker(ctx context.Context) {
	log := slog.With(config.LogKeyComponent, config.CompWorker)

	c := cron.New()
	spec := app.refreshSpec()
	id, err := c.AddFunc(spec, func() { app.scheduledRefresh(ctx) })
	if err != nil {
		log.Warn(config.ErrCronSpec, config.LogKeyValue, spec, config.LogKeyError, err)
		spec = config.DefaultRefreshCron
		id, _ = c.AddFunc(spec, func() { app.scheduledRefresh(ctx) })
	}
	c.Start()
	log.Info(config.MsgWorkerStart, config.LogKeyInterval, spec)

	for {
		select {
		case <-ctx.Done():
			<-c.Stop().Done()
			log.Info(config.MsgWorkerStop)
			return

		case <-app.configChan:
			next := app.refreshSpec()
			if next == spec {
				continue
			}
			newID, err := c.AddFunc(next, func() { app.scheduledRefresh(ctx) })
			if err != nil {
				log.Warn(config.ErrCronSpec, config.LogKeyValue, next, config.LogKeyError, err)
				continue
			}
			c.Remove(id)
			id, spec = newID, next
			log.Info(config.MsgUpdateSchedule, config.LogKeyInterval, spec)
		}
	}
}

// scheduledRefresh refreshes a stale holiday cache unless this year's fetch
// already failed. Failures are retried on the next launch or by hand.
func (app *LunarCalApp) scheduledRefresh(ctx context.Context) {
	year := calendar.Today(app.Clock).Year
	if app.Holidays.FailedIn(year) {
		slog.Debug(config.MsgRefreshSkipFailed,
			config.LogKeyComponent, config.CompWorker,
			config.LogKeyYear, year)
		return
	}
	app.Holidays.RefreshIfStale(ctx)
}

func (app *LunarCalApp) refreshSpec() string {
	spec := app.Preferences.StringWithFallback(config.PrefRefreshCron, config.DefaultRefreshCron)
	if spec == "" {
		return config.DefaultRefreshCron
	}
	return spec
}

// refreshHolidays runs a holiday refresh and reports the outcome when the
// user asked for it.
func (app *LunarCalApp) refreshHolidays(manual bool) {
	slog.Info(config.MsgRefreshReq,
		config.LogKeyComponent, config.CompUI,
		config.LogKeyManual, manual)

	n, err := app.Holidays.Refresh(app.Ctx)
	switch {
	case errors.Is(err, holiday.ErrRefreshInFlight):
		return
	case err != nil:
		if manual {
			app.App.SendNotification(fyne.NewNotification(config.AppName, app.GetMsg(config.TKeyNotifRefreshErr)))
		}
	case manual:
		app.App.SendNotification(fyne.NewNotification(config.AppName,
			app.localizeCount(config.TKeyNotifRefreshed, n)))
	}
	app.updateTrayStatus()
}

// publishFeed regenerates the iCalendar document from the committed
// schedules and the cached holidays.
func (app *LunarCalApp) publishFeed(ctx context.Context) {
	if app.Planner == nil || app.Server == nil {
		return
	}
	schedules, err := app.Planner.All()
	if err != nil {
		slog.ErrorContext(ctx, config.ErrFeedBuild,
			config.LogKeyComponent, config.CompUI,
			config.LogKeyError, err)
		return
	}

	var holidays []holiday.Day
	if app.Holidays != nil {
		holidays = app.Holidays.Entries()
	}

	data, err := engine.BuildICS(schedules, holidays, app.Clock.Now(), app.Planner.Location)
	if err != nil {
		slog.ErrorContext(ctx, config.ErrFeedBuild,
			config.LogKeyComponent, config.CompUI,
			config.LogKeyError, err)
		return
	}
	app.Server.Publish(data)
	app.updateTrayStatus()
}

// updateTrayStatus shows today's schedule count, prefixed with today's
// holiday name when there is one, and a summary of the current month.
func (app *LunarCalApp) updateTrayStatus() {
	if app.Menu == nil || app.TrayStatusItem == nil {
		return
	}
	status := app.statusLabel()
	month := app.monthLabel()
	fyne.Do(func() {
		app.TrayStatusItem.Label = status
		app.TrayMonthItem.Label = month
		app.Menu.Refresh()
	})
}

// monthLabel summarizes the visible grid of the current month.
func (app *LunarCalApp) monthLabel() string {
	if app.Planner == nil {
		return ""
	}
	view, err := app.Planner.Month(calendar.Today(app.Clock), app.gridOptions())
	if err != nil {
		return config.FallbackTrayError
	}

	schedules := 0
	for _, d := range view.Days {
		if d.InCurrentMonth {
			schedules += len(d.Schedules)
		}
	}
	holidays := 0
	if app.Holidays != nil {
		holidays = app.Holidays.CountInMonth(view.Ref.Year, view.Ref.Month)
	}
	return app.localize(config.TKeyTrayMonth, map[string]any{
		"Month":     int(view.Ref.Month),
		"Schedules": schedules,
		"Holidays":  holidays,
	})
}

func (app *LunarCalApp) statusLabel() string {
	if app.Holidays != nil && app.Holidays.Len() == 0 && app.Holidays.LastError() != "" {
		return config.FallbackTrayError
	}

	count := 0
	if app.Planner != nil {
		today, err := app.Planner.Today()
		if err != nil {
			return config.FallbackTrayError
		}
		count = len(today)
	}

	var label string
	if count == 0 {
		label = app.GetMsg(config.TKeyTrayStatusZero)
		if label == config.TKeyTrayStatusZero {
			label = fmt.Sprintf(config.FallbackTrayDefault, 0)
		}
	} else {
		label = app.localizeCount(config.TKeyTrayStatus, count)
		if label == config.TKeyTrayStatus {
			label = fmt.Sprintf(config.FallbackTrayDefault, count)
		}
	}

	if app.Holidays != nil {
		if name, ok := app.Holidays.Lookup(calendar.Today(app.Clock)); ok {
			label = app.localize(config.TKeyTrayHoliday, map[string]any{"Name": name}) + config.TraySeparator + label
		}
	}
	return label
}

// HolidaySource builds the holiday source selected in preferences: the
// bundled list in offline mode, otherwise the HTTP endpoint with the token
// stored in the OS keyring.
func HolidaySource(prefs fyne.Preferences) holiday.Source {
	if !prefs.BoolWithFallback(config.PrefHolidayOnline, true) {
		return holiday.NewStaticSource()
	}

	url := prefs.StringWithFallback(config.PrefHolidayURL, config.DefaultHolidayURL)
	token, err := keyring.Get(config.KeyringService, config.KeyringTokenUser)
	if err != nil {
		slog.Debug(config.MsgTokenFail,
			config.LogKeyComponent, config.CompUI,
			config.LogKeyError, err)
		token = ""
	}
	return holiday.NewHTTPSource(url, token)
}

// gridOptions maps the calendar preferences to grid options.
func (app *LunarCalApp) gridOptions() calendar.GridOptions {
	return calendar.GridOptions{
		Policy:    calendar.ParseGridPolicy(app.Preferences.StringWithFallback(config.PrefGridPolicy, config.GridPolicyFixed)),
		WeekStart: calendar.ParseWeekStart(app.Preferences.StringWithFallback(config.PrefWeekStart, config.WeekStartSunday)),
	}
}

// repeatCount returns the preferred number of occurrences for new repeating
// schedules, clamped to the allowed range.
func (app *LunarCalApp) repeatCount() int {
	n := app.Preferences.IntWithFallback(config.PrefRepeatCount, config.DefaultRepeatCount)
	return max(config.MinRepeatCount, min(n, config.MaxRepeatCount))
}

// formatAlert localizes the notification text of a schedule alert.
func (app *LunarCalApp) formatAlert(s engine.Schedule) (string, string) {
	title := s.Title
	if title == "" {
		title = app.GetMsg(config.TKeyAlertTitle)
		if title == config.TKeyAlertTitle {
			title = config.DefaultAlertTitle
		}
	}

	body := app.localize(config.TKeyFormatAlertBody, map[string]any{"Title": s.Title, "Time": s.Start.String()})
	if body == config.TKeyFormatAlertBody {
		body = fmt.Sprintf(config.FallbackAlertBody, s.Title, s.Start)
	}
	return title, body
}

// fyneSender delivers fired alerts as desktop notifications.
type fyneSender struct {
	app fyne.App
}

func (s fyneSender) Send(title, body string) {
	s.app.SendNotification(fyne.NewNotification(title, body))
}
