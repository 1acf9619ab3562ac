package ui

import (
	"fmt"
	"io"
	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"github.com/tartampluch/go-lunarcal/internal/config"
	"github.com/tartampluch/go-lunarcal/internal/engine"
)

// ShowImportDialog lets the user pick a vCard file whose birthdays become
// yearly schedules. Only one import window is open at a time.
func (app *LunarCalApp) ShowImportDialog() {
	if app.importWindow != nil {
		app.importWindow.RequestFocus()
		return
	}

	w := app.App.NewWindow(app.GetMsg(config.TKeyMenuImport))
	w.Resize(fyne.NewSize(config.ImportWinWidth, config.ImportWinHeight))
	app.importWindow = w
	w.SetOnClosed(func() { app.importWindow = nil })

	d := dialog.NewFileOpen(func(r fyne.URIReadCloser, err error) {
		if err != nil {
			slog.Error(config.ErrVCardParse,
				config.LogKeyComponent, config.CompUI,
				config.LogKeyError, err)
			app.App.SendNotification(fyne.NewNotification(config.AppName, app.GetMsg(config.TKeyNotifImportErr)))
			return
		}
		if r == nil {
			return
		}

		slog.Info(config.MsgImportReq,
			config.LogKeyComponent, config.CompUI,
			config.LogKeyFile, r.URI().Path())
		go func() {
			defer func() { _ = r.Close() }()
			app.reportImport(app.importContacts(r))
		}()
	}, w)
	d.SetFilter(storage.NewExtensionFileFilter([]string{config.ExtVCF, config.ExtVCard}))
	d.SetOnClosed(func() {
		if app.importWindow == w {
			w.Close()
		}
	})

	w.Show()
	d.Show()
}

// importContacts adds one yearly schedule per birthday found in r. Cards the
// planner rejects are logged and skipped.
func (app *LunarCalApp) importContacts(r io.Reader) (int, error) {
	im := engine.Importer{IDs: app.Planner.IDs, FormatTitle: app.birthdayTitle}
	schedules, err := im.Import(app.Ctx, r, app.Clock.Now())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", config.ErrVCardParse, err)
	}

	count := app.repeatCount()
	imported := 0
	for _, s := range schedules {
		if _, err := app.Planner.Add(app.Ctx, s, count); err != nil {
			slog.Warn(config.ErrCommit,
				config.LogKeyComponent, config.CompUI,
				config.LogKeyName, s.Title,
				config.LogKeyError, err)
			continue
		}
		imported++
	}
	return imported, nil
}

func (app *LunarCalApp) reportImport(n int, err error) {
	if err != nil {
		slog.Error(config.ErrVCardParse,
			config.LogKeyComponent, config.CompUI,
			config.LogKeyError, err)
		app.App.SendNotification(fyne.NewNotification(config.AppName, app.GetMsg(config.TKeyNotifImportErr)))
		return
	}
	app.App.SendNotification(fyne.NewNotification(config.AppName, app.localizeCount(config.TKeyNotifImported, n)))
}

// birthdayTitle localizes the title of an imported birthday.
func (app *LunarCalApp) birthdayTitle(name string) string {
	title := app.localize(config.TKeyBirthdayTitle, map[string]any{"Name": name})
	if title == config.TKeyBirthdayTitle {
		return fmt.Sprintf(config.FallbackBirthdayTitle, name)
	}
	return title
}
