package ui

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/robfig/cron/v3"
	"github.com/tartampluch/go-lunarcal/internal/config"
	"github.com/zalando/go-keyring"
)

// settingsWidgets holds references to UI elements to simplify data retrieval during save.
type settingsWidgets struct {
	langSelect   *widget.Select
	entryPort    *NumericalEntry
	entryRepeat  *NumericalEntry
	selectWeek   *widget.Select
	selectGrid   *widget.Select
	entryCron    *widget.Entry
	checkOnline  *widget.Check
	urlEntry     *widget.Entry
	tokenEntry   *widget.Entry
	initialURL   string
	initialToken string
}

// ShowSettingsWindow displays the configuration dialog.
func (app *LunarCalApp) ShowSettingsWindow() {
	if app.Window != nil {
		slog.Debug(config.MsgSettingsFocus, config.LogKeyComponent, config.CompUISet)
		app.Window.RequestFocus()
		return
	}

	slog.Info(config.MsgSettingsOpen, config.LogKeyComponent, config.CompUISet)
	w := app.App.NewWindow(app.GetMsg(config.TKeyWinTitle))
	app.Window = w

	sw := app.newSettingsWidgets()

	var refreshLayout func()
	onLayoutChange := func() {
		if refreshLayout != nil {
			refreshLayout()
		}
	}

	itemLang := widget.NewFormItem(app.GetMsg(config.TKeyLblLanguage), sw.langSelect)
	itemLang.HintText = app.GetMsg(config.TKeyHelpLanguage)
	itemPort := widget.NewFormItem(app.GetMsg(config.TKeyLblPort), sw.entryPort)
	itemPort.HintText = app.GetMsg(config.TKeyHelpPort)
	generalCard := widget.NewCard(app.GetMsg(config.TKeyLblGeneral), "", widget.NewForm(itemLang, itemPort))

	itemRepeat := widget.NewFormItem(app.GetMsg(config.TKeyLblRepeatCount), sw.entryRepeat)
	itemRepeat.HintText = app.GetMsg(config.TKeyHelpRepeatCount)
	calendarCard := widget.NewCard(app.GetMsg(config.TKeyLblCalendar), "", widget.NewForm(
		widget.NewFormItem(app.GetMsg(config.TKeyLblWeekStart), sw.selectWeek),
		widget.NewFormItem(app.GetMsg(config.TKeyLblGridPolicy), sw.selectGrid),
		itemRepeat,
	))

	holidayCard := app.buildHolidayCard(sw, onLayoutChange)

	saveAction := func() {
		for _, v := range []fyne.Validatable{sw.entryPort, sw.entryRepeat, sw.entryCron} {
			if err := v.Validate(); err != nil {
				dialog.ShowError(err, w)
				return
			}
		}
		app.saveSettings(sw)
		w.Close()
	}

	btnSave := widget.NewButtonWithIcon(app.GetMsg(config.TKeyBtnSave), theme.DocumentSaveIcon(), saveAction)
	btnSave.Importance = widget.HighImportance
	btnCancel := widget.NewButtonWithIcon(app.GetMsg(config.TKeyBtnCancel), theme.CancelIcon(), func() { w.Close() })

	footerLabel := widget.NewLabel(fmt.Sprintf(app.GetMsg(config.TKeyLblFooter), config.Version))
	footerLabel.Alignment = fyne.TextAlignCenter
	footerLabel.TextStyle = fyne.TextStyle{Italic: true}

	paddedContent := container.NewPadded(container.NewVBox(
		generalCard,
		calendarCard,
		holidayCard,
		container.NewGridWithColumns(config.LayoutColumnsDouble, btnCancel, btnSave),
		footerLabel,
	))

	refreshLayout = func() {
		paddedContent.Refresh()
		w.Resize(fyne.NewSize(config.SettingsWindowWidth, paddedContent.MinSize().Height))
	}

	w.SetContent(paddedContent)
	w.SetFixedSize(true)
	w.SetOnClosed(func() { app.Window = nil })

	refreshLayout()
	w.Show()
}

// newSettingsWidgets creates the form controls pre-filled from preferences.
func (app *LunarCalApp) newSettingsWidgets() *settingsWidgets {
	sw := &settingsWidgets{}

	sw.langSelect = widget.NewSelect(app.SupportedLanguages, nil)
	sw.langSelect.SetSelected(app.Preferences.StringWithFallback(config.PrefLanguage, config.DefaultLanguage))

	sw.entryPort = NewNumericalEntry()
	sw.entryPort.SetText(app.Preferences.StringWithFallback(config.PrefServerPort, config.DefaultPort))
	sw.entryPort.Validator = app.validatePort

	sw.entryRepeat = NewNumericalEntry()
	sw.entryRepeat.SetText(strconv.Itoa(app.repeatCount()))
	sw.entryRepeat.Validator = app.validateRepeatCount

	sw.selectWeek = widget.NewSelect([]string{
		app.GetMsg(config.TKeyWeekSunday),
		app.GetMsg(config.TKeyWeekMonday),
	}, nil)
	if app.Preferences.String(config.PrefWeekStart) == config.WeekStartMonday {
		sw.selectWeek.SetSelected(app.GetMsg(config.TKeyWeekMonday))
	} else {
		sw.selectWeek.SetSelected(app.GetMsg(config.TKeyWeekSunday))
	}

	sw.selectGrid = widget.NewSelect([]string{
		app.GetMsg(config.TKeyGridFixed),
		app.GetMsg(config.TKeyGridFill),
	}, nil)
	if app.Preferences.String(config.PrefGridPolicy) == config.GridPolicyFill {
		sw.selectGrid.SetSelected(app.GetMsg(config.TKeyGridFill))
	} else {
		sw.selectGrid.SetSelected(app.GetMsg(config.TKeyGridFixed))
	}

	sw.entryCron = widget.NewEntry()
	sw.entryCron.SetText(app.refreshSpec())
	sw.entryCron.Validator = app.validateCron

	sw.checkOnline = widget.NewCheck(app.GetMsg(config.TKeyLblOnline), nil)
	sw.checkOnline.Checked = app.Preferences.BoolWithFallback(config.PrefHolidayOnline, true)

	sw.urlEntry = widget.NewEntry()
	sw.urlEntry.PlaceHolder = config.DefaultHolidayURL
	sw.urlEntry.SetText(app.Preferences.StringWithFallback(config.PrefHolidayURL, config.DefaultHolidayURL))
	sw.initialURL = sw.urlEntry.Text

	sw.tokenEntry = widget.NewPasswordEntry()
	if token, err := keyring.Get(config.KeyringService, config.KeyringTokenUser); err == nil {
		sw.tokenEntry.SetText(token)
	}
	sw.initialToken = sw.tokenEntry.Text

	return sw
}

// buildHolidayCard constructs the holiday source section. The endpoint form
// is only shown in online mode.
func (app *LunarCalApp) buildHolidayCard(sw *settingsWidgets, onLayoutChange func()) *widget.Card {
	itemURL := widget.NewFormItem(app.GetMsg(config.TKeyLblURL), sw.urlEntry)
	itemURL.HintText = app.GetMsg(config.TKeyHelpURL)
	itemCron := widget.NewFormItem(app.GetMsg(config.TKeyLblRefreshCron), sw.entryCron)
	itemCron.HintText = app.GetMsg(config.TKeyHelpRefreshCron)

	webForm := widget.NewForm(itemURL, widget.NewFormItem(app.GetMsg(config.TKeyLblToken), sw.tokenEntry), itemCron)

	setVisible := func(online bool) {
		if online {
			webForm.Show()
		} else {
			webForm.Hide()
		}
	}
	sw.checkOnline.OnChanged = func(online bool) {
		setVisible(online)
		if onLayoutChange != nil {
			onLayoutChange()
		}
	}
	setVisible(sw.checkOnline.Checked)

	return widget.NewCard(app.GetMsg(config.TKeyLblHolidays), "", container.NewVBox(sw.checkOnline, webForm))
}

func (app *LunarCalApp) validatePort(s string) error {
	if s == "" {
		return errors.New(app.GetMsg(config.TKeyErrPortReq))
	}
	port, err := strconv.Atoi(s)
	if err != nil {
		return errors.New(app.GetMsg(config.TKeyErrPortNum))
	}
	if port < config.MinPort || port > config.MaxPort {
		return errors.New(app.GetMsg(config.TKeyErrPortRange))
	}
	return nil
}

func (app *LunarCalApp) validateRepeatCount(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < config.MinRepeatCount || n > config.MaxRepeatCount {
		return errors.New(app.GetMsg(config.TKeyErrRepeatRange))
	}
	return nil
}

func (app *LunarCalApp) validateCron(s string) error {
	if _, err := cron.ParseStandard(s); err != nil {
		return errors.New(app.GetMsg(config.TKeyErrCron))
	}
	return nil
}

// saveSettings persists the form. A changed holiday source replaces the
// cache's source and triggers a refresh with it.
func (app *LunarCalApp) saveSettings(sw *settingsWidgets) {
	slog.Info(config.MsgSettingsSave, config.LogKeyComponent, config.CompUISet)

	wasOnline := app.Preferences.BoolWithFallback(config.PrefHolidayOnline, true)

	app.Preferences.SetString(config.PrefLanguage, sw.langSelect.Selected)
	if sw.entryPort.Text != "" {
		app.Preferences.SetString(config.PrefServerPort, sw.entryPort.Text)
	}
	if n, err := strconv.Atoi(sw.entryRepeat.Text); err == nil {
		app.Preferences.SetInt(config.PrefRepeatCount, n)
	}

	week := config.WeekStartSunday
	if sw.selectWeek.Selected == app.GetMsg(config.TKeyWeekMonday) {
		week = config.WeekStartMonday
	}
	app.Preferences.SetString(config.PrefWeekStart, week)

	grid := config.GridPolicyFixed
	if sw.selectGrid.Selected == app.GetMsg(config.TKeyGridFill) {
		grid = config.GridPolicyFill
	}
	app.Preferences.SetString(config.PrefGridPolicy, grid)

	app.Preferences.SetString(config.PrefRefreshCron, sw.entryCron.Text)
	app.Preferences.SetBool(config.PrefHolidayOnline, sw.checkOnline.Checked)
	app.Preferences.SetString(config.PrefHolidayURL, sw.urlEntry.Text)

	if sw.tokenEntry.Text != sw.initialToken {
		var err error
		if sw.tokenEntry.Text == "" {
			err = keyring.Delete(config.KeyringService, config.KeyringTokenUser)
		} else {
			err = keyring.Set(config.KeyringService, config.KeyringTokenUser, sw.tokenEntry.Text)
		}
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			slog.Error(config.ErrKeyringSave,
				config.LogKeyComponent, config.CompUISet,
				config.LogKeyError, err)
		}
	}

	app.UpdateLocalizer()
	app.RefreshTrayMenu()

	sourceChanged := wasOnline != sw.checkOnline.Checked ||
		sw.urlEntry.Text != sw.initialURL ||
		sw.tokenEntry.Text != sw.initialToken
	if sourceChanged && app.Holidays != nil {
		app.Holidays.SetSource(HolidaySource(app.Preferences))
		app.Holidays.RefreshAsync(app.Ctx)
	}
}
