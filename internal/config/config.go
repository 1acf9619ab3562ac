package config

import (
	"io/fs"
	"time"
)

// -----------------------------------------------------------------------------
// Build Information
// -----------------------------------------------------------------------------

// Build variables are injected via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// UserAgent identifies the HTTP client.
var UserAgent = "Go-LunarCal/" + Version

// -----------------------------------------------------------------------------
// Application Constants
// -----------------------------------------------------------------------------

const (
	AppName           = "Go Lunar Calendar"
	AppID             = "com.github.tartampluch.go-lunarcal"
	KeyringService    = "com.github.tartampluch.go-lunarcal"
	KeyringTokenUser  = "holiday-api"
	LocalhostBindAddr = "127.0.0.1"
	LogFileName       = "app.log"
	DBFileName        = "schedules.db"
	IconFile          = "Icon.png"
)

// -----------------------------------------------------------------------------
// Exit Codes
// -----------------------------------------------------------------------------

const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

// -----------------------------------------------------------------------------
// System & File Permissions
// -----------------------------------------------------------------------------

const (
	// FilePermUserRW represents -rw------- (Read/Write for owner only).
	// Used for logs and the schedule database.
	FilePermUserRW fs.FileMode = 0600

	// DirPermUserRWX represents drwx------ (Read/Write/Exec for owner only).
	DirPermUserRWX fs.FileMode = 0700

	// ChannelBufferSize defines the standard buffer size for internal signaling channels.
	ChannelBufferSize = 1

	// DBOpenTimeout bounds the wait for the bbolt file lock.
	DBOpenTimeout = 1 * time.Second

	// BucketSchedules holds one JSON record per schedule ID.
	BucketSchedules = "schedules"
)

// -----------------------------------------------------------------------------
// CLI Flags & Descriptions
// -----------------------------------------------------------------------------

const (
	FlagVersion      = "version"
	FlagDebug        = "debug"
	FlagDescVersion  = "Show application version and exit"
	FlagDescDebug    = "Enable debug logging to stdout"
	MsgVersionOutput = "%s version %s, commit %s, built %s (%s/%s)\n"
)

// -----------------------------------------------------------------------------
// Preferences
// -----------------------------------------------------------------------------

const (
	SettingsWindowWidth = 560
	ImportWinWidth      = 640
	ImportWinHeight     = 480

	// Preference Keys
	PrefHolidayURL    = "holiday_url"
	PrefHolidayOnline = "holiday_online"
	PrefLanguage      = "language"
	PrefServerPort    = "server_port"
	PrefWeekStart     = "week_start"
	PrefGridPolicy    = "grid_policy"
	PrefRepeatCount   = "repeat_count"
	PrefRefreshCron   = "refresh_cron"
	PrefLastRun       = "last_run_version"

	// Holiday cache layout inside the preferences area.
	PrefHolidayCache      = "cachedHolidays"
	PrefHolidayLastUpdate = "holidayLastUpdate"
	PrefHolidayLastYear   = "holidayLastYear"
)

// SupportedLanguages defines the list of available UI languages (ISO 639-1).
var SupportedLanguages = []string{"en", "ko"}

// -----------------------------------------------------------------------------
// Translation Keys (I18n)
// -----------------------------------------------------------------------------

const (
	TKeyWinTitle        = "win_title"
	TKeyMenuRefresh     = "menu_refresh_holidays"
	TKeyMenuImport      = "menu_import_contacts"
	TKeyMenuSettings    = "menu_settings"
	TKeyTrayStatus      = "tray_status"      // Requires Count > 0
	TKeyTrayStatusZero  = "tray_status_zero" // Explicit key for 0
	TKeyTrayHoliday     = "tray_holiday"     // Requires Name
	TKeyNotifRefreshed  = "notif_holidays_refreshed"
	TKeyNotifRefreshErr = "notif_err_holidays"
	TKeyNotifImported   = "notif_contacts_imported" // Requires Count
	TKeyNotifImportErr  = "notif_err_import"
	TKeyAlertTitle      = "alert_title"
	TKeyLblLanguage     = "lbl_language"
	TKeyHelpLanguage    = "help_language"
	TKeyLblPort         = "lbl_server_port"
	TKeyHelpPort        = "help_port"
	TKeyLblGeneral      = "lbl_general"
	TKeyLblCalendar     = "lbl_calendar"
	TKeyLblWeekStart    = "lbl_week_start"
	TKeyWeekSunday      = "week_sunday"
	TKeyWeekMonday      = "week_monday"
	TKeyLblGridPolicy   = "lbl_grid_policy"
	TKeyGridFixed       = "grid_fixed"
	TKeyGridFill        = "grid_fill"
	TKeyLblRepeatCount  = "lbl_repeat_count"
	TKeyHelpRepeatCount = "help_repeat_count"
	TKeyLblHolidays     = "lbl_holidays"
	TKeyLblOnline       = "lbl_holidays_online"
	TKeyLblURL          = "lbl_url"
	TKeyHelpURL         = "help_holiday_url"
	TKeyLblToken        = "lbl_token"
	TKeyBtnSave         = "btn_save"
	TKeyBtnCancel       = "btn_cancel"
	TKeyLblFooter       = "lbl_footer"
	TKeyErrPortReq      = "err_port_required"
	TKeyErrPortNum      = "err_port_number"
	TKeyErrPortRange    = "err_port_range"
	TKeyErrRepeatRange  = "err_repeat_range"
	TKeyFormatAlertBody = "format_alert_body" // Requires Title, Time
	TKeyBirthdayTitle   = "birthday_title"    // Requires Name
	TKeyTrayMonth       = "tray_month"        // Requires Month, Schedules, Holidays
	TKeyLblRefreshCron  = "lbl_refresh_cron"
	TKeyHelpRefreshCron = "help_refresh_cron"
	TKeyErrCron         = "err_cron"
)

// -----------------------------------------------------------------------------
// Default Values & Business Logic
// -----------------------------------------------------------------------------

const (
	DefaultPort        = "18081"
	DefaultLanguage    = "en"
	DefaultRefreshCron = "@daily"
	DefaultRepeatCount = 1
	DefaultHolidayURL  = "https://jongu.kr:19001/holiday"

	// Repeat bounds enforced by the recurrence expander.
	MinRepeatCount = 1
	MaxRepeatCount = 20

	// Grid layout.
	DaysPerWeek    = 7
	GridCellsFixed = 42

	WeekStartSunday = "sunday"
	WeekStartMonday = "monday"
	GridPolicyFixed = "fixed"
	GridPolicyFill  = "fill"

	// DefaultAlertTitle is used when no localizer is available.
	DefaultAlertTitle = "Schedule alert"

	// DefaultDuration is the schedule length suggested by the add flow.
	DefaultDuration = 1 * time.Hour
)

// -----------------------------------------------------------------------------
// Date & Time Formats
// -----------------------------------------------------------------------------

const (
	// DateFormatISO is the key format for holiday lookups and storage.
	DateFormatISO = "2006-01-02"

	// Layouts used for parsing vCard BDAY fields
	DateFormatFullBasic = "20060102"
	DateFormatRFC3339   = time.RFC3339
	DateFormatFullT     = "2006-01-02T15:04:05Z"
	DateFormatNoYearD   = "--01-02"
	DateFormatNoYearB   = "--0102"

	// TimeOfDayFormat is the wire form of a schedule time.
	TimeOfDayFormat = "%02d:%02d"
	TimeOfDayLayout = "15:04"

	// LunarLabelFormat renders "<month>.<day>".
	LunarLabelFormat = "%d.%d"

	// DefaultLeapYear is used to parse year-less dates such as --02-29.
	DefaultLeapYear = 2000
)

// -----------------------------------------------------------------------------
// Repeat Rule Codes
// -----------------------------------------------------------------------------

const (
	RepeatNone        = "none"
	RepeatWeekly      = "weekly"
	RepeatMonthly     = "monthly"
	RepeatYearlySolar = "yearly-solar"
	RepeatYearlyLunar = "yearly-lunar"
)

// -----------------------------------------------------------------------------
// Standards: iCalendar & vCard
// -----------------------------------------------------------------------------

const (
	// iCal Properties
	ICalVersion   = "2.0"
	ICalProdid    = "-//Go Lunar Calendar//Engine//EN"
	ICalCalName   = "Lunar Calendar"
	ICalMethod    = "PUBLISH"
	ICalScale     = "GREGORIAN"
	ICalComponent = "VALARM"
	ICalAction    = "DISPLAY"
	ICalDomain    = "golunarcal"

	// iCal/vCard Fields
	PropUID         = "UID"
	PropSummary     = "SUMMARY"
	PropDTStart     = "DTSTART"
	PropDTEnd       = "DTEND"
	PropDTStamp     = "DTSTAMP"
	PropRefresh     = "REFRESH-INTERVAL"
	PropAction      = "ACTION"
	PropDescription = "DESCRIPTION"
	PropTrigger     = "TRIGGER"
	PropCategories  = "CATEGORIES"
	PropVersion     = "VERSION"
	PropProdid      = "PRODID"
	PropXWRCalName  = "X-WR-CALNAME"
	PropCalScale    = "CALSCALE"
	PropMethod      = "METHOD"

	CategoryHoliday  = "HOLIDAY"
	FormatHolidayUID = "holiday-%s@%s"
	FormatEventUID   = "%s@%s"

	VCardBDAY = "BDAY"
	VCardFN   = "FN"

	DefaultICalRefresh = 1 * time.Hour

	// File Extensions
	ExtVCF   = ".vcf"
	ExtVCard = ".vcard"
)

// -----------------------------------------------------------------------------
// Network & Timeouts
// -----------------------------------------------------------------------------

const (
	HTTPTimeout         = 30 * time.Second
	ShutdownTimeout     = 5 * time.Second
	ServerReadTimeout   = 10 * time.Second
	ServerWriteTimeout  = 30 * time.Second
	ServerIdleTimeout   = 60 * time.Second
	RetryAfterSeconds   = "10"
	AllowedMethods      = "GET, HEAD"
	MaxHTTPResponseSize = 4 * 1024 * 1024 // 4MB of holiday JSON is already absurd
	SchemeHTTP          = "http"
	SchemeHTTPS         = "https"
	RouteRoot           = "/"
	RouteCalendar       = "/calendar.ics"
	AddrSeparator       = ":"
	BearerPrefix        = "Bearer "
)

// -----------------------------------------------------------------------------
// HTTP Headers & MIME Types
// -----------------------------------------------------------------------------

const (
	HeaderContentType     = "Content-Type"
	HeaderAccept          = "Accept"
	HeaderAuthorization   = "Authorization"
	HeaderCacheControl    = "Cache-Control"
	HeaderETag            = "ETag"
	HeaderLastModified    = "Last-Modified"
	HeaderRetryAfter      = "Retry-After"
	HeaderAllow           = "Allow"
	HeaderXContentType    = "X-Content-Type-Options"
	HeaderUserAgent       = "User-Agent"
	HeaderIfNoneMatch     = "If-None-Match"
	HeaderIfModifiedSince = "If-Modified-Since"

	MimeJSON            = "application/json"
	MimeTextCalendar    = "text/calendar; charset=utf-8"
	MimeNoSniff         = "nosniff"
	CacheControlPrivate = "private, no-cache"

	// FormatETag expects a string argument.
	FormatETag = `"%s"`
)

// -----------------------------------------------------------------------------
// Error Messages (Technical/Logs)
// -----------------------------------------------------------------------------

const (
	ErrInvalidConfig    = "invalid configuration"
	ErrNetwork          = "network failure"
	ErrServerStatus     = "server error"
	ErrDecode           = "decode failure"
	ErrInvalidCount     = "invalid repeat count"
	ErrDateConstruction = "date does not exist in calendar"
	ErrDateParse        = "unable to parse date"
	ErrTimeOfDay        = "invalid time of day"
	ErrRepeatRule       = "unknown repeat rule"
	ErrRecurrence       = "failed to expand repeat rule"
	ErrNotFound         = "schedule not found"
	ErrEmptyID          = "schedule id is empty"
	ErrDuplicateID      = "schedule id already exists"
	ErrScheduleDecode   = "failed to decode stored schedule"
	ErrStoreClosed      = "schedule store is closed"
	ErrCommit           = "failed to commit schedules"
	ErrStoreOpen        = "could not open schedule database"
	ErrHolidayPersist   = "failed to persist holiday cache"
	ErrHolidayCacheLoad = "failed to decode cached holidays"
	ErrStaticHolidays   = "failed to parse bundled holidays"
	ErrServerStartup    = "server startup failed"
	ErrServerShutdown   = "server shutdown failed"
	ErrPortRequired     = "server port is required"
	ErrInvalidURL       = "invalid URL structure"
	ErrProtocol         = "unsupported protocol scheme (http/https only)"
	ErrURLEmpty         = "holiday endpoint URL is empty"
	ErrNoSource         = "no holiday source configured"
	ErrRefreshBusy      = "holiday refresh already in flight"
	ErrVCardParse       = "failed to parse vCard stream"
	ErrICalEncode       = "failed to encode iCalendar data"
	ErrLogFile          = "failed to open log file"
	ErrCacheDir         = "could not determine user cache dir"
	ErrConfigDir        = "could not determine user config dir"
	ErrCreateDir        = "could not create app directory"
	ErrAppFailed        = "application failed unexpectedly"
	ErrStoreClose       = "failed to close schedule database"
	ErrWriteResp        = "failed to write response body"
	ErrLocalesAccess    = "failed to access embedded locales"
	ErrLocaleLoad       = "failed to load locale file"
	ErrTrayNotSupported = "system tray not supported on this platform/driver"
	ErrCronSpec         = "invalid refresh schedule"
	ErrFeedBuild        = "failed to build calendar feed"
	ErrAlertArm         = "failed to arm alert"
	ErrKeyringSave      = "failed to save holiday token to keyring"
)

// -----------------------------------------------------------------------------
// HTTP Server Responses
// -----------------------------------------------------------------------------

const (
	HTTPMsgInitializing = "Calendar initializing, please try again shortly."
	HTTPMsgMethodNotAll = "Method Not Allowed"
)

// -----------------------------------------------------------------------------
// Fallbacks & Log Messages
// -----------------------------------------------------------------------------

const (
	FallbackTrayError     = "Go Lunar Calendar: Holiday Error"
	FallbackTrayDefault   = "Go Lunar Calendar (%d today)"
	FallbackTrayLabel     = "Go Lunar Calendar"
	FallbackName          = "Unknown"
	FallbackAlertBody     = "%s at %s"
	FallbackBirthdayTitle = "Birthday: %s"

	// TraySeparator joins the holiday name and the schedule count in the tray.
	TraySeparator = " · "

	// StubVCalendar is the minimal valid iCalendar object used when there is nothing to publish.
	StubVCalendar = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:" + ICalProdid + "\r\nEND:VCALENDAR\r\n"

	TitleStartupError = "Startup Error"

	MsgPortBusy          = "Port %s is busy or unavailable."
	MsgWorkerStart       = "Background worker started"
	MsgWorkerStop        = "Worker stopping due to context cancellation"
	MsgAppStop           = "Application stopped gracefully"
	MsgCtxCancel         = "Context cancelled, shutting down UI"
	MsgAppStarting       = "Starting application"
	MsgServerListen      = "HTTP server listening"
	MsgServerStop        = "Shutting down HTTP server..."
	MsgFeedUpdated       = "Calendar feed updated"
	MsgLocaleSkip        = "Skipping non-locale file"
	MsgLocaleLoaded      = "Locale loaded successfully"
	MsgTransMissing      = "Missing translation key"
	MsgTokenFail         = "Holiday token retrieval failed (might be empty)"
	MsgLogWarning        = "Warning: %s at %s: %v\n"
	MsgHolidayLoaded     = "Holidays loaded from cache"
	MsgHolidayStale      = "Holiday cache is stale, refreshing"
	MsgHolidayBusy       = "Holiday refresh already in flight"
	MsgHolidayRefreshed  = "Holidays refreshed"
	MsgHolidayFailed     = "Holiday refresh failed, keeping cached data"
	MsgOccurrenceSkip    = "Skipping occurrence that does not exist in target year"
	MsgSkippedCard       = "Skipping malformed vCard"
	MsgSkippedDate       = "Skipping invalid date format"
	MsgImportDone        = "Contacts imported"
	MsgScheduleSaved     = "Schedules committed"
	MsgScheduleDeleted   = "Schedule deleted"
	MsgAlertArmed        = "Alert armed"
	MsgAlertCancelled    = "Alert cancelled"
	MsgAlertPast         = "Alert instant already passed, not arming"
	MsgAlertFired        = "Alert fired"
	MsgUpdateSchedule    = "Holiday refresh schedule updated"
	MsgRefreshReq        = "Holiday refresh requested"
	MsgRefreshSkipFailed = "Scheduled holiday refresh skipped after a failure this year"
	MsgImportReq         = "Contact import requested"
	MsgSettingsOpen      = "Opening settings window"
	MsgSettingsFocus     = "Settings window already open, requesting focus"
	MsgSettingsSave      = "Saving preferences"
	MsgStoreOpened       = "Schedule database opened"
)

// -----------------------------------------------------------------------------
// Structured Logging Keys (slog)
// -----------------------------------------------------------------------------

const (
	LogKeyComponent = "component"
	LogKeyError     = "error"
	LogKeyURL       = "url"
	LogKeyStatus    = "status_code"
	LogKeyFile      = "file"
	LogKeyLang      = "lang"
	LogKeyKey       = "key"
	LogKeyPort      = "port"
	LogKeyInterval  = "interval"
	LogKeyYear      = "year"
	LogKeyLastYear  = "last_year"
	LogKeyCount     = "count"
	LogKeyID        = "schedule_id"
	LogKeyRule      = "rule"
	LogKeyAt        = "at"
	LogKeyName      = "name"
	LogKeyValue     = "value"
	LogKeySizeBytes = "size_bytes"
	LogKeyETag      = "etag"
	LogKeyManual    = "manual"
	LogKeyPath      = "path"

	// Startup Info Keys
	LogKeyBuild   = "build"
	LogKeyApp     = "app"
	LogKeyVersion = "version"
	LogKeyCommit  = "commit"
	LogKeyGoVer   = "go_version"
	LogKeyEnv     = "env"
	LogKeyOS      = "os"
	LogKeyArch    = "arch"
	LogKeyPID     = "pid"
)

// -----------------------------------------------------------------------------
// Log Components
// -----------------------------------------------------------------------------

const (
	CompUI      = "ui"
	CompUISet   = "ui_settings"
	CompEngine  = "engine"
	CompPlanner = "planner"
	CompHoliday = "holiday"
	CompFetcher = "fetcher"
	CompStore   = "store"
	CompNotify  = "notify"
	CompServer  = "server"
	CompWorker  = "worker"
	CompMain    = "main"
	CompI18n    = "i18n"
)

// -----------------------------------------------------------------------------
// Ports & Layout
// -----------------------------------------------------------------------------

const (
	MinPort             = 1
	MaxPort             = 65535
	LayoutColumnsDouble = 2
)
