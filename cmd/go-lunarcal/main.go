package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"fyne.io/fyne/v2/app"
	"github.com/tartampluch/go-lunarcal/internal/calendar"
	"github.com/tartampluch/go-lunarcal/internal/config"
	"github.com/tartampluch/go-lunarcal/internal/engine"
	"github.com/tartampluch/go-lunarcal/internal/holiday"
	"github.com/tartampluch/go-lunarcal/internal/notify"
	"github.com/tartampluch/go-lunarcal/internal/server"
	"github.com/tartampluch/go-lunarcal/internal/store"
	"github.com/tartampluch/go-lunarcal/internal/ui"
)

// main delegates to runMain so that deferred calls run before os.Exit.
func main() {
	os.Exit(runMain())
}

// runMain manages the application lifecycle, argument parsing, and exit codes.
func runMain() int {
	showVersion := flag.Bool(config.FlagVersion, false, config.FlagDescVersion)
	debugMode := flag.Bool(config.FlagDebug, false, config.FlagDescDebug)
	flag.Parse()

	if *showVersion {
		printVersion()
		return config.ExitCodeSuccess
	}

	logCloser := setupLogging(*debugMode)
	if logCloser != nil {
		defer func() {
			_ = logCloser.Close()
		}()
	}

	// Root context cancels on SIGINT (Ctrl+C) or SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logStartupInfo()

	if err := run(ctx); err != nil {
		slog.Error(config.ErrAppFailed,
			config.LogKeyComponent, config.CompMain,
			config.LogKeyError, err,
		)
		return config.ExitCodeError
	}

	slog.Info(config.MsgAppStop, config.LogKeyComponent, config.CompMain)
	return config.ExitCodeSuccess
}

// run opens the schedule database, wires the services into the shell and
// blocks until the UI loop ends.
func run(ctx context.Context) error {
	a := app.NewWithID(config.AppID)
	prefs := a.Preferences()
	prefs.SetString(config.PrefLastRun, config.Version)

	dbPath, err := getDataFilePath(config.DBFileName)
	if err != nil {
		return err
	}
	schedules, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := schedules.Close(); err != nil {
			slog.Error(config.ErrStoreClose,
				config.LogKeyComponent, config.CompMain,
				config.LogKeyError, err)
		}
	}()
	slog.Info(config.MsgStoreOpened,
		config.LogKeyComponent, config.CompMain,
		config.LogKeyPath, dbPath)

	clock := calendar.RealClock{}
	holidays := holiday.NewCache(prefs, ui.HolidaySource(prefs), clock)
	alerts := notify.NewScheduler(nil, clock)
	planner := &engine.Planner{
		Store:    schedules,
		Alerts:   alerts,
		Clock:    clock,
		Location: time.Local,
	}
	srv := server.NewFeedServer(prefs.StringWithFallback(config.PrefServerPort, config.DefaultPort))

	gui := ui.NewLunarCalApp(a, ctx, planner, holidays, alerts, srv)

	go func() {
		<-ctx.Done()
		slog.Info(config.MsgCtxCancel, config.LogKeyComponent, config.CompMain)
		a.Quit()
	}()

	// Blocks until the application quits.
	gui.Run()

	return nil
}

func printVersion() {
	fmt.Printf(config.MsgVersionOutput,
		config.AppName,
		config.Version,
		config.Commit,
		config.Date,
		runtime.GOOS,
		runtime.GOARCH,
	)
}

// logStartupInfo logs environment details useful for debugging.
func logStartupInfo() {
	slog.Info(config.MsgAppStarting,
		config.LogKeyComponent, config.CompMain,
		slog.Group(config.LogKeyBuild,
			slog.String(config.LogKeyApp, config.AppName),
			slog.String(config.LogKeyVersion, config.Version),
			slog.String(config.LogKeyCommit, config.Commit),
			slog.String(config.LogKeyGoVer, runtime.Version()),
		),
		slog.Group(config.LogKeyEnv,
			slog.String(config.LogKeyOS, runtime.GOOS),
			slog.String(config.LogKeyArch, runtime.GOARCH),
			slog.Int(config.LogKeyPID, os.Getpid()),
		),
	)
}

// setupLogging configures the default slog logger: JSON to stdout and to a
// log file in the user cache directory, truncated on every start.
func setupLogging(debugMode bool) io.Closer {
	writers := []io.Writer{os.Stdout}
	var logFile *os.File

	if logPath, err := getLogFilePath(); err == nil {
		f, err := os.OpenFile(logPath, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, config.FilePermUserRW)
		if err == nil {
			writers = append(writers, f)
			logFile = f
		} else {
			fmt.Fprintf(os.Stderr, config.MsgLogWarning, config.ErrLogFile, logPath, err)
		}
	}

	level := slog.LevelInfo
	if debugMode {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: debugMode,
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(io.MultiWriter(writers...), opts)))

	if logFile == nil {
		return nil
	}
	return logFile
}

// getLogFilePath determines the platform-specific cache directory for logs.
func getLogFilePath() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCacheDir, err)
	}
	return appFile(cacheDir, config.LogFileName)
}

// getDataFilePath places name in the per-user config directory, which
// survives cache cleanups.
func getDataFilePath(name string) (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrConfigDir, err)
	}
	return appFile(configDir, name)
}

func appFile(base, name string) (string, error) {
	appDir := filepath.Join(base, config.AppID)
	if err := os.MkdirAll(appDir, config.DirPermUserRWX); err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCreateDir, err)
	}
	return filepath.Join(appDir, name), nil
}
