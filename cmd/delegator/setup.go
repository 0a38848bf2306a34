package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	delegation "github.com/armatrix/agent-delegation-go"
	"github.com/armatrix/agent-delegation-go/catalog"
	"github.com/armatrix/agent-delegation-go/internal/config"
)

// settingsPaths returns the settings files in precedence order.
func settingsPaths() ([]string, error) {
	dir := projectDir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = wd
	}
	return append(config.DefaultSettingsPaths(dir), configFiles...), nil
}

func loadSettings() ([]string, *config.Settings, error) {
	paths, err := settingsPaths()
	if err != nil {
		return nil, nil, err
	}
	s, err := config.LoadSettings(paths...)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		s.Log.Level = logLevel
	}
	return paths, s, nil
}

func newLogger(w io.Writer, s config.LogSettings) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(s.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func newEngine(paths []string, logger *slog.Logger, opts ...delegation.EngineOption) (*delegation.Engine, error) {
	opts = append([]delegation.EngineOption{
		delegation.WithSettingSources(paths...),
		delegation.WithLogger(logger),
	}, opts...)
	e, err := delegation.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	return e, nil
}

// registerCatalog loads every entry under dirs into e.
func registerCatalog(ctx context.Context, e *delegation.Engine, dirs []string) (int, error) {
	entries, err := catalog.Load(dirs...)
	if err != nil {
		return 0, err
	}
	for i := range entries {
		if err := e.RegisterWorker(ctx, entries[i].Definition()); err != nil {
			return i, fmt.Errorf("%s: %w", entries[i].Path, err)
		}
	}
	return len(entries), nil
}

func catalogDirs(flagDirs []string, s *config.Settings) []string {
	if len(flagDirs) > 0 {
		return flagDirs
	}
	return s.CatalogDirs
}
