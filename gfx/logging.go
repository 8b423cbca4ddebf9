package gfx

import (
	"context"

	"golang.org/x/exp/slog"

	"github.com/vkngwrapper/rhi/driver"
)

// nopHandler drops every record. It backs the logger used when Config.Logger is nil.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var nopLogger = slog.New(nopHandler{})

func debugLevel(severity driver.DebugSeverity) slog.Level {
	switch severity {
	case driver.DebugSeverityError:
		return slog.LevelError
	case driver.DebugSeverityWarning:
		return slog.LevelWarn
	case driver.DebugSeverityInfo:
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

// debugSeverityFor picks the least severe driver message the logger would print, so the
// driver does not produce verbose messages nobody reads.
func debugSeverityFor(logger *slog.Logger) driver.DebugSeverity {
	ctx := context.Background()
	switch {
	case logger.Enabled(ctx, slog.LevelDebug):
		return driver.DebugSeverityVerbose
	case logger.Enabled(ctx, slog.LevelInfo):
		return driver.DebugSeverityInfo
	case logger.Enabled(ctx, slog.LevelWarn):
		return driver.DebugSeverityWarning
	}
	return driver.DebugSeverityError
}

func extentAttr(key string, extent driver.Extent) slog.Attr {
	return slog.Group(key, slog.Int("width", extent.Width), slog.Int("height", extent.Height))
}
