package util

import (
	"context"
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	memcontext "github.com/san11tools/memscope/pkg/util/context"
)

// Logger is a nop global logger
var Logger = log.NewNopLogger()

// NewLogger returns a leveled logger writing logfmt, or JSON when format is
// "json", to w. It also becomes the global Logger.
func NewLogger(w io.Writer, format, lvl string) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	if format == "json" {
		logger = log.NewJSONLogger(log.NewSyncWriter(w))
	}
	logger = level.NewFilter(logger, LevelFilter(lvl))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
	Logger = logger
	return logger
}

func LevelFilter(l string) level.Option {
	switch l {
	case "debug":
		return level.AllowDebug()
	case "info":
		return level.AllowInfo()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	default:
		return level.AllowAll()
	}
}

// LoggerWithContext returns the context logger, or l when ctx carries none,
// annotated with the request ID if there is one.
//
// e.g.
//
//	# level=warn request_id=5c1e.. msg="unknown version" version=v9
func LoggerWithContext(ctx context.Context, l log.Logger) log.Logger {
	id, ok := memcontext.RequestID(ctx)
	if !ok {
		return l
	}
	return log.With(l, "request_id", id)
}
