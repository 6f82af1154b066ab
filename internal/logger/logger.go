// Package logger provides the structured logger shared by every package in
// the collector, so WAL recovery, sink flushes, and CLI commands all log
// through the same sink and level.
package logger

import (
	"github.com/willibrandon/mtlog"
	"github.com/willibrandon/mtlog/core"
)

// Log is the process-wide structured logger.
var Log core.Logger

func init() {
	Log = mtlog.New(
		mtlog.WithConsole(),
		mtlog.WithMinimumLevel(core.InformationLevel),
	)
}
