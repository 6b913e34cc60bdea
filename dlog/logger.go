// Copyright 2024 The dscan Authors
// This file is part of the dscan library.
//
// The dscan library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The dscan library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the dscan library. If not, see <http://www.gnu.org/licenses/>.

// Package dlog provides the module-scoped logger used across dscan,
// following the same NewModuleLogger convention as the node this project
// was cloned from, backed by zap instead of an in-house logger.
package dlog

import (
	"os"
	"sync"

	"go.uber.org/zap"
)

// Logger is a contextual, structured logger. Its Infow/Warnw/Errorw methods
// take a message followed by alternating key/value pairs, matching the
// key-value logging idiom used throughout this codebase's ancestry.
type Logger = zap.SugaredLogger

var (
	mu       sync.Mutex
	base     *zap.Logger
	verbosity int
)

// SetVerbosity maps the CLI -v flag (0..2) onto a zap level, mirroring
// initialize_logger in the Rust original: 0 => info, 1 => debug, 2+ => debug
// (zap has no separate "trace" level).
func SetVerbosity(v int) {
	mu.Lock()
	defer mu.Unlock()
	verbosity = v
	base = nil // force rebuild with new level on next NewModuleLogger call
}

func level() zap.AtomicLevel {
	switch {
	case verbosity <= 0:
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	default:
		return zap.NewAtomicLevelAt(zap.DebugLevel)
	}
}

func ensureBase() *zap.Logger {
	if base != nil {
		return base
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = level()
	cfg.OutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "ts"
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Logging must never be the reason the process fails to start;
		// fall back to a bare logger writing to stderr.
		l = zap.NewExample()
		os.Stderr.WriteString("dlog: falling back to example logger: " + err.Error() + "\n")
	}
	base = l
	return base
}

// NewModuleLogger returns a logger tagged with the given module name, the
// way every package in this tree obtains its package-level `logger` var.
func NewModuleLogger(module string) *Logger {
	mu.Lock()
	defer mu.Unlock()
	return ensureBase().Sugar().With("module", module)
}

// Sync flushes any buffered log entries; call it once from main before
// exit.
func Sync() {
	mu.Lock()
	defer mu.Unlock()
	if base != nil {
		_ = base.Sync()
	}
}
