// Package rtlog carries the ambient structured-logging idiom used
// throughout this module: a nil-safe *zerolog.Logger field threaded
// through every component for operational events ("worklist converged
// after N passes", "external call table: path not found").
//
// Every package that accepts a *zerolog.Logger treats a nil logger as
// "logging disabled": see Nop and Or below.
package rtlog

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	nopOnce sync.Once
	nop     zerolog.Logger
)

// New builds a logger writing structured (non-console) JSON lines to
// w, at the given level. The cmd/lotusaa driver is the only caller
// that needs this; every other package only ever receives a
// *zerolog.Logger as a parameter.
func New(w io.Writer, level zerolog.Level) *zerolog.Logger {
	l := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &l
}

// Default returns a human-readable console logger writing to stderr at
// InfoLevel, the shape cmd/lotusaa installs unless told otherwise.
func Default() *zerolog.Logger {
	l := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(zerolog.InfoLevel).
		With().Timestamp().Logger()
	return &l
}

// Nop returns a disabled logger: every event it is given is discarded.
// Components that are handed a nil *zerolog.Logger should prefer this
// over a raw nil so that call sites never need a nil guard.
func Nop() *zerolog.Logger {
	nopOnce.Do(func() {
		nop = zerolog.Nop()
	})
	return &nop
}

// Or returns l if non-nil, else Nop(). Every package in this module
// that accepts an optional *zerolog.Logger calls this once at
// construction so the rest of its code can log unconditionally.
func Or(l *zerolog.Logger) *zerolog.Logger {
	if l == nil {
		return Nop()
	}
	return l
}
