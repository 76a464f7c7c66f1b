package main

import (
	"io"
	"os"

	"github.com/codahale/kdr/pkg/kdr"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// newLogger returns a logger writing to w. Output is human-readable if console is set or w is a
// terminal, and JSON otherwise.
func newLogger(w io.Writer, console bool) zerolog.Logger {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		console = true
	}

	if console {
		w = zerolog.ConsoleWriter{Out: w}
	}

	return zerolog.New(w).With().Timestamp().Logger()
}

// reporter sends boot sequence reports to a logger.
type reporter struct {
	log zerolog.Logger
}

func (r reporter) Report(msg string) {
	r.log.Info().Msg(msg)
}

var _ kdr.Reporter = reporter{}
