// Package logger routes structured log events to the HAL line sink.
package logger

import (
	"bytes"
	"io"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"sparkrt/hal"
)

// lineWriter hands each zerolog event to the sink as one line.
type lineWriter struct {
	sink hal.Logger
}

func (w lineWriter) Write(p []byte) (int, error) {
	if w.sink == nil {
		return len(p), nil
	}
	w.sink.WriteLineBytes(bytes.TrimRight(p, "\r\n"))
	return len(p), nil
}

// Writer returns an io.Writer that forwards whole lines to sink.
func Writer(sink hal.Logger) io.Writer {
	return lineWriter{sink: sink}
}

// New returns a JSON logger writing to sink.
func New(sink hal.Logger, level zerolog.Level) zerolog.Logger {
	return zerolog.New(lineWriter{sink: sink}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// Console returns a human readable logger for serial consoles and terminals.
func Console(sink hal.Logger, level zerolog.Level) zerolog.Logger {
	w := zerolog.ConsoleWriter{
		Out:        lineWriter{sink: sink},
		NoColor:    true,
		TimeFormat: "15:04:05.000",
	}
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// rateSampler passes events while the token bucket allows.
type rateSampler struct {
	lim *rate.Limiter
}

func (s rateSampler) Sample(zerolog.Level) bool {
	return s.lim.Allow()
}

// Limited returns l restricted to burst events followed by one event per
// every. It is meant for per-switch and per-tick tracing.
func Limited(l zerolog.Logger, every time.Duration, burst int) zerolog.Logger {
	if every <= 0 {
		return l
	}
	return l.Sample(rateSampler{lim: rate.NewLimiter(rate.Every(every), burst)})
}
