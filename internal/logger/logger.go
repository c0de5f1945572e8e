// Package logger builds the process logger.
//
// Logs always go to stderr because stdout carries the control protocol. When a
// log file is configured, entries are also written there and rotated.
package logger

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configure New.
type Options struct {
	Level string
	// File enables a rotated log file alongside stderr.
	File string
	// Stderr overrides the console writer (tests).
	Stderr io.Writer
}

// New returns a configured logger.
func New(opts Options) (*logrus.Logger, error) {
	level := logrus.InfoLevel
	if opts.Level != "" {
		l, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = l
	}

	console := opts.Stderr
	if console == nil {
		console = os.Stderr
	}

	log := logrus.New()
	log.SetLevel(level)
	log.SetFormatter(&formatter.Formatter{
		NoColors:        !isTerminal(console) || opts.File != "",
		TimestampFormat: "2006-01-02 15:04:05.000",
		HideKeys:        false,
		CallerFirst:     true,
		FieldsOrder:     []string{"session", "filter", "device", "detector", "worker"},
		CustomCallerFormatter: func(f *runtime.Frame) string {
			s := strings.Split(f.Function, ".")
			return fmt.Sprintf(" [%s:%d][%s()]", path.Base(f.File), f.Line, s[len(s)-1])
		},
	})
	log.SetReportCaller(level >= logrus.DebugLevel)

	writers := []io.Writer{console}
	if opts.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			LocalTime:  true,
			Compress:   true,
			MaxSize:    50,
			MaxAge:     7,
			MaxBackups: 3,
		})
	}
	log.SetOutput(io.MultiWriter(writers...))
	return log, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
