package logrus

import (
	"io"
	"os"

	"github.com/lukasz-zimnoch/sanad/trading"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type wrapper struct {
	*logrus.Entry
}

func (w *wrapper) WithField(key string, value interface{}) trading.Logger {
	return &wrapper{w.Entry.WithField(key, value)}
}

func (w *wrapper) WithFields(fields map[string]interface{}) trading.Logger {
	return &wrapper{w.Entry.WithFields(fields)}
}

// FileOutput configures a rotating log file written next to stdout.
// An empty Path disables it.
type FileOutput struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

func ConfigureStandardLogger(
	format, level string,
	file FileOutput,
) trading.Logger {
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.Fatalf("could not parse log level: [%v]", err)
	}

	var output io.Writer = os.Stdout
	if len(file.Path) > 0 {
		output = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   file.Path,
			MaxSize:    file.MaxSizeMB,
			MaxBackups: file.MaxBackups,
			MaxAge:     file.MaxAgeDays,
			Compress:   file.Compress,
		})
	}

	configure(logrus.StandardLogger(), format, logLevel, output)

	return &wrapper{
		logrus.StandardLogger().WithFields(map[string]interface{}{}),
	}
}

// NewLogger returns a logger independent of the standard one, writing to
// the given output.
func NewLogger(output io.Writer, format, level string) (trading.Logger, error) {
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	configure(logger, format, logLevel, output)

	return &wrapper{logger.WithFields(map[string]interface{}{})}, nil
}

// Discard is a logger dropping every entry.
func Discard() trading.Logger {
	logger, _ := NewLogger(io.Discard, "text", "panic")
	return logger
}

func configure(
	logger *logrus.Logger,
	format string,
	level logrus.Level,
	output io.Writer,
) {
	fieldMap := logrus.FieldMap{
		logrus.FieldKeyLevel: "severity",
		logrus.FieldKeyMsg:   "message",
	}

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			FieldMap: fieldMap,
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			FieldMap:      fieldMap,
		})
	}

	logger.SetLevel(level)
	logger.SetOutput(output)
}
