package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

const (
	TIMESTAMP_FORMAT = "2006-01-02 15:04:05"
	CONTEXT_FIELD    = "Context"
)

// Logrus hands out loggers that share one level and output.
type Logrus struct {
	level  logrus.Level
	output io.Writer
}

// NewLogrus falls back to the info level when level cannot be parsed.
func NewLogrus(level string, output io.Writer) *Logrus {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}

	return &Logrus{level: parsed, output: output}
}

func (l *Logrus) Level() logrus.Level {
	return l.level
}

// Get returns a logger tagged with the component it logs for.
func (l *Logrus) Get(context string) *logrus.Entry {
	log := logrus.New()
	log.SetLevel(l.level)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: TIMESTAMP_FORMAT,
	})
	log.SetOutput(l.output)

	return log.WithField(CONTEXT_FIELD, context)
}
