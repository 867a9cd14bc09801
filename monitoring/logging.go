package monitoring

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// NewBaseLogger returns a JSON logger writing to w at the named level
// ("debug", "info", ...).
func NewBaseLogger(w io.Writer, level string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("monitoring: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "timestamp",
			logrus.FieldKeyMsg:  "message",
		},
	})
	return logger, nil
}

// NewLogger returns the standard logger tagged with component.
func NewLogger(component string) logrus.FieldLogger {
	return WithComponent(logrus.StandardLogger(), component)
}

// WithComponent tags logger with component. A nil logger discards
// everything.
func WithComponent(logger logrus.FieldLogger, component string) logrus.FieldLogger {
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}
	return logger.WithField("component", component)
}
