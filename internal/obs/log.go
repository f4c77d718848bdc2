package obs

import (
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	loggerOnce sync.Once
	logger     *logrus.Logger
)

// Logger returns the shared structured logger used across the service.
func Logger() *logrus.Logger {
	loggerOnce.Do(func() {
		logger = logrus.New()
		logger.SetOutput(os.Stdout)
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "ts",
			},
		})
		logger.SetLevel(logrus.InfoLevel)
	})
	return logger
}

// SetLevel adjusts verbosity of the shared logger. Unknown names keep the current level.
func SetLevel(name string) {
	lvl, err := logrus.ParseLevel(name)
	if err != nil {
		Logger().WithField("level", name).Warn("unknown log level, keeping current")
		return
	}
	Logger().SetLevel(lvl)
}

// LogRequest emits a structured entry with common HTTP fields.
func LogRequest(fields map[string]any) {
	Logger().WithFields(logrus.Fields(fields)).Info("request_complete")
}
