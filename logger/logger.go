package logger

import (
	"github.com/sirupsen/logrus"
)

// Logger is a global variable that represents the logger instance.
var Logger *logrus.Logger

// Init initializes the logger by creating a new instance of logrus.Logger.
// The package-level standard logger gets the same formatter and level, so
// code using logrus directly stays consistent.
func Init(level string) {
	formatter := &logrus.TextFormatter{
		FullTimestamp: true,
	}

	Logger = logrus.New()
	Logger.SetFormatter(formatter)
	logrus.SetFormatter(formatter)

	if parsed, err := logrus.ParseLevel(level); err == nil {
		Logger.SetLevel(parsed)
		logrus.SetLevel(parsed)
	}
}
