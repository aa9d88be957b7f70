package gantt

import (
	"os"

	"github.com/sirupsen/logrus"
)

var stdLogger = logrus.StandardLogger()

func init() {
	level, err := logrus.ParseLevel(getenv("LOG_LEVEL"))
	if err == nil {
		stdLogger.SetLevel(level)
	}
}

func getenv(key string) string {
	return os.Getenv(key)
}

type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
}

func SetLogger(l *logrus.Logger) {
	stdLogger = l
}

type problemLogger struct {
	Problem string
	RunID   RunID
	Phase   string
	Backend string
}

func (l problemLogger) WithProblem(name string) problemLogger {
	l.Problem = name
	return l
}

func (l problemLogger) WithRunID(id RunID) problemLogger {
	l.RunID = id
	return l
}

func (l problemLogger) WithPhase(phase string) problemLogger {
	l.Phase = phase
	return l
}

func (l problemLogger) WithBackend(name string) problemLogger {
	l.Backend = name
	return l
}

func (l problemLogger) Logger() Logger {
	fields := logrus.Fields{"channel": "problem", "problem": l.Problem}
	if l.RunID.IsValid() {
		fields["channel"] = "solve"
		fields["run"] = l.RunID.String()
	}
	if l.Phase != "" {
		fields["phase"] = l.Phase
	}
	if l.Backend != "" {
		fields["backend"] = l.Backend
	}
	return stdLogger.WithFields(fields)
}
