package utils

import (
	"github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
)

// LogError records an application error with structured fields and
// forwards it to Sentry when a DSN is configured.
func LogError(logger *log.Logger, err error, message string, fields log.Fields) {
	if fields == nil {
		fields = log.Fields{}
	}
	fields["error"] = err
	logger.WithFields(fields).Error(message)

	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range fields {
			scope.SetExtra(k, v)
		}
		scope.SetTag("message", message)
		sentry.CaptureException(err)
	})
}

// LogEvent records a notable application event as a breadcrumb.
func LogEvent(logger *log.Logger, message string, fields log.Fields) {
	logger.WithFields(fields).Info(message)

	data := map[string]interface{}{}
	for k, v := range fields {
		data[k] = v
	}
	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Category: "app",
		Message:  message,
		Data:     data,
		Level:    sentry.LevelInfo,
	})
}
