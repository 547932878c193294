package worker

import (
	"io"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/service"
)

// StartNotificationWorker subscribes the notification fan-out to the
// dispatcher. The returned stop function flushes and closes the exporter.
func StartNotificationWorker(notificationService *service.NotificationService, exporter io.Closer, logger *zap.Logger) (stop func()) {
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	return func() {
		if exporter == nil {
			return
		}
		if err := exporter.Close(); err != nil && logger != nil {
			logger.Warn("closing event exporter", zap.Error(err))
		}
	}
}
