// README: Optional New Relic application; nil when disabled or not configured.
package infra

import (
	"log/slog"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
)

func NewNewRelic(enabled bool, appName, licenseKey string, log *slog.Logger) *newrelic.Application {
	if !enabled || licenseKey == "" {
		return nil
	}
	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(appName),
		newrelic.ConfigLicense(licenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
	)
	if err != nil {
		log.Warn("new relic disabled", "error", err)
		return nil
	}
	if err := app.WaitForConnection(10 * time.Second); err != nil {
		log.Warn("new relic connection timeout", "error", err)
	}
	return app
}
