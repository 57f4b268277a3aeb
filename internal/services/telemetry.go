package services

import (
	"docstack-api/internal/logger"

	"github.com/posthog/posthog-go"
)

// Telemetry captures product analytics events. It is constructed once at
// process start, injected where needed, and closed at shutdown.
type Telemetry interface {
	Capture(distinctID, event string, properties map[string]interface{})
	Close()
}

type posthogTelemetry struct {
	client posthog.Client
}

// NewPostHogTelemetry returns a PostHog-backed Telemetry, or a no-op one
// when no API key is configured.
func NewPostHogTelemetry(apiKey, endpoint string) Telemetry {
	if apiKey == "" {
		return noopTelemetry{}
	}

	client, err := posthog.NewWithConfig(apiKey, posthog.Config{Endpoint: endpoint})
	if err != nil {
		logger.Logger.WithField("error", err).Warn("Failed to initialize PostHog client, telemetry disabled")
		return noopTelemetry{}
	}

	return &posthogTelemetry{client: client}
}

func (t *posthogTelemetry) Capture(distinctID, event string, properties map[string]interface{}) {
	props := posthog.NewProperties()
	for k, v := range properties {
		props.Set(k, v)
	}

	if err := t.client.Enqueue(posthog.Capture{
		DistinctId: distinctID,
		Event:      event,
		Properties: props,
	}); err != nil {
		logger.Logger.WithField("error", err).Debug("Failed to enqueue telemetry event")
	}
}

func (t *posthogTelemetry) Close() {
	if err := t.client.Close(); err != nil {
		logger.Logger.WithField("error", err).Debug("Failed to flush telemetry client")
	}
}

type noopTelemetry struct{}

func (noopTelemetry) Capture(string, string, map[string]interface{}) {}
func (noopTelemetry) Close()                                        {}
