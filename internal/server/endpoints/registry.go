package endpoints

import (
	"github.com/jackzampolin/storyforge/internal/api"
)

// All returns all endpoint instances.
func All() []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&StatusEndpoint{},

		// Batch endpoints
		&StartBatchEndpoint{},
		&ListBatchesEndpoint{},
		&GetBatchEndpoint{},
		&StopBatchEndpoint{},

		// Prometheus
		&MetricsEndpoint{},
	}
}
