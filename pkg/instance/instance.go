package instance

import (
	"os"

	"github.com/nursingcollective/cartengine/pkg/env"
)

const defaultID = "local"

// GetID identifies this gateway process in logs. An explicit
// NCCART_INSTANCE_ID wins over the platform dyno name and the host name.
func GetID() string {
	if id := env.First("NCCART_INSTANCE_ID", "DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return defaultID
}
