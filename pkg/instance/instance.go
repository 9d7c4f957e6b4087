package instance

import "github.com/biznespilot/payme-merchant/pkg/env"

// GetID returns a stable identifier for this process in logs: the platform
// dyno name, an explicit WORKER_ID, the container hostname, or "local".
func GetID() string {
	return env.First("local", "DYNO", "WORKER_ID", "HOSTNAME")
}
