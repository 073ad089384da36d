package module

import "discoveryd/internal/services/discovery/domain"

// Ports exported by the discovery module
type Ports struct {
	Scheduler domain.SchedulerPort
	Staleness domain.StalenessPort
}
