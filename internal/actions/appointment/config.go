// internal/actions/appointment/config.go
package appointment

import (
	"time"

	"carepulse/internal/common/config"
)

const defaultRecentLimit = 100

type Config struct {
	DatabaseID             string
	UsersCollection        string
	PatientsCollection     string
	AppointmentsCollection string
	Timeout                time.Duration
	RecentLimit            int
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		DatabaseID:             cfg.Store.DatabaseID,
		UsersCollection:        cfg.Store.Collections.Users,
		PatientsCollection:     cfg.Store.Collections.Patients,
		AppointmentsCollection: cfg.Store.Collections.Appointments,
		Timeout:                config.GetDuration(cfg.Store.Timeout),
		RecentLimit:            defaultRecentLimit,
	}
}
