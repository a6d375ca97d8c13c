// internal/actions/patient/config.go
package patient

import (
	"time"

	"carepulse/internal/common/config"
)

type Config struct {
	DatabaseID         string
	UsersCollection    string
	PatientsCollection string
	Timeout            time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		DatabaseID:         cfg.Store.DatabaseID,
		UsersCollection:    cfg.Store.Collections.Users,
		PatientsCollection: cfg.Store.Collections.Patients,
		Timeout:            config.GetDuration(cfg.Store.Timeout),
	}
}
