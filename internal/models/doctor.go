// internal/models/doctor.go
package models

type Doctor struct {
	Name  string `json:"name" yaml:"name"`
	Image string `json:"image" yaml:"image"`
}
