// Package catalog holds the fixed option lists the forms offer: doctors,
// genders and identification document types.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"carepulse/internal/forms/field"
	"carepulse/internal/models"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type Catalog struct {
	Doctors             []models.Doctor `yaml:"doctors"`
	Genders             []string        `yaml:"genders"`
	IdentificationTypes []string        `yaml:"identificationTypes"`
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog file, or the built-in one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(c.Doctors) == 0 {
		return nil, errors.New("catalog lists no doctors")
	}
	for i, d := range c.Doctors {
		if d.Name == "" {
			return nil, fmt.Errorf("catalog doctor %d has no name", i)
		}
	}
	return &c, nil
}

func (c *Catalog) Doctor(name string) (models.Doctor, bool) {
	for _, d := range c.Doctors {
		if d.Name == name {
			return d, true
		}
	}
	return models.Doctor{}, false
}

func (c *Catalog) DoctorOptions() []field.Option {
	opts := make([]field.Option, len(c.Doctors))
	for i, d := range c.Doctors {
		opts[i] = field.Option{Value: d.Name, Label: d.Name, Image: d.Image}
	}
	return opts
}

func (c *Catalog) GenderOptions() []field.Option {
	return plainOptions(c.Genders)
}

func (c *Catalog) IdentificationOptions() []field.Option {
	return plainOptions(c.IdentificationTypes)
}

func plainOptions(values []string) []field.Option {
	opts := make([]field.Option, len(values))
	for i, v := range values {
		opts[i] = field.Option{Value: v, Label: v}
	}
	return opts
}
