package ports

import "github.com/reglet-dev/embedc/domain/entities"

// ConfigParser parses raw configuration bytes into a Config.
type ConfigParser interface {
	// Parse decodes data on top of base, so absent keys keep base values.
	Parse(data []byte, base entities.Config) (*entities.Config, error)
}
