// Package parser decodes configuration files.
package parser

import (
	"bytes"
	"errors"
	"io"

	"github.com/reglet-dev/embedc/domain/entities"
	domainerrors "github.com/reglet-dev/embedc/domain/errors"
	"github.com/reglet-dev/embedc/domain/ports"
	"gopkg.in/yaml.v3"
)

// YamlConfigParser implements ConfigParser for YAML.
type YamlConfigParser struct{}

// NewYamlConfigParser creates a new YamlConfigParser.
func NewYamlConfigParser() ports.ConfigParser {
	return &YamlConfigParser{}
}

// Parse decodes YAML bytes over base. Keys absent from data keep their base
// value; unknown keys are rejected.
func (p *YamlConfigParser) Parse(data []byte, base entities.Config) (*entities.Config, error) {
	cfg := base
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, &domainerrors.ConfigError{Err: err}
	}
	return &cfg, nil
}
