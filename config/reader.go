package config

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Read reads a config from the given file. Environment variable references such as
// ${DATA_DIR} are expanded before decoding.
func Read(filePath string) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	return FromReader(filePath, bytes.NewReader(buf))
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from. Files ending in .yaml or .yml are
// decoded as YAML, anything else as JSON.
func FromReader(originalPath string, r io.Reader) (*Config, error) {
	cfg := Config{
		ConfigFilePath: originalPath,
	}
	if isYAML(originalPath) {
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to decode Config from yaml")
		}
	} else {
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to decode Config from json")
		}
	}
	if err := cfg.Ensure(); err != nil {
		return nil, errors.Wrap(err, "failed to process Config")
	}
	return &cfg, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
