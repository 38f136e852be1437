package registry

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

var ErrUnsupportedFormat = errors.New("registry: unsupported alias file format")

// aliasFile is the on-disk layout:
//
//	[aliases]
//	"Display Name" = "Namespace::Class"
type aliasFile struct {
	Aliases map[string]string `toml:"aliases" yaml:"aliases"`
}

// LoadFile reads an alias table from a .toml, .yaml or .yml file.
func LoadFile(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc aliasFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("registry: decode %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("registry: decode %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	table := Table(doc.Aliases)
	if table == nil {
		table = Table{}
	}
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// FileSource loads aliases from Path. With Overlay set, file entries are
// layered over the builtin table.
type FileSource struct {
	Path    string
	Overlay bool
}

func (s FileSource) Load() (Table, error) {
	table, err := LoadFile(s.Path)
	if err != nil {
		return nil, err
	}
	if !s.Overlay {
		return table, nil
	}
	merged := Builtin()
	maps.Copy(merged, table)
	return merged, nil
}
