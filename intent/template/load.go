package template

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/orbit-gateway/orbit/gatewaytypes"
)

// libraryFile is the on-disk shape of a template library file: a flat list
// under a "templates" key, YAML-friendly and diff-friendly for operators
// hand-editing the library.
type libraryFile struct {
	Templates []gatewaytypes.Template `yaml:"templates"`
}

// LoadLibrary reads a template library from a YAML file at path.
func LoadLibrary(path string) ([]gatewaytypes.Template, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("template: read library %q: %w", path, err)
	}

	var lib libraryFile
	if err := yaml.Unmarshal(raw, &lib); err != nil {
		return nil, fmt.Errorf("template: parse library %q: %w", path, err)
	}

	for i, t := range lib.Templates {
		if t.ID == "" {
			return nil, fmt.Errorf("template: entry %d in %q is missing an id", i, path)
		}
	}
	return lib.Templates, nil
}
