package functions

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type file struct {
	Functions []Function `yaml:"functions"`
}

// LoadFile reads extra function descriptors from a YAML file. URLs and
// header values may reference environment variables ($API_KEY, ${API_BASE}).
func LoadFile(path string) ([]Function, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading functions file: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing functions file %s: %w", path, err)
	}

	for i := range f.Functions {
		fn := &f.Functions[i]
		fn.Config.Method = strings.ToUpper(fn.Config.Method)
		fn.Config.URL = os.ExpandEnv(fn.Config.URL)
		for k, v := range fn.Config.Headers {
			fn.Config.Headers[k] = os.ExpandEnv(v)
		}
		if err := fn.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return f.Functions, nil
}
