package configloader

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Validator is implemented by config structs that can check themselves.
type Validator interface {
	Validate() error
}

// Load fills cfgPtr from registered defaults, an optional YAML file and
// environment variables, in that order of precedence (env wins).
// envPrefix is the env variable prefix, e.g. "UNIVERSE".
func Load(path, envPrefix string, cfgPtr interface{}) error {
	v := viper.New()

	for key, val := range getDefaults() {
		v.SetDefault(key, val)
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("configloader: read config %q: %w", path, err)
		}
	}

	if err := decode(v.AllSettings(), cfgPtr); err != nil {
		return fmt.Errorf("configloader: decode failed: %w", err)
	}

	if val, ok := cfgPtr.(Validator); ok {
		if err := val.Validate(); err != nil {
			return fmt.Errorf("configloader: validation failed: %w", err)
		}
	}
	return nil
}
