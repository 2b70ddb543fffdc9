// Package config is responsible for locating the configuration sources.
// It points Viper at a config file, environment variables and search paths;
// the typed view lives in internal/config.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. METASCAN_HTTP_TIMEOUT=30s.
const EnvPrefix = "METASCAN"

// Init configures v to read cfgFile, or metascan.yaml from the search paths
// when cfgFile is empty, plus METASCAN_* environment variables. It returns
// the file actually used; a missing file in the search paths is not an error.
func Init(v *viper.Viper, cfgFile string) (string, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("metascan")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.metascan")
		v.AddConfigPath("/etc/metascan/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("read config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}
