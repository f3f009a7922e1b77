package config

import (
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/Paintersrp/notetree/internal/constants"
)

func GetConfigPath(homeDir string) string {
	return filepath.Join(
		homeDir,
		constants.ConfigDir,
		constants.ConfigFile+"."+constants.ConfigFileType,
	)
}

// NewEnv returns a viper instance bound to NOTETREE_* environment variables
// only. The profile file is decoded by Load, never through viper.
func NewEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(constants.EnvPrefix)
	v.AutomaticEnv()
	return v
}
