package constants

const (
	Version        = `0.1.0`
	AppName        = `notetree`
	ConfigFile     = `config`
	ConfigFileType = `yaml`
	ConfigDir      = `/.config/notetree/`
	EnvPrefix      = `NOTETREE`
)
