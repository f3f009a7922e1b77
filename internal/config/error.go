package config

import "fmt"

// ConfigInitError means the configuration cannot start a session: the file
// is missing or unreadable, or it names no usable profile.
type ConfigInitError struct {
	msg string
}

func (e *ConfigInitError) Error() string {
	return e.msg
}

func initErrorf(format string, args ...any) error {
	return &ConfigInitError{msg: fmt.Sprintf(format, args...)}
}
