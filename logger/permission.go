package logger

// Permission implementations indicate whether the environment making a log
// request is allowed to create new log entries
type Permission interface {
	AllowLogging() bool
}

type allow struct{}

func (_ allow) AllowLogging() bool {
	return true
}

// Allow indicates that the logging request should always be allowed
var Allow Permission = allow{}

// Verbosity is a Permission that can be switched on and off at runtime, used
// for the chatty per-transfer traces
type Verbosity bool

func (v *Verbosity) AllowLogging() bool {
	return bool(*v)
}
