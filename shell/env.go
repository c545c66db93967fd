package shell

import "os"

// Environment adapts the process environment to contracts.Environment, so
// credential resolution and SOURCE_DATE_EPOCH handling stay testable.
type Environment struct{}

func NewEnvironment() *Environment {
	return &Environment{}
}

func (this *Environment) LookupEnv(key string) (value string, set bool) {
	return os.LookupEnv(key)
}
