package core

import (
	"fmt"
	"strings"

	"github.com/steamlauncher/bootstrap/contracts"
)

// CredentialParser resolves HOSTNAME=VARIABLE specs against the
// environment, where VARIABLE holds "username:password". The resulting map
// is keyed by host and is only ever used for remote authentication.
type CredentialParser struct {
	environment contracts.Environment
}

func NewCredentialParser(environment contracts.Environment) CredentialParser {
	return CredentialParser{environment: environment}
}

func (this CredentialParser) Parse(specs []string) (map[string]contracts.Credential, error) {
	credentials := make(map[string]contracts.Credential)
	for _, spec := range specs {
		host, variable, found := strings.Cut(spec, "=")
		if !found || host == "" || variable == "" {
			return nil, fmt.Errorf(
				"%w: credential spec %q is not HOSTNAME=VARIABLE", contracts.InvocationErr, spec)
		}
		value, set := this.environment.LookupEnv(variable)
		if !set {
			return nil, fmt.Errorf(
				"%w: environment variable %s is not set", contracts.InvocationErr, variable)
		}
		username, password, found := strings.Cut(value, ":")
		if !found {
			return nil, fmt.Errorf(
				"%w: environment variable %s does not contain username:password", contracts.InvocationErr, variable)
		}
		credentials[host] = contracts.Credential{Username: username, Password: password}
	}
	return credentials, nil
}
