package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Secret is a reference to a value that should not live in the config file itself,
// e.g. an RPC url carrying an API key: "env:NAME", "file:path" or "raw:value".
// A value without a known prefix is used as is.
type Secret string

type SecretType string

var Env SecretType = "env"
var Raw SecretType = "raw"
var File SecretType = "file"

func (s Secret) Load() (string, error) {
	if !HasTypePrefix(string(s)) {
		return string(s), nil
	}
	return GetSecret(string(s))
}

func (s Secret) LoadOrBlank() string {
	deref, _ := s.Load()
	return deref
}

func NewRawSecret(secret string) Secret {
	return Secret(fmt.Sprintf("raw:%s", secret))
}

func HasTypePrefix(secretRef string) bool {
	switch SecretType(strings.Split(secretRef, ":")[0]) {
	case Env, Raw, File:
		return true
	}
	return false
}

// GetSecret resolves a prefixed secret reference.
func GetSecret(uri string) (string, error) {
	splits := strings.SplitN(uri, ":", 2)
	if len(splits) < 2 {
		return "", errors.New("invalid secret source for: ***")
	}

	path := splits[1]
	switch SecretType(splits[0]) {
	case Env:
		return strings.TrimSpace(os.Getenv(path)), nil
	case Raw:
		return path, nil
	case File:
		if len(path) > 1 && path[0] == '~' {
			path = strings.Replace(path, "~", os.Getenv("HOME"), 1)
		}
		result, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(result)), nil
	}
	return "", errors.New("invalid secret source for: ***")
}
