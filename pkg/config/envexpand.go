package config

import "os"

// ExpandEnv expands ${VAR}/$VAR references in YAML content before parsing,
// so secrets (API keys) never have to live in the config file itself.
// Missing variables expand to empty string; Validator catches required
// fields left empty by that.
func ExpandEnv(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}
