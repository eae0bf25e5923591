package config

import "os"

// ExpandEnv expands ${VAR} / $VAR references in raw TOML bytes before
// parsing. Missing variables expand to the empty string; validation is
// expected to catch any resulting empty required fields.
func ExpandEnv(data []byte) []byte {
	return []byte(os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	}))
}
