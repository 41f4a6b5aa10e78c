// Package envutil works on environment snapshots in the "KEY=VALUE" form
// returned by os.Environ.
package envutil

import (
	"strings"
)

// GetEnv gets a value from an env slice.
// Returns the value and true if found, or empty string and false if not.
func GetEnv(env []string, key string) (string, bool) {
	prefix := key + "="
	for _, e := range env {
		if strings.HasPrefix(e, prefix) {
			return e[len(prefix):], true
		}
	}
	return "", false
}

// LookupFold returns the first non-empty value among the given keys, trying
// each key as written and then in lowercase. An empty value counts as unset.
//
//	LookupFold(env, "HTTP_PROXY", "ALL_PROXY")
//	// HTTP_PROXY, http_proxy, ALL_PROXY, all_proxy
func LookupFold(env []string, keys ...string) (string, bool) {
	for _, key := range keys {
		for _, k := range foldedKeys(key) {
			if v, ok := GetEnv(env, k); ok && v != "" {
				return v, true
			}
		}
	}
	return "", false
}

func foldedKeys(key string) []string {
	lower := strings.ToLower(key)
	if lower == key {
		return []string{key}
	}
	return []string{key, lower}
}

// MergeEnv merges additional env vars into base, with additional taking precedence.
// Returns a new slice. Variables in additional override those in base with the same key.
func MergeEnv(base, additional []string) []string {
	overrides := make(map[string]string, len(additional))
	overrideOrder := make([]string, 0, len(additional))
	for _, e := range additional {
		key := envKey(e)
		if _, exists := overrides[key]; !exists {
			overrideOrder = append(overrideOrder, key)
		}
		overrides[key] = e
	}

	replaced := make(map[string]bool, len(overrides))
	result := make([]string, 0, len(base)+len(additional))
	for _, e := range base {
		key := envKey(e)
		if override, ok := overrides[key]; ok {
			if !replaced[key] {
				result = append(result, override)
				replaced[key] = true
			}
		} else {
			result = append(result, e)
		}
	}

	// Append any additional vars that weren't in base, preserving order.
	for _, key := range overrideOrder {
		if !replaced[key] {
			result = append(result, overrides[key])
		}
	}

	return result
}

func envKey(e string) string {
	if idx := strings.IndexByte(e, '='); idx >= 0 {
		return e[:idx]
	}
	return e
}
