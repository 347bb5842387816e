package config

import (
	"os"
	"regexp"
	"strings"
)

// LookupAPIKey resolves an API key from the environment, trying
// <PROVIDER>_API_KEY, then <ENGINE>_API_KEY, then API_KEY.
func LookupAPIKey(provider, engineName string) string {
	return lookupScoped(provider, engineName, "API_KEY")
}

// LookupAPIURL resolves an API URL the same way as LookupAPIKey.
func LookupAPIURL(provider, engineName string) string {
	return lookupScoped(provider, engineName, "API_URL")
}

func lookupScoped(provider, engineName, suffix string) string {
	var candidates []string
	if provider != "" {
		candidates = append(candidates, EnvName(provider)+"_"+suffix)
	}
	if engineName != "" {
		candidates = append(candidates, EnvName(engineName)+"_"+suffix)
	}
	candidates = append(candidates, suffix)

	for _, key := range candidates {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

// EnvName turns an engine or provider name into an environment prefix.
func EnvName(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

var placeholder = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// InterpolateString replaces ${VAR} and ${VAR:default} with environment
// values. Unset variables without a default become the empty string.
func InterpolateString(s string) string {
	return placeholder.ReplaceAllStringFunc(s, func(match string) string {
		groups := placeholder.FindStringSubmatch(match)
		if v, ok := os.LookupEnv(groups[1]); ok {
			return v
		}
		return groups[2]
	})
}
