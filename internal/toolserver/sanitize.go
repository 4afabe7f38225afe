package toolserver

import (
	"os"
	"sort"
	"strings"
)

// sensitiveEnvPrefixes are stripped from the tool server environment unless
// explicitly allowed. The agent can ask the tool server to run shell
// commands, so anything left here is one `env` away from the model.
var sensitiveEnvPrefixes = []string{
	"GROQ_API",
	"OPENAI_API",
	"ANTHROPIC_API",
	"DAILYFORGE_",
	"AWS_SECRET",
	"AWS_SESSION",
	"GITHUB_TOKEN",
}

var sensitiveEnvExact = []string{
	"API_KEY",
	"API_SECRET",
	"SECRET_KEY",
}

// SanitizedEnv returns os.Environ() with credentials removed. Names listed in
// allow survive even when they match a sensitive pattern (codex needs
// OPENAI_API_KEY to reach the model).
func SanitizedEnv(allow ...string) []string {
	return sanitizeEnv(os.Environ(), allow)
}

func sanitizeEnv(environ, allow []string) []string {
	allowed := make(map[string]struct{}, len(allow))
	for _, name := range allow {
		allowed[strings.ToUpper(name)] = struct{}{}
	}

	clean := make([]string, 0, len(environ))
	for _, entry := range environ {
		name, _, ok := strings.Cut(entry, "=")
		if !ok {
			clean = append(clean, entry)
			continue
		}
		upper := strings.ToUpper(name)
		if _, ok := allowed[upper]; ok || !isSensitive(upper) {
			clean = append(clean, entry)
		}
	}
	return clean
}

func isSensitive(upper string) bool {
	for _, prefix := range sensitiveEnvPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	for _, exact := range sensitiveEnvExact {
		if upper == exact {
			return true
		}
	}
	return false
}

// buildEnv layers explicit overrides on top of the sanitized environment.
// Overrides are applied in name order so the result is deterministic.
func buildEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	env := make([]string, 0, len(base)+len(overrides))
	for _, entry := range base {
		name, _, _ := strings.Cut(entry, "=")
		if _, replaced := overrides[name]; replaced {
			continue
		}
		env = append(env, entry)
	}
	for _, name := range names {
		env = append(env, name+"="+overrides[name])
	}
	return env
}
