package scenario

import (
	_ "embed"
	"sort"
)

//go:embed builtin/success.yaml
var successYAML []byte

//go:embed builtin/validation-fail-lockout.yaml
var validationFailLockoutYAML []byte

// builtinScenarios maps scenario names to their embedded YAML content.
var builtinScenarios = map[string][]byte{
	"success":                 successYAML,
	"validation-fail-lockout": validationFailLockoutYAML,
}

// BuiltinNames returns the sorted names of the embedded scenarios.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtinScenarios))
	for name := range builtinScenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
