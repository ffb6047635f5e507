package core

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
)

//go:embed activities/*.yaml
var activityFS embed.FS

// DefaultActivity is the activity used when none is configured.
const DefaultActivity = "cycling"

// BuiltinActivities returns the names of the activity documents shipped with
// the binary.
func BuiltinActivities() []string {
	entries, err := activityFS.ReadDir("activities")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, strings.TrimSuffix(entry.Name(), path.Ext(entry.Name())))
	}
	sort.Strings(names)
	return names
}

// BuiltinDocument returns the raw YAML of a built-in activity.
func BuiltinDocument(name string) ([]byte, error) {
	data, err := activityFS.ReadFile(path.Join("activities", name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("no built-in activity %q (have %s)", name, strings.Join(BuiltinActivities(), ", "))
	}
	return data, nil
}

// LoadBuiltin validates a built-in activity against reg.
func LoadBuiltin(name string, reg *ComparatorRegistry) (*Schema, error) {
	data, err := BuiltinDocument(name)
	if err != nil {
		return nil, err
	}
	s, err := LoadSchema(data, reg)
	if err != nil {
		return nil, fmt.Errorf("loading built-in activity %q: %w", name, err)
	}
	return s, nil
}
