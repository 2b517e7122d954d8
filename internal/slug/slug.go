package slug

import "strings"

// parentMarker prefixes parent-protocol ids in the registry.
const parentMarker = "parent#"

var replacer = strings.NewReplacer(" ", "-", "'", "")

// Make lowercases s, turns spaces into dashes and drops apostrophes.
func Make(s string) string {
	return replacer.Replace(strings.ToLower(s))
}

// Key returns the storage key for a canonical protocol key.
func Key(canonical string) string {
	return strings.Replace(Make(canonical), parentMarker, "", 1)
}
