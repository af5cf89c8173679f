package ledger

import "strings"

// =============================================================================
// COMPOSITE KEYS - One encoding for point lookups and prefix queries
// =============================================================================

// keySeparator is the zero byte the host ledger uses between key parts.
// Field values must never contain it.
const keySeparator = "\x00"

// CompositeKey builds a world-state key from an index name and ordered field
// values: "" + 0x00 + index + 0x00 + part1 + 0x00 + ... + partN + 0x00 + "".
// The empty-string sentinels bound the key so that a key built from N parts
// is also a valid scan prefix for keys built from N+M parts.
func CompositeKey(index string, parts ...string) string {
	var b strings.Builder
	b.WriteString(keySeparator)
	b.WriteString(index)
	b.WriteString(keySeparator)
	for _, p := range parts {
		b.WriteString(p)
		b.WriteString(keySeparator)
	}
	return b.String()
}

// CompositePrefix is CompositeKey under a name that states intent: the result
// is used as the lower bound of a range scan rather than a point lookup.
func CompositePrefix(index string, parts ...string) string {
	return CompositeKey(index, parts...)
}

// SplitCompositeKey recovers the index name and field values from a key
// produced by CompositeKey. Returns ("", nil) for malformed input.
func SplitCompositeKey(key string) (string, []string) {
	if !strings.HasPrefix(key, keySeparator) {
		return "", nil
	}
	trimmed := strings.TrimPrefix(key, keySeparator)
	trimmed = strings.TrimSuffix(trimmed, keySeparator)
	fields := strings.Split(trimmed, keySeparator)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}
