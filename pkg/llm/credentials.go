package llm

import (
	"sort"
	"strconv"
	"strings"
)

// DiscoverKeys scans environ (os.Environ format, "KEY=value") for API keys
// under prefix. Ordering is stable: the unsuffixed variable first, then
// numeric suffixes ascending, then anything else lexicographically. Empty
// values are skipped.
func DiscoverKeys(environ []string, prefix string) []string {
	type entry struct {
		name  string
		value string
	}
	var entries []entry
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, prefix) {
			continue
		}
		if strings.TrimSpace(value) == "" {
			continue
		}
		entries = append(entries, entry{name: name, value: strings.TrimSpace(value)})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].name, entries[j].name
		if a == prefix {
			return b != prefix
		}
		if b == prefix {
			return false
		}
		numA, errA := strconv.Atoi(strings.TrimPrefix(a, prefix))
		numB, errB := strconv.Atoi(strings.TrimPrefix(b, prefix))
		switch {
		case errA == nil && errB == nil:
			return numA < numB
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return a < b
		}
	})

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.value)
	}
	return keys
}

// EnvValue returns the trimmed value of name from environ, or "".
func EnvValue(environ []string, name string) string {
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if ok && k == name {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
