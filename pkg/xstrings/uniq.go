package xstrings

import "strings"

// UniqueSlice drops duplicates, keeping the first occurrence of each value.
func UniqueSlice[T comparable](s []T) []T {
	seen := make(map[T]struct{}, len(s))
	list := make([]T, 0, len(s))
	for _, entry := range s {
		if _, ok := seen[entry]; ok {
			continue
		}
		seen[entry] = struct{}{}
		list = append(list, entry)
	}
	return list
}

// Fields trims every entry and drops the empty ones and duplicates, as
// needed for comma separated settings.
func Fields(s []string) []string {
	list := make([]string, 0, len(s))
	for _, entry := range s {
		if entry = strings.TrimSpace(entry); entry != "" {
			list = append(list, entry)
		}
	}
	return UniqueSlice(list)
}
