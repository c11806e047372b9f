package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseVersion splits a dotted version ("2.4.49") into integer parts.
func ParseVersion(v string) ([]int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, fmt.Errorf("empty version")
	}
	fields := strings.Split(v, ".")
	parts := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid version component %q in %q: %w", f, v, err)
		}
		parts[i] = n
	}
	return parts, nil
}

// CompareVersions orders integer lists lexicographically; a strict prefix
// sorts first, so 2.4 < 2.4.0.
func CompareVersions(a, b []int) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] < b[i] {
			return -1
		}
		if a[i] > b[i] {
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

// VersionInRange reports whether version lies in [min, max] inclusive.
// When any of the three strings cannot be parsed, failOpen decides the answer.
func VersionInRange(version, min, max string, failOpen bool) bool {
	v, err := ParseVersion(version)
	if err != nil {
		return failOpen
	}
	lo, err := ParseVersion(min)
	if err != nil {
		return failOpen
	}
	hi, err := ParseVersion(max)
	if err != nil {
		return failOpen
	}
	return CompareVersions(lo, v) <= 0 && CompareVersions(v, hi) <= 0
}
