package record

import "strings"

// AddUnique appends item unless it is blank or already present (exact match).
func AddUnique(list []string, item string) []string {
	if strings.TrimSpace(item) == "" {
		return list
	}
	for _, existing := range list {
		if existing == item {
			return list
		}
	}
	return append(list, item)
}

// Remove returns list without any entry equal to item.
func Remove(list []string, item string) []string {
	out := list[:0:0]
	for _, existing := range list {
		if existing != item {
			out = append(out, existing)
		}
	}
	return out
}

// Union appends each item of extra not already in list, preserving order.
func Union(list, extra []string) []string {
	for _, item := range extra {
		list = AddUnique(list, item)
	}
	return list
}

// Toggle removes item when present and adds it otherwise.
func Toggle(list []string, item string) []string {
	for _, existing := range list {
		if existing == item {
			return Remove(list, item)
		}
	}
	return AddUnique(list, item)
}

// FormatDiagnosis renders a diagnosis token as "code - label".
func FormatDiagnosis(code, label string) string {
	code = strings.TrimSpace(code)
	label = strings.TrimSpace(label)
	switch {
	case code == "":
		return label
	case label == "":
		return code
	}
	return code + " - " + label
}
