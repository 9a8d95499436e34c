package model

import "strings"

// CleanName trims a brand or model name and collapses inner whitespace.
// Products are stored under this form.
func CleanName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NameKey is the case-insensitive identity of a brand or model name.
func NameKey(s string) string {
	return strings.ToLower(CleanName(s))
}
