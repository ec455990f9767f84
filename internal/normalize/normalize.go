// Package normalize holds the canonical forms used for storage and comparison
// of user-supplied identity fields.
package normalize

import "strings"

// Email is the stored and compared form of an address: trimmed and lower-cased.
// Login, registration and JWT claims all go through it.
func Email(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// Name trims a display name and collapses inner runs of whitespace to a
// single space. Case is preserved.
func Name(n string) string {
	return strings.Join(strings.Fields(n), " ")
}
