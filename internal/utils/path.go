package utils

import "strings"

// Path-encoded folder ids nest a child under its parent as
// parent + delimiter + segment, e.g. "1/work/2024" with delimiter "/".

// IsBelow reports whether id is nested anywhere under ancestor
func IsBelow(id, ancestor, delimiter string) bool {
	if delimiter == "" || ancestor == "" {
		return false
	}
	return strings.HasPrefix(id, ancestor+delimiter)
}

// Rebase moves id from below oldAncestor to below newAncestor. Ids that are
// not nested under oldAncestor are returned unchanged with ok == false.
func Rebase(id, oldAncestor, newAncestor, delimiter string) (rebased string, ok bool) {
	if !IsBelow(id, oldAncestor, delimiter) {
		return id, false
	}
	return newAncestor + delimiter + id[len(oldAncestor)+len(delimiter):], true
}
