// Package authz is the single ownership gate for mutations on owned records.
//
// Only edits and deletes of a post, and moderation of the comments on it, go
// through the gate. Commenting and category tagging are open to every
// authenticated user on purpose.
package authz

// Authorize reports whether acting may mutate a record owned by owner.
// The zero id never owns anything.
func Authorize(acting, owner uint) bool {
	return acting != 0 && acting == owner
}
