// Package ownership decides whether an actor may mutate a resource.
package ownership

import "github.com/vidstream/backend/internal/apperr"

// Owned is implemented by every record that carries an owner reference.
type Owned interface {
	OwnerRef() string
}

// CanMutate reports whether actor owns resource directly, or owns parent when a
// parent is supplied (a video owner moderating comments on their video).
// An empty actor never passes.
func CanMutate(actor string, resource Owned, parent Owned) bool {
	if actor == "" || resource == nil {
		return false
	}
	if resource.OwnerRef() == actor {
		return true
	}
	return parent != nil && parent.OwnerRef() == actor
}

// Require returns a Forbidden error when CanMutate is false.
func Require(actor string, resource Owned, parent Owned, action string) error {
	if CanMutate(actor, resource, parent) {
		return nil
	}
	return apperr.Forbidden("not allowed to " + action)
}
