// Package owner normalizes team/account identifiers into the uuid.UUID
// column type the store uses for owner_id.
//
// Producers may pass an owner identifier that is already a UUID, or an
// arbitrary string (an account slug, an email, a legacy integer id).
// Normalize makes the column uniformly typed by deterministically
// hashing non-UUID identifiers into a version-5 UUID under a fixed
// namespace, so the same logical owner always normalizes to the same
// value across processes and restarts.
package owner

import "github.com/google/uuid"

// Namespace is the fixed namespace under which non-UUID owner
// identifiers are hashed. It must never change: changing it would
// silently reassign every existing owner to a new id.
var Namespace = uuid.MustParse("6f1b2b2e-6e1a-4b8a-9c1d-2a7b6d5e4f30")

// Normalize returns id unchanged if it already parses as a UUID.
// Otherwise it returns the version-5 UUID of id under Namespace, a
// total, deterministic function with no external state.
func Normalize(id string) uuid.UUID {
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed
	}
	return uuid.NewSHA1(Namespace, []byte(id))
}
