package bunstore

import (
	"database/sql"
	"hash/fnv"

	"github.com/google/uuid"
)

func isAffected(res sql.Result) bool {
	rows, err := res.RowsAffected()
	if err != nil {
		return true
	}
	return rows != 0
}

func getAffected(res sql.Result) int64 {
	ret, err := res.RowsAffected()
	if err != nil {
		return -1
	}
	return ret
}

// partitionKey identifies a (owner[, group]) dispatch partition for the
// advisory-lock hash below. A nil group means the group dimension is
// ignored (per-owner mode, or per-owner-per-group with no group set).
type partitionKey struct {
	owner uuid.UUID
	group *uuid.UUID
}

// lockKey renders a partition key as the string passed to
// pg_try_advisory_xact_lock(hashtext(...)): Postgres's own hashtext
// takes a string, so we build one byte layout instead of relying on a
// second collision-prone hash of a hash.
func (p partitionKey) lockKey() string {
	if p.group == nil {
		return "owner:" + p.owner.String()
	}
	return "owner:" + p.owner.String() + ":group:" + p.group.String()
}

// fnvHash64 is used only on the SQLite test path, which has no
// pg_try_advisory_xact_lock; it exists so the partition loop's shape is
// identical across dialects even though SQLite's single pooled
// connection makes the lock itself a no-op.
func fnvHash64(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
