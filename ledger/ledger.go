// Package ledger tracks the refresh tokens the server still honors.
//
// A refresh token is usable only while its signature is valid and it is present
// in the ledger. Removing a token (logout) therefore revokes it even though the
// token itself has not expired.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Ledger is a concurrency-safe set of refresh-token strings. Entries added with a
// positive ttl drop out on their own once the token could no longer verify anyway.
type Ledger interface {
	Add(ctx context.Context, token string, ttl time.Duration) error
	Remove(ctx context.Context, token string) error
	Contains(ctx context.Context, token string) (bool, error)
}

// key derives the storage key for a token so raw tokens are never used as keys.
func key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
