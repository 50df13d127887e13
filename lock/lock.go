// Package lock serializes work on a single key (a seller, a link) across
// concurrent callers. The engine uses it around standby replays and link
// updates; the stores' compare-and-swap writes stay the source of truth.
package lock

import "context"

// Locker acquires exclusive ownership of a key.
type Locker interface {
	// Lock blocks until key is held or ctx is done. The returned function
	// releases the key and is safe to call once.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Key joins a namespace and an identifier into a lock key.
func Key(namespace, ident string) string {
	return "rewards:lock:" + namespace + ":" + ident
}
