package session

import (
	"context"
	"strings"
)

// Namespaced isolates one platform's sender ids inside a shared store.
type Namespaced struct {
	inner  Store
	prefix string
}

// WithPrefix returns inner scoped to ids starting with prefix. An empty
// prefix returns inner unchanged.
func WithPrefix(inner Store, prefix string) Store {
	if prefix == "" {
		return inner
	}
	return &Namespaced{inner: inner, prefix: prefix}
}

// Get implements Store.
func (n *Namespaced) Get(ctx context.Context, senderID string) (Session, bool, error) {
	s, ok, err := n.inner.Get(ctx, n.prefix+senderID)
	if ok {
		s.SenderID = strings.TrimPrefix(s.SenderID, n.prefix)
	}
	return s, ok, err
}

// Put implements Store.
func (n *Namespaced) Put(ctx context.Context, s Session) error {
	s.SenderID = n.prefix + s.SenderID
	return n.inner.Put(ctx, s)
}

// Delete implements Store.
func (n *Namespaced) Delete(ctx context.Context, senderID string) error {
	return n.inner.Delete(ctx, n.prefix+senderID)
}
