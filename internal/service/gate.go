package service

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/homespark/rt-coordination-service/internal/domain/model"
)

// Authenticator is the identity gate contract consumed by the event router.
type Authenticator interface {
	Authenticate(ctx context.Context, token string, kind model.ActorKind) (model.Actor, *model.HandlerError)
}

// Interface guard
var _ Authenticator = (*IdentityGate)(nil)

// IdentityGate validates bearer tokens against the external identity store.
// A short-TTL LRU sits in front so reconnect storms do not hammer the
// store; the TTL bounds how long a revoked token can still authenticate.
type IdentityGate struct {
	store IdentityStore
	cache *expirable.LRU[string, model.Actor]
}

func NewIdentityGate(store IdentityStore, cacheSize int, cacheTTL time.Duration) *IdentityGate {
	return &IdentityGate{
		store: store,
		cache: expirable.NewLRU[string, model.Actor](cacheSize, nil, cacheTTL),
	}
}

// Authenticate resolves (token, claimedKind) to an Actor. Pure lookup, no
// side effects; the connection supervisor owns marking the connection
// authenticated. Every failure is a local invalid_token reply and the
// server never retries; the client must resend.
func (g *IdentityGate) Authenticate(ctx context.Context, token string, kind model.ActorKind) (model.Actor, *model.HandlerError) {
	if token == "" || !kind.Valid() {
		return model.Actor{}, model.NewHandlerError(model.ErrInvalidToken, "invalid credentials")
	}

	cacheKey := string(kind) + "\x00" + token
	if actor, ok := g.cache.Get(cacheKey); ok {
		return actor, nil
	}

	identity, err := g.store.Lookup(ctx, token, kind)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return model.Actor{}, model.NewHandlerError(model.ErrInvalidToken, "invalid or expired token")
		}
		return model.Actor{}, model.Internal(err)
	}

	actor := model.Actor{
		ID:          identity.ID,
		Kind:        kind,
		DisplayName: identity.Name,
	}
	g.cache.Add(cacheKey, actor)
	return actor, nil
}
