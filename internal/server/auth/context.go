package auth

import (
	"context"

	"github.com/dmitrijs2005/ridehail/internal/server/models"
)

type ctxKey string

const identityKey ctxKey = "ridehail.identity"

func WithIdentity(ctx context.Context, id *models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFromContext(ctx context.Context) (*models.Identity, bool) {
	id, ok := ctx.Value(identityKey).(*models.Identity)
	return id, ok && id != nil
}
