package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

// RequestData carries the authenticated identity attached by the auth
// middleware. Handlers and services read it instead of re-parsing tokens.
type RequestData struct {
	UserID      uuid.UUID
	Role        string
	Name        string
	Email       string
	TokenString string
}

type requestDataKey struct{}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	rd, ok := ctx.Value(requestDataKey{}).(*RequestData)
	if !ok {
		return nil
	}
	return rd
}
