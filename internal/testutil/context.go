package testutil

import (
	"context"

	"github.com/flexprice/residence-billing/internal/types"
)

// DefaultUserID is the authenticated user carried by SetupContext
const DefaultUserID = "user_test"

func SetupContext() context.Context {
	ctx := context.Background()
	ctx = types.SetUserID(ctx, DefaultUserID)
	ctx = types.SetRequestID(ctx, types.GenerateUUID())
	return ctx
}
