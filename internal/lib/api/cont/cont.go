package cont

import (
	"context"

	"TradeGate/entity"
)

type contextKey string

const staffKey contextKey = "staff"

// PutStaff stores the authenticated staff identity on the request context.
func PutStaff(ctx context.Context, staff *entity.StaffAuth) context.Context {
	return context.WithValue(ctx, staffKey, staff)
}

// GetStaff returns the authenticated staff identity, or nil.
func GetStaff(ctx context.Context) *entity.StaffAuth {
	staff, ok := ctx.Value(staffKey).(*entity.StaffAuth)
	if !ok {
		return nil
	}
	return staff
}
