package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/apierr"
	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/requestdata"
)

// callerIdentity pulls the tenant/user pair the middleware stored on the
// context. Every service operation is tenant-scoped, so a missing tenant is a
// hard request error, never a fallback to some default tenant.
func callerIdentity(ctx context.Context) (*requestdata.RequestData, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.TenantID == uuid.Nil {
		return nil, apierr.Validation("missing_tenant_context", "tenant context not set on request")
	}
	if rd.UserID == uuid.Nil {
		return nil, apierr.Validation("missing_user_context", "acting user not set on request")
	}
	return rd, nil
}

func validPeriod(year, month int) bool {
	return year >= 2000 && year <= 2100 && month >= 1 && month <= 12
}
