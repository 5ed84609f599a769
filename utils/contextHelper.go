package utils

import (
	"context"

	"bitbucket.org/movilfix/taller_backend/appctx"
)

// Alias the shared context key type so callers only import utils.
type contextKey = appctx.ContextKey

var (
	ContextKeyOrganizationId = appctx.ContextKeyOrganizationId
	ContextKeyBranchId       = appctx.ContextKeyBranchId
	ContextKeyUserId         = appctx.ContextKeyUserId
	ContextKeyUserName       = appctx.ContextKeyUserName
	ContextKeyClientIp       = appctx.ContextKeyClientIp
	ContextKeyUserAgent      = appctx.ContextKeyUserAgent
)

func GetOrganizationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyOrganizationId)
}

func GetBranchIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyBranchId)
}

func GetUserIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyUserId)
}

func GetUserNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserName)
}

func GetClientIpFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyClientIp)
}

func GetUserAgentFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserAgent)
}

func SetOrganizationIdInContext(ctx context.Context, organizationId string) context.Context {
	return appctx.Set(ctx, ContextKeyOrganizationId, organizationId)
}

func SetBranchIdInContext(ctx context.Context, branchId int) context.Context {
	return appctx.Set(ctx, ContextKeyBranchId, branchId)
}

func SetUserIdInContext(ctx context.Context, userId int) context.Context {
	return appctx.Set(ctx, ContextKeyUserId, userId)
}

func SetUserNameInContext(ctx context.Context, userName string) context.Context {
	return appctx.Set(ctx, ContextKeyUserName, userName)
}

func SetClientIpInContext(ctx context.Context, ip string) context.Context {
	return appctx.Set(ctx, ContextKeyClientIp, ip)
}

func SetUserAgentInContext(ctx context.Context, userAgent string) context.Context {
	return appctx.Set(ctx, ContextKeyUserAgent, userAgent)
}
