package api

import (
	"strings"

	"lucky10-server/internal/auth"
	helper "lucky10-server/internal/common/helper"
	"lucky10-server/internal/common/response"
	infmysql "lucky10-server/internal/infra/mysql"
	"lucky10-server/internal/model"

	beego "github.com/beego/beego/v2/server/web"
)

// AuthController 终端用户 Token 签发（需先通过平台鉴权）
// POST /api/auth/token    平台为其用户换取 access/refresh Token
// POST /api/auth/refresh  用 refresh Token 换新的 access Token
// POST /api/auth/logout   撤销当前 Token（加入黑名单）
type AuthController struct{ beego.Controller }

func (c *AuthController) Token() {
	traceID := helper.GetTraceID(c.Ctx)

	platformID := int8(0)
	appKey := ""
	if v := c.Ctx.Input.GetData("platform_id"); v != nil {
		if pid, ok := v.(int8); ok {
			platformID = pid
		}
	}
	if v := c.Ctx.Input.GetData("app_key"); v != nil {
		if k, ok := v.(string); ok {
			appKey = k
		}
	}
	if platformID == 0 {
		response.Error(&c.Controller, 401, response.CodeUnauthorized, traceID)
		return
	}

	platformUserID := strings.TrimSpace(c.GetString("platform_user_id"))
	if platformUserID == "" {
		response.BadRequest(&c.Controller, "platform_user_id is required", traceID)
		return
	}
	if !auth.IsValidPlatformUserID(platformUserID) {
		response.BadRequest(&c.Controller, "invalid platform_user_id", traceID)
		return
	}
	username := strings.TrimSpace(c.GetString("username"))
	if username == "" {
		username = platformUserID
	}

	ctx := c.Ctx.Request.Context()
	user, err := model.GetOrCreateUser(ctx, infmysql.SQLX(), platformID, platformUserID, username)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	accessToken, err := auth.GenerateAccessToken(user.ID, user.Username, platformID, appKey)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}
	refreshToken, err := auth.GenerateRefreshToken(user.ID, user.Username, platformID, appKey)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]any{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"token_type":    "Bearer",
	}, traceID)
}

func (c *AuthController) Refresh() {
	traceID := helper.GetTraceID(c.Ctx)

	claims, err := auth.VerifyJWTToken(c.Ctx)
	if err != nil {
		response.Error(&c.Controller, 401, response.CodeInvalidToken, traceID)
		return
	}
	if claims.TokenType != "refresh" {
		response.Error(&c.Controller, 401, response.CodeInvalidToken, traceID)
		return
	}

	accessToken, err := auth.GenerateAccessToken(claims.UserID, claims.Username, claims.PlatformID, claims.AppKey)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]any{
		"access_token": accessToken,
		"token_type":   "Bearer",
	}, traceID)
}

func (c *AuthController) Logout() {
	traceID := helper.GetTraceID(c.Ctx)

	claims, err := auth.VerifyJWTToken(c.Ctx)
	if err != nil {
		response.Error(&c.Controller, 401, response.CodeInvalidToken, traceID)
		return
	}

	// 从 Authorization 头取原始 Token 串加入黑名单
	parts := strings.SplitN(strings.TrimSpace(c.Ctx.Input.Header("Authorization")), " ", 2)
	if len(parts) == 2 {
		_ = auth.RevokeToken(c.Ctx.Request.Context(), parts[1], claims.ExpiresAt.Time)
	}

	response.Success(&c.Controller, nil, traceID)
}
