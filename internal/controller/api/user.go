package api

import (
	"database/sql"
	"strconv"
	"time"

	"lucky10-server/common"
	helper "lucky10-server/internal/common/helper"
	"lucky10-server/internal/common/response"
	infmysql "lucky10-server/internal/infra/mysql"
	"lucky10-server/internal/model"

	beego "github.com/beego/beego/v2/server/web"
)

// UserController 用户侧查询接口（需平台鉴权）
// GET /api/user/balance   余额查询
// GET /api/user/bets      投注记录（可按 round_number 过滤）
// GET /api/user/ledger    账本流水
type UserController struct{ beego.Controller }

// platformIdentity 从鉴权中间件注入的数据提取平台身份
func platformIdentity(c *UserController) (int8, string, bool) {
	platformID := int8(0)
	platformUserID := ""
	if v := c.Ctx.Input.GetData("platform_id"); v != nil {
		if pid, ok := v.(int8); ok {
			platformID = pid
		}
	}
	if v := c.Ctx.Input.GetData("platform_user_id"); v != nil {
		if puid, ok := v.(string); ok {
			platformUserID = puid
		}
	}
	return platformID, platformUserID, platformUserID != ""
}

func (c *UserController) Balance() {
	traceID := helper.GetTraceID(c.Ctx)
	platformID, platformUserID, ok := platformIdentity(c)
	if !ok {
		response.Error(&c.Controller, 401, response.CodeUnauthorized, traceID)
		return
	}

	ctx := c.Ctx.Request.Context()
	user, err := model.GetUserByPlatformUser(ctx, infmysql.ReadDB(), platformID, platformUserID)
	if err != nil {
		if err == sql.ErrNoRows {
			// 未注册用户视为零余额（投注时自动注册）
			response.Success(&c.Controller, map[string]any{
				"balance":   "0.00",
				"total_bet": "0.00",
				"total_won": "0.00",
			}, traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]any{
		"balance":   strconv.FormatFloat(user.Balance, 'f', 2, 64),
		"total_bet": strconv.FormatFloat(user.TotalBet, 'f', 2, 64),
		"total_won": strconv.FormatFloat(user.TotalWon, 'f', 2, 64),
	}, traceID)
}

func (c *UserController) Bets() {
	traceID := helper.GetTraceID(c.Ctx)
	platformID, platformUserID, ok := platformIdentity(c)
	if !ok {
		response.Error(&c.Controller, 401, response.CodeUnauthorized, traceID)
		return
	}

	var roundNumber int64
	if rs := c.Ctx.Input.Query("round_number"); rs != "" {
		v, err := strconv.ParseInt(rs, 10, 64)
		if err != nil || v <= 0 {
			response.BadRequest(&c.Controller, "round_number must be a positive integer", traceID)
			return
		}
		roundNumber = v
	}
	limit := 10
	if ls := c.Ctx.Input.Query("limit"); ls != "" {
		if v, err := strconv.Atoi(ls); err == nil && v > 0 {
			limit = v
		}
	}

	// range=today|week|month 按投注时间过滤（自然日/周/月，东八区）
	var startMs, endMs int64
	switch c.Ctx.Input.Query("range") {
	case "":
	case "today":
		s, e := common.GetTodayRange(time.Now())
		startMs, endMs = s*1000, e*1000
	case "week":
		s, e := common.GetWeekRange(time.Now())
		startMs, endMs = s*1000, e*1000
	case "month":
		s, e := common.GetMonthRange(time.Now())
		startMs, endMs = s*1000, e*1000
	default:
		response.BadRequest(&c.Controller, "range must be one of today/week/month", traceID)
		return
	}

	records, err := model.ListUserBets(c.Ctx.Request.Context(), infmysql.ReadDB(), platformID, platformUserID, roundNumber, startMs, endMs, limit)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]any{"bets": records}, traceID)
}

func (c *UserController) Ledger() {
	traceID := helper.GetTraceID(c.Ctx)
	platformID, platformUserID, ok := platformIdentity(c)
	if !ok {
		response.Error(&c.Controller, 401, response.CodeUnauthorized, traceID)
		return
	}

	ctx := c.Ctx.Request.Context()
	user, err := model.GetUserByPlatformUser(ctx, infmysql.ReadDB(), platformID, platformUserID)
	if err != nil {
		if err == sql.ErrNoRows {
			response.Success(&c.Controller, map[string]any{"ledger": []any{}}, traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	limit := 20
	if ls := c.Ctx.Input.Query("limit"); ls != "" {
		if v, err := strconv.Atoi(ls); err == nil && v > 0 {
			limit = v
		}
	}

	ledger, err := model.ListUserLedger(ctx, infmysql.ReadDB(), user.ID, limit)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]any{"ledger": ledger}, traceID)
}
