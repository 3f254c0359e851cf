package api

import (
	"errors"

	helper "lucky10-server/internal/common/helper"
	"lucky10-server/internal/common/response"
	"lucky10-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"
)

var (
	newDrawService      = service.NewDrawService
	newSchedulerService = func() service.SchedulerService {
		return service.NewSchedulerService(service.NewDrawService())
	}
	newLedgerService = service.NewLedgerService
)

// AdminController 运营后台接口（需管理员鉴权，见路由过滤器）
// POST /api/admin/rounds/draw     人工开奖（可指定 round_number）
// POST /api/admin/rounds/manage   手工触发一轮调度巡检
// POST /api/admin/rounds/create   创建下一回合（已有开放回合时拒绝）
// POST /api/admin/adjust          人工调账
type AdminController struct{ beego.Controller }

// Draw 人工开奖：到期回合立即开奖结算；重复调用幂等返回既有结果
func (c *AdminController) Draw() {
	traceID := helper.GetTraceID(c.Ctx)
	dp, ok, msg := helper.ParseAndValidateDraw(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}

	operator := adminOperator(c)
	out, err := newDrawService().DrawRound(c.Ctx.Request.Context(), dp.RoundNumber, operator, traceID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRoundNotFound):
			response.NotFound(&c.Controller, "回合不存在", traceID)
		case errors.Is(err, service.ErrNotExpiredYet):
			response.Conflict(&c.Controller, response.CodeNotExpiredYet, traceID)
		case errors.Is(err, service.ErrAlreadyDrawn):
			response.Conflict(&c.Controller, response.CodeAlreadyDrawn, traceID)
		default:
			response.InternalError(&c.Controller, traceID)
		}
		return
	}

	response.Success(&c.Controller, map[string]any{
		"round_number":    out.RoundNumber,
		"winning_numbers": out.WinningNumbers,
		"total_bets":      out.TotalBets,
		"total_winners":   out.TotalWinners,
		"total_payout":    out.TotalPayout,
		"settled_now":     out.Settled,
	}, traceID)
}

// Manage 手工触发调度巡检：与定时器共用 AutoManageRounds，可安全并发
// 无事可做是正常的成功空跑，返回空动作列表而非错误
func (c *AdminController) Manage() {
	traceID := helper.GetTraceID(c.Ctx)

	res := newSchedulerService().AutoManageRounds(c.Ctx.Request.Context(), "manual")
	if !res.Success {
		response.ErrorWithMessage(&c.Controller, 500, response.CodeSystemError,
			"部分回合处理失败，详见 errors", traceID)
		return
	}

	response.Success(&c.Controller, res, traceID)
}

// CreateRound 创建下一回合（回合号 MAX+1）
// 已有开放回合时返回 CodeNoActionNeeded：开放回合必须唯一
func (c *AdminController) CreateRound() {
	traceID := helper.GetTraceID(c.Ctx)
	operator := adminOperator(c)

	num, err := newSchedulerService().CreateRound(c.Ctx.Request.Context(), operator, traceID)
	if err != nil {
		if errors.Is(err, service.ErrNoActionNeeded) {
			response.Conflict(&c.Controller, response.CodeNoActionNeeded, traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]any{"round_number": num}, traceID)
}

// Adjust 人工调账：正数入账负数扣减，余额不允许为负
func (c *AdminController) Adjust() {
	traceID := helper.GetTraceID(c.Ctx)
	ap, ok, msg := helper.ParseAndValidateAdjust(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}

	platformID := int8(0)
	if v := c.Ctx.Input.GetData("platform_id"); v != nil {
		if pid, ok := v.(int8); ok {
			platformID = pid
		}
	}

	out, err := newLedgerService().Adjust(c.Ctx.Request.Context(), service.AdjustInput{
		PlatformID:     platformID,
		PlatformUserID: ap.PlatformUserID,
		Amount:         ap.Amount,
		Remark:         ap.Remark,
		Operator:       adminOperator(c),
		TraceID:        traceID,
	})
	if err != nil {
		if errors.Is(err, service.ErrNegativeBalance) {
			response.BadRequest(&c.Controller, "调整后余额不能为负", traceID)
			return
		}
		var ve *service.ValidationError
		if errors.As(err, &ve) {
			response.BadRequest(&c.Controller, ve.Reason, traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]any{
		"user_id": out.UserID,
		"balance": out.Balance,
	}, traceID)
}

// adminOperator 从鉴权中间件注入的数据提取操作人标识
func adminOperator(c *AdminController) string {
	if v := c.Ctx.Input.GetData("admin_user"); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "admin"
}
