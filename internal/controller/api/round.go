package api

import (
	"errors"
	"strconv"

	helper "lucky10-server/internal/common/helper"
	"lucky10-server/internal/common/response"
	"lucky10-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"
)

var newRoundService = service.NewRoundService

// RoundController 回合查询接口
// GET /api/round/current    当前开放回合（倒计时）
// GET /api/round/:round_number  历史回合详情（含开奖号码）
// GET /api/rounds           最近回合列表
type RoundController struct{ beego.Controller }

func (c *RoundController) GetCurrent() {
	traceID := helper.GetTraceID(c.Ctx)
	svc := newRoundService()

	snap, err := svc.GetCurrentRound(c.Ctx.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrNoActiveRound) {
			response.Error(&c.Controller, 404, response.CodeNoActiveRound, traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, snap, traceID)
}

func (c *RoundController) GetByNumber() {
	traceID := helper.GetTraceID(c.Ctx)
	numStr := c.Ctx.Input.Param(":round_number")
	num, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil || num <= 0 {
		response.BadRequest(&c.Controller, "round_number must be a positive integer", traceID)
		return
	}

	svc := newRoundService()
	detail, err := svc.GetRoundByNumber(c.Ctx.Request.Context(), num)
	if err != nil {
		if errors.Is(err, service.ErrRoundNotFound) {
			response.NotFound(&c.Controller, "回合不存在", traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, detail, traceID)
}

func (c *RoundController) ListRecent() {
	traceID := helper.GetTraceID(c.Ctx)
	limit := 20
	if ls := c.Ctx.Input.Query("limit"); ls != "" {
		if v, err := strconv.Atoi(ls); err == nil && v > 0 {
			limit = v
		}
	}

	svc := newRoundService()
	rounds, err := svc.ListRecentRounds(c.Ctx.Request.Context(), limit)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]any{"rounds": rounds}, traceID)
}
