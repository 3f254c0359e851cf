package api

import (
	"errors"

	helper "lucky10-server/internal/common/helper"
	"lucky10-server/internal/common/response"
	"lucky10-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"

	mysqlerr "github.com/go-sql-driver/mysql"
)

var newBetService = service.NewBetService

type BetController struct{ beego.Controller }

// Bet 处理投注接口：POST /api/bet
// 请求体：{ sub_bets: [{position, number, amount}], total_amount, idempotency_key }
// 幂等约定：同一次下注的所有重试传相同 idempotency_key；
// 服务端多层防护：Redis 进行中锁 → MySQL 幂等键唯一索引 → 结果缓存
func (c *BetController) Bet() {
	// 1) 解析入参与基本校验
	// 这里必须要对业务参数严格校验，后续service不再重复校验形状之外的字段
	bp, ok, msg := helper.ParseAndValidateBet(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, helper.GetTraceID(c.Ctx))
		return
	}

	svc := newBetService()
	traceID := helper.GetTraceID(c.Ctx)

	// 从 context 提取平台信息（由认证中间件注入）
	platformID := int8(0)
	platformUserID := ""
	platformUserName := ""

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
	if v := c.Ctx.Input.GetData("platform_user_name"); v != nil {
		if pname, ok := v.(string); ok {
			platformUserName = pname
		}
	}
	if platformUserID == "" {
		response.Error(&c.Controller, 401, response.CodeUnauthorized, traceID)
		return
	}

	subBets := make([]service.SubBetInput, 0, len(bp.SubBets))
	for _, sb := range bp.SubBets {
		subBets = append(subBets, service.SubBetInput{
			Position: sb.Position,
			Number:   sb.Number,
			Amount:   sb.Amount,
		})
	}

	out, err := svc.PlaceBet(c.Ctx.Request.Context(), service.BetInput{
		PlatformID:       platformID,
		PlatformUserID:   platformUserID,
		PlatformUserName: platformUserName,
		SubBets:          subBets,
		TotalAmount:      bp.TotalAmount,
		IdempotencyKey:   bp.IdempotencyKey,
		TraceID:          traceID,
	})
	if err != nil {
		// MySQL 唯一键冲突
		if me, ok := err.(*mysqlerr.MySQLError); ok && me.Number == 1062 {
			response.Conflict(&c.Controller, response.CodeDuplicateKey, traceID)
			return
		}
		// 重复请求进行中
		if errors.Is(err, service.ErrDuplicateInFlight) {
			response.Accepted(&c.Controller, "重复请求进行中，请稍后重试", traceID)
			return
		}
		// 无开放回合（包括已到期但未收割的回合）
		if errors.Is(err, service.ErrNoActiveRound) {
			response.Conflict(&c.Controller, response.CodeNoActiveRound, traceID)
			return
		}
		// 余额不足
		if errors.Is(err, service.ErrInsufficientBalance) {
			response.Error(&c.Controller, 400, response.CodeInsufficientBalance, traceID)
			return
		}
		// 用户状态异常
		if errors.Is(err, service.ErrUserDisabled) {
			response.Error(&c.Controller, 400, response.CodeUserDisabled, traceID)
			return
		}
		// 注单形状错误
		var ve *service.ValidationError
		if errors.As(err, &ve) {
			response.BadRequest(&c.Controller, ve.Reason, traceID)
			return
		}
		// 系统错误
		response.InternalError(&c.Controller, traceID)
		return
	}

	// 成功响应
	response.Success(&c.Controller, map[string]interface{}{
		"bill_no":          out.BillNo,
		"round_number":     out.RoundNumber,
		"total_amount":     out.TotalAmount,
		"potential_payout": out.PotentialPayout,
		"remain_amount":    out.RemainAmount,
	}, traceID)
}
