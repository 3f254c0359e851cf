package routers

import (
	"lucky10-server/internal/config"
	"lucky10-server/internal/controller/api"
	"lucky10-server/internal/metrics"
	"lucky10-server/internal/middleware"

	beego "github.com/beego/beego/v2/server/web"
)

// init 注册HTTP路由与全局过滤器
func init() {
	cfg := config.Get()

	// 全局过滤器（按执行顺序）
	// 1. Panic Recovery（最先执行，捕获所有 panic）
	beego.InsertFilter("/*", beego.BeforeRouter, middleware.RecoveryFilter)

	// 2. 请求ID注入
	beego.InsertFilter("/*", beego.BeforeRouter, middleware.RequestIDFilter)

	// 3. CORS 处理（如果启用）
	if cfg != nil && cfg.CORS.Enabled {
		beego.InsertFilter("/*", beego.BeforeExec, middleware.CORSFilter)
	}

	// 4. HTTP 指标收集
	beego.InsertFilter("/*", beego.BeforeExec, metrics.HTTPMetricsFilter)
	beego.InsertFilter("/*", beego.FinishRouter, metrics.HTTPMetricsAfter)

	// 健康检查（无需认证）
	beego.Router("/healthz", &api.HealthController{}, "get:Healthz")
	beego.Router("/readyz", &api.HealthController{}, "get:Readyz")

	// ========== 业务 API（需要认证） ==========

	// 投注接口：平台认证 + 限流
	if cfg != nil && cfg.Auth.DemoMode {
		// 演示模式：简化认证
		beego.InsertFilter("/api/bet", beego.BeforeExec, middleware.DemoAuthFilter)
	} else {
		// 生产模式：平台签名认证
		beego.InsertFilter("/api/bet", beego.BeforeExec, middleware.PlatformAuthFilter)
	}
	if cfg != nil && cfg.RateLimit.Enabled {
		beego.InsertFilter("/api/bet", beego.BeforeExec, middleware.RateLimitFilter)
	}
	beego.Router("/api/bet", &api.BetController{}, "post:Bet")

	// 用户查询接口：平台认证（用户只能查询自己的数据）
	if cfg != nil && cfg.Auth.DemoMode {
		beego.InsertFilter("/api/user/*", beego.BeforeExec, middleware.DemoAuthFilter)
	} else {
		beego.InsertFilter("/api/user/*", beego.BeforeExec, middleware.PlatformAuthFilter)
		// 配置了 JWT 时叠加用户级 Token 校验（校验 Token 与平台一致性）
		if cfg != nil && cfg.Auth.JWT.Secret != "" {
			beego.InsertFilter("/api/user/*", beego.BeforeExec, middleware.UserAuthFilter)
		}
	}
	beego.Router("/api/user/balance", &api.UserController{}, "get:Balance")
	beego.Router("/api/user/bets", &api.UserController{}, "get:Bets")
	beego.Router("/api/user/ledger", &api.UserController{}, "get:Ledger")

	// 回合查询接口：公开只读
	beego.Router("/api/round/current", &api.RoundController{}, "get:GetCurrent")
	beego.Router("/api/round/:round_number([0-9]+)", &api.RoundController{}, "get:GetByNumber")
	beego.Router("/api/rounds", &api.RoundController{}, "get:ListRecent")

	// ========== 管理 API（需要管理员认证） ==========

	if cfg != nil && cfg.Auth.Admin.Enabled {
		beego.InsertFilter("/api/admin/*", beego.BeforeExec, middleware.AdminAuthFilter)
	}
	// 人工开奖：到期回合立即开奖结算，幂等可重入
	beego.Router("/api/admin/rounds/draw", &api.AdminController{}, "post:Draw")
	// 手工触发调度巡检（与定时器共用入口，可并发）
	beego.Router("/api/admin/rounds/manage", &api.AdminController{}, "post:Manage")
	// 强制创建下一回合
	beego.Router("/api/admin/rounds/create", &api.AdminController{}, "post:CreateRound")
	// 人工调账
	beego.Router("/api/admin/adjust", &api.AdminController{}, "post:Adjust")

	// ========== Token 签发（平台认证后为终端用户换取 JWT） ==========

	if cfg == nil || !cfg.Auth.DemoMode {
		beego.InsertFilter("/api/auth/*", beego.BeforeExec, middleware.PlatformAuthFilter)
	} else {
		beego.InsertFilter("/api/auth/*", beego.BeforeExec, middleware.DemoAuthFilter)
	}
	beego.Router("/api/auth/token", &api.AuthController{}, "post:Token")
	beego.Router("/api/auth/refresh", &api.AuthController{}, "post:Refresh")
	beego.Router("/api/auth/logout", &api.AuthController{}, "post:Logout")
}
