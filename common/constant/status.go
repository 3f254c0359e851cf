package constant

// 回合状态
// 回合生命周期: pending(投注中) -> drawing(开奖结算中) -> completed(已完成)
const (
	RoundStatusPending   = 1 // 投注中（唯一开放回合）
	RoundStatusDrawing   = 2 // 开奖结算中（CAS 抢占后）
	RoundStatusCompleted = 3 // 已完成
)

// 注单状态
const (
	BetStatusPending = 1 // 待结算
	BetStatusSettled = 2 // 已结算（只结算一次）
)

// user status
const (
	StatusNormal  = 1 // 状态：正常
	StatusDeleted = 2 // 状态：已删除
)
