package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// SettlementLog 结算日志表（防止重复结算）
// round_id 上建唯一索引 uk_round，第二次插入报 1062 即视为已结算
type SettlementLog struct {
	ID             int64   `db:"id"`              // 自增ID
	RoundID        int64   `db:"round_id"`        // 回合ID
	RoundNumber    int64   `db:"round_number"`    // 回合号
	WinningNumbers string  `db:"winning_numbers"` // 开奖号码 JSON
	TotalBets      int     `db:"total_bets"`      // 结算注单总数
	TotalWinners   int     `db:"total_winners"`   // 中奖注单数
	TotalPayout    float64 `db:"total_payout"`    // 总派彩金额
	Operator       string  `db:"operator"`        // 操作人（scheduler 或管理员）
	TraceID        string  `db:"trace_id"`        // 链路追踪ID
	CreatedAt      int64   `db:"created_at"`      // 创建时间（13位毫秒时间戳）
}

// CreateSettlementLog 创建结算日志（利用唯一索引防止重复结算）
// 如果返回唯一键冲突错误，说明该回合已经结算过
func CreateSettlementLog(ctx context.Context, exec sqlx.ExtContext, log *SettlementLog) error {
	now := time.Now().UnixMilli()
	log.CreatedAt = now

	sqlStr := `INSERT INTO settlement_log (round_id, round_number, winning_numbers, total_bets, total_winners, total_payout, operator, trace_id, created_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := exec.ExecContext(ctx, sqlStr,
		log.RoundID, log.RoundNumber, log.WinningNumbers, log.TotalBets, log.TotalWinners, log.TotalPayout, log.Operator, log.TraceID, log.CreatedAt)

	if err != nil {
		return err
	}

	id, _ := result.LastInsertId()
	log.ID = id

	return nil
}

// UpdateSettlementStats 结算完成后回填统计信息
func UpdateSettlementStats(ctx context.Context, exec sqlx.ExtContext, roundID int64, totalBets, totalWinners int, totalPayout float64) error {
	sqlStr := `UPDATE settlement_log SET total_bets = ?, total_winners = ?, total_payout = ? WHERE round_id = ?`
	_, err := exec.ExecContext(ctx, sqlStr, totalBets, totalWinners, totalPayout, roundID)
	return err
}
