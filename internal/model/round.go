package model

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"lucky10-server/common/constant"
)

// GameRound 对应 game_rounds 表
// 说明：时间为毫秒时间戳；开奖结果以 JSON 数组字符串冗余存储（10 个位置各一个号码）
// status: 1=待开奖 2=开奖中 3=已结算
// winning_numbers 为空串表示尚未开奖（只写一次，结算后不可覆盖）
type GameRound struct {
	ID             int64          `db:"id"`
	RoundNumber    int64          `db:"round_number"`
	Status         int8           `db:"status"`
	WinningNumbers sql.NullString `db:"winning_numbers"`
	TotalBetsCount int            `db:"total_bets_count"`
	TotalBetAmount float64        `db:"total_bet_amount"`
	TotalPayout    float64        `db:"total_payout"`
	StartTime      int64          `db:"start_time"`
	EndTime        int64          `db:"end_time"`
	DrawTime       int64          `db:"draw_time"`
	TraceID        string         `db:"trace_id"`
	CreatedAt      int64          `db:"created_at"`
	UpdatedAt      int64          `db:"updated_at"`
}

const roundColumns = `id, round_number, status, winning_numbers, total_bets_count, total_bet_amount, total_payout,
	start_time, end_time, draw_time, trace_id, created_at, updated_at`

// CreateNextRound 原子分配回合号并插入新回合（MAX+1，无空洞）
// INSERT ... SELECT 在同一条语句中取号，并发下由唯一键 uk_round_number 兜底
func CreateNextRound(ctx context.Context, exec sqlx.ExtContext, duration time.Duration, traceID string) (int64, error) {
	now := time.Now().UnixMilli()
	endAt := now + duration.Milliseconds()
	sqlStr := `INSERT INTO game_rounds (round_number, status, start_time, end_time, trace_id, created_at, updated_at)
		SELECT COALESCE(MAX(round_number), 0) + 1, ?, ?, ?, ?, ?, ?
		FROM game_rounds AS gr`
	res, err := exec.ExecContext(ctx, sqlStr, constant.RoundStatusPending, now, endAt, traceID, now, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetRound 按主键查询（不加锁）
func GetRound(ctx context.Context, exec sqlx.ExtContext, roundID int64) (*GameRound, error) {
	sqlStr := "SELECT " + roundColumns + " FROM game_rounds WHERE id = ?"
	var r GameRound
	if err := sqlx.GetContext(ctx, exec, &r, sqlStr, roundID); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRoundByNumber 按回合号查询（不加锁）
func GetRoundByNumber(ctx context.Context, exec sqlx.ExtContext, roundNumber int64) (*GameRound, error) {
	sqlStr := "SELECT " + roundColumns + " FROM game_rounds WHERE round_number = ?"
	var r GameRound
	if err := sqlx.GetContext(ctx, exec, &r, sqlStr, roundNumber); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetCurrentRound 取最新的待开奖回合（投注入口）
func GetCurrentRound(ctx context.Context, exec sqlx.ExtContext) (*GameRound, error) {
	sqlStr := "SELECT " + roundColumns + ` FROM game_rounds
		WHERE status = ? ORDER BY round_number DESC LIMIT 1`
	var r GameRound
	if err := sqlx.GetContext(ctx, exec, &r, sqlStr, constant.RoundStatusPending); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRoundForUpdate 在事务中按回合ID加锁（投注时校验时间窗口与状态）
func GetRoundForUpdate(ctx context.Context, exec sqlx.ExtContext, roundID int64) (*GameRound, error) {
	sqlStr := "SELECT " + roundColumns + " FROM game_rounds WHERE id = ? FOR UPDATE"
	var r GameRound
	if err := sqlx.GetContext(ctx, exec, &r, sqlStr, roundID); err != nil {
		return nil, err
	}
	return &r, nil
}

// ListExpiredPending 查询所有已过期但仍待开奖的回合（按回合号升序，先到期先结算）
func ListExpiredPending(ctx context.Context, exec sqlx.ExtContext, nowMs int64) ([]GameRound, error) {
	sqlStr := "SELECT " + roundColumns + ` FROM game_rounds
		WHERE status = ? AND end_time <= ? ORDER BY round_number ASC`
	var rs []GameRound
	if err := sqlx.SelectContext(ctx, exec, &rs, sqlStr, constant.RoundStatusPending, nowMs); err != nil {
		return nil, err
	}
	return rs, nil
}

// ListExpiredDrawing 查询所有滞留在开奖中的到期回合（按回合号升序）
// 正常流程中开奖与结算在同一事务内完成，出现滞留说明进程在两者之间崩溃过
func ListExpiredDrawing(ctx context.Context, exec sqlx.ExtContext, nowMs int64) ([]GameRound, error) {
	sqlStr := "SELECT " + roundColumns + ` FROM game_rounds
		WHERE status = ? AND end_time <= ? ORDER BY round_number ASC`
	var rs []GameRound
	if err := sqlx.SelectContext(ctx, exec, &rs, sqlStr, constant.RoundStatusDrawing, nowMs); err != nil {
		return nil, err
	}
	return rs, nil
}

// HasActiveRound 是否存在未到期的待开奖回合
func HasActiveRound(ctx context.Context, exec sqlx.ExtContext, nowMs int64) (bool, error) {
	var cnt int
	sqlStr := "SELECT COUNT(1) FROM game_rounds WHERE status = ? AND end_time > ?"
	if err := sqlx.GetContext(ctx, exec, &cnt, sqlStr, constant.RoundStatusPending, nowMs); err != nil {
		return false, err
	}
	return cnt > 0, nil
}

// ClaimForDraw 条件更新抢占开奖权：仅当回合仍为待开奖时置为目标状态
// 目标状态码由调用方经状态机计算；返回 false 表示已被其他调用方抢走
func ClaimForDraw(ctx context.Context, exec sqlx.ExtContext, roundID int64, toStatus int8) (bool, error) {
	now := time.Now().UnixMilli()
	sqlStr := "UPDATE game_rounds SET status = ?, updated_at = ? WHERE id = ? AND status = ?"
	res, err := exec.ExecContext(ctx, sqlStr, toStatus, now, roundID, constant.RoundStatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SetWinningNumbers 写入开奖结果（只写一次：已有结果的行不会被覆盖）
func SetWinningNumbers(ctx context.Context, exec sqlx.ExtContext, roundID int64, numbersJSON string) (bool, error) {
	now := time.Now().UnixMilli()
	sqlStr := `UPDATE game_rounds SET winning_numbers = ?, draw_time = ?, updated_at = ?
		WHERE id = ? AND winning_numbers IS NULL`
	res, err := exec.ExecContext(ctx, sqlStr, numbersJSON, now, now, roundID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkCompleted 条件更新：仅当回合处于开奖中时置为目标状态（状态机计算）
func MarkCompleted(ctx context.Context, exec sqlx.ExtContext, roundID int64, toStatus int8) (bool, error) {
	now := time.Now().UnixMilli()
	sqlStr := "UPDATE game_rounds SET status = ?, updated_at = ? WHERE id = ? AND status = ?"
	res, err := exec.ExecContext(ctx, sqlStr, toStatus, now, roundID, constant.RoundStatusDrawing)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// IncrementBetAggregates 投注成功后累计回合的注单数与投注总额（同一事务内）
func IncrementBetAggregates(ctx context.Context, exec sqlx.ExtContext, roundID int64, amount float64) error {
	now := time.Now().UnixMilli()
	sqlStr := `UPDATE game_rounds SET total_bets_count = total_bets_count + 1,
		total_bet_amount = total_bet_amount + ?, updated_at = ? WHERE id = ?`
	_, err := exec.ExecContext(ctx, sqlStr, amount, now, roundID)
	return err
}

// RecomputeTotals 从投注表重新聚合回合的注单数、总投注与总派彩（不做累加，避免重放叠加）
func RecomputeTotals(ctx context.Context, exec sqlx.ExtContext, roundID int64) error {
	now := time.Now().UnixMilli()
	sqlStr := `UPDATE game_rounds SET
		total_bets_count = (SELECT COUNT(1) FROM bets WHERE round_id = ?),
		total_bet_amount = (SELECT COALESCE(SUM(total_amount), 0) FROM bets WHERE round_id = ?),
		total_payout = (SELECT COALESCE(SUM(actual_payout), 0) FROM bets WHERE round_id = ?),
		updated_at = ?
		WHERE id = ?`
	_, err := exec.ExecContext(ctx, sqlStr, roundID, roundID, roundID, now, roundID)
	return err
}

// ListRecentRounds 历史回合列表（已结算优先展示，供前端开奖记录页）
func ListRecentRounds(ctx context.Context, exec sqlx.ExtContext, limit int) ([]GameRound, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	sqlStr := "SELECT " + roundColumns + " FROM game_rounds ORDER BY round_number DESC LIMIT ?"
	var rs []GameRound
	if err := sqlx.SelectContext(ctx, exec, &rs, sqlStr, limit); err != nil {
		return nil, err
	}
	return rs, nil
}
