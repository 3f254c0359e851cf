package model

import (
	"context"
	"time"

	g "github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"

	"lucky10-server/common"
)

// Bet 对应 bets 表
// 说明：一张注单含多个子注（位置+号码+金额），子注以 JSON 数组冗余存储
// status: 1=待结算 2=已结算
// matched_positions 为结算时命中的位置列表 JSON（未结算为空串）
type Bet struct {
	BillNo           string  `db:"bill_no"`           // 注单号(主键)
	RoundID          int64   `db:"round_id"`          // 回合ID
	RoundNumber      int64   `db:"round_number"`      // 回合号（冗余，便于查询展示）
	UserID           int64   `db:"user_id"`           // 用户ID（内部ID）
	PlatformID       int8    `db:"platform_id"`       // 平台ID
	PlatformUserID   string  `db:"platform_user_id"`  // 平台用户ID
	UserName         string  `db:"user_name"`         // 用户名
	SubBets          string  `db:"sub_bets"`          // 子注列表 JSON
	SubBetCount      int     `db:"sub_bet_count"`     // 子注数量
	TotalAmount      float64 `db:"total_amount"`      // 总下注金额(非负)
	Odds             float64 `db:"odds"`              // 下注时锁定的赔率
	PotentialPayout  float64 `db:"potential_payout"`  // 理论最大派彩 = 总额×赔率
	ActualPayout     float64 `db:"actual_payout"`     // 实际派彩（结算后写入）
	IsWinner         int8    `db:"is_winner"`         // 是否中奖: 0=否 1=是
	MatchedPositions string  `db:"matched_positions"` // 命中位置 JSON
	Status           int8    `db:"status"`            // 注单状态
	Currency         string  `db:"currency"`          // 币种
	IdempotencyKey   string  `db:"idempotency_key"`   // 幂等键
	BetTime          int64   `db:"bet_time"`          // 下注时间（毫秒）
	TraceID          string  `db:"trace_id"`          // 链路追踪ID
	CreatedAt        int64   `db:"created_at"`        // 创建时间
	UpdatedAt        int64   `db:"updated_at"`        // 更新时间
}

// Insert 插入一条注单
func (b *Bet) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	bt := b.BetTime
	if bt == 0 {
		bt = now
	}
	sqlStr := `INSERT INTO bets (bill_no, round_id, round_number, user_id, platform_id, platform_user_id, user_name,
		sub_bets, sub_bet_count, total_amount, odds, potential_payout, actual_payout, is_winner, matched_positions,
		status, currency, idempotency_key, bet_time, trace_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := exec.ExecContext(ctx, sqlStr, b.BillNo, b.RoundID, b.RoundNumber, b.UserID, b.PlatformID, b.PlatformUserID, b.UserName,
		b.SubBets, b.SubBetCount, b.TotalAmount, b.Odds, b.PotentialPayout, b.ActualPayout, b.IsWinner, b.MatchedPositions,
		b.Status, b.Currency, b.IdempotencyKey, bt, b.TraceID, now, now)
	return err
}

// ListPendingByRoundForUpdate 按回合查询待结算注单（FOR UPDATE），需要在事务中调用
// 只取待结算行，重放时已结算的注单不会再次出现在结果集中
func ListPendingByRoundForUpdate(ctx context.Context, exec sqlx.ExtContext, roundID int64) ([]Bet, error) {
	sqlStr := `SELECT bill_no, round_id, round_number, user_id, platform_id, platform_user_id, user_name,
		sub_bets, sub_bet_count, total_amount, odds, potential_payout, currency
		FROM bets WHERE round_id = ? AND status = 1 FOR UPDATE`
	var bs []Bet
	if err := sqlx.SelectContext(ctx, exec, &bs, sqlStr, roundID); err != nil {
		return nil, err
	}
	return bs, nil
}

// UpdateSettlement 写入派彩结果并置为已结算（带状态过滤，天然幂等）
func UpdateSettlement(ctx context.Context, exec sqlx.ExtContext, billNo string, actualPayout float64, isWinner int8, matchedPositions string) (bool, error) {
	now := time.Now().UnixMilli()
	sqlStr := `UPDATE bets SET actual_payout = ?, is_winner = ?, matched_positions = ?, status = 2, updated_at = ?
		WHERE bill_no = ? AND status = 1`
	res, err := exec.ExecContext(ctx, sqlStr, actualPayout, isWinner, matchedPositions, now, billNo)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// GetBetByIdempotencyKey 按幂等键查询注单（重复提交命中缓存穿透时兜底）
func GetBetByIdempotencyKey(ctx context.Context, exec sqlx.ExtContext, platformID int8, key string) (*Bet, error) {
	sqlStr := `SELECT bill_no, round_id, round_number, user_id, sub_bets, sub_bet_count,
		total_amount, odds, potential_payout, actual_payout, status, bet_time, created_at, updated_at
		FROM bets WHERE platform_id = ? AND idempotency_key = ?`
	var b Bet
	if err := sqlx.GetContext(ctx, exec, &b, sqlStr, platformID, key); err != nil {
		return nil, err
	}
	return &b, nil
}

// RoundSettlementStats 回合结算聚合（总注单/中奖注单/总派彩）
type RoundSettlementStats struct {
	TotalBets    int     `db:"total_bets"`
	TotalWinners int     `db:"total_winners"`
	TotalPayout  float64 `db:"total_payout"`
}

// GetRoundSettlementStats 全量聚合回合结算结果（重算而非累加）
func GetRoundSettlementStats(ctx context.Context, exec sqlx.ExtContext, roundID int64) (*RoundSettlementStats, error) {
	sqlStr := `SELECT COUNT(1) AS total_bets,
		COALESCE(SUM(is_winner), 0) AS total_winners,
		COALESCE(SUM(actual_payout), 0) AS total_payout
		FROM bets WHERE round_id = ?`
	var st RoundSettlementStats
	if err := sqlx.GetContext(ctx, exec, &st, sqlStr, roundID); err != nil {
		return nil, err
	}
	return &st, nil
}

// BetRecord 投注记录（用于查询接口）
type BetRecord struct {
	BillNo           string  `db:"bill_no" json:"bill_no"`
	RoundNumber      int64   `db:"round_number" json:"round_number"`
	SubBets          string  `db:"sub_bets" json:"sub_bets"`
	TotalAmount      float64 `db:"total_amount" json:"total_amount"`
	Odds             float64 `db:"odds" json:"odds"`
	PotentialPayout  float64 `db:"potential_payout" json:"potential_payout"`
	ActualPayout     float64 `db:"actual_payout" json:"actual_payout"`
	IsWinner         int8    `db:"is_winner" json:"is_winner"`
	MatchedPositions string  `db:"matched_positions" json:"matched_positions"`
	Status           int8    `db:"status" json:"status"`
	BetTime          int64   `db:"bet_time" json:"bet_time"`
	CreatedAt        int64   `db:"created_at" json:"created_at"`
	UpdatedAt        int64   `db:"updated_at" json:"updated_at"`
}

// ListUserBets 查询用户的投注记录（按平台用户ID查询）
// roundNumber 为 0 时查询全部回合；startMs/endMs 为投注时间半开区间 [start, end)，同为 0 时不限
func ListUserBets(ctx context.Context, db *sqlx.DB, platformID int8, platformUserID string, roundNumber int64, startMs, endMs int64, limit int) ([]BetRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	// 动态过滤条件走 goqu 组装
	ex := []exp.Expression{
		g.C("platform_id").Eq(platformID),
		g.C("platform_user_id").Eq(platformUserID),
	}
	if roundNumber > 0 {
		ex = append(ex, g.C("round_number").Eq(roundNumber))
	}
	if startMs > 0 {
		ex = append(ex, g.C("bet_time").Gte(startMs))
	}
	if endMs > 0 {
		ex = append(ex, g.C("bet_time").Lt(endMs))
	}

	var records []BetRecord
	err := common.SelectAllCtx(ctx, &records, common.QueryArg{
		Db:     db,
		Table:  "bets",
		Fields: common.EnumFields(BetRecord{}),
		Ex:     ex,
		Order:  []exp.OrderedExpression{g.C("bet_time").Desc()},
		Limit:  uint(limit),
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
