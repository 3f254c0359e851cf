package model

import (
	"context"
	"strings"
	"time"

	g "github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"

	"lucky10-server/common"
)

// WalletLedger 对应 wallet_ledger 表（追加式账本）
// 说明：金额为非负；方向由 before_amount/after_amount 与 biz_type 推导
// biz_type: 1=bet 下注 2=payout 派彩 3=refund 退款 4=adjust 后台调整
// 同时冗余 biz_type_str 便于查询
type WalletLedger struct {
	ID           int64   `db:"id"`
	UserID       int64   `db:"user_id"`
	BizType      int     `db:"biz_type"`
	BizTypeStr   string  `db:"biz_type_str"`
	Amount       float64 `db:"amount"`
	BeforeAmount float64 `db:"before_amount"`
	AfterAmount  float64 `db:"after_amount"`
	Currency     string  `db:"currency"`
	BillNo       string  `db:"bill_no"`
	RoundID      int64   `db:"round_id"`
	RoundNumber  int64   `db:"round_number"`
	Remark       string  `db:"remark"`
	TraceID      string  `db:"trace_id"`
	CreatedAt    int64   `db:"created_at"`
}

// Insert 新增一条账本记录（biz_type 数值码与字符串双写）
func (l *WalletLedger) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	code := l.BizType
	str := l.BizTypeStr
	if code == 0 && str != "" {
		switch strings.ToLower(str) {
		case "bet":
			code = 1
		case "payout":
			code = 2
		case "refund":
			code = 3
		case "adjust":
			code = 4
		}
	}
	if str == "" && code != 0 {
		switch code {
		case 1:
			str = "bet"
		case 2:
			str = "payout"
		case 3:
			str = "refund"
		case 4:
			str = "adjust"
		}
	}
	sqlStr := "INSERT INTO wallet_ledger (user_id, biz_type, biz_type_str, amount, before_amount, after_amount, currency, bill_no, round_id, round_number, remark, trace_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	args := []interface{}{l.UserID, code, str, l.Amount, l.BeforeAmount, l.AfterAmount, l.Currency, l.BillNo, l.RoundID, l.RoundNumber, l.Remark, l.TraceID, now}

	_, err := exec.ExecContext(ctx, sqlStr, args...)
	return err
}

// ListUserLedger 查询用户账本流水（对账接口）
func ListUserLedger(ctx context.Context, db *sqlx.DB, userID int64, limit int) ([]WalletLedger, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var ls []WalletLedger
	err := common.SelectAllCtx(ctx, &ls, common.QueryArg{
		Db:     db,
		Table:  "wallet_ledger",
		Fields: common.EnumFields(WalletLedger{}),
		Ex:     []exp.Expression{g.C("user_id").Eq(userID)},
		Order:  []exp.OrderedExpression{g.C("id").Desc()},
		Limit:  uint(limit),
	})
	if err != nil {
		return nil, err
	}
	return ls, nil
}
