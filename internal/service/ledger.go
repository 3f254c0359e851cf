package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"lucky10-server/common/constant"
	infmysql "lucky10-server/internal/infra/mysql"
	"lucky10-server/internal/model"

	"github.com/jmoiron/sqlx"
	decimal "github.com/shopspring/decimal"
)

// 余额变动全部经由本文件：下注扣款在 bet.go 的事务内调用模型层，
// 结算派彩与人工调账走这里，保证逐用户串行（行锁）且每笔都有账本

// userPayout 一个用户在一轮结算中的派彩汇总
type userPayout struct {
	userID  int64
	total   decimal.Decimal
	bills   []string
	amounts []decimal.Decimal
}

// creditWinnersInTx 按用户分组派彩：每个用户只锁定一次，账本逐单记录
// 按 user_id 升序加锁，避免并发结算路径交叉锁导致死锁
func creditWinnersInTx(ctx context.Context, tx *sqlx.Tx, round *model.GameRound, payoutByUser map[int64]*userPayout, traceID string) error {
	userIDs := make([]int64, 0, len(payoutByUser))
	for id := range payoutByUser {
		userIDs = append(userIDs, id)
	}
	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i] < userIDs[j] })

	for _, uid := range userIDs {
		up := payoutByUser[uid]

		user, err := model.GetUserByIDForUpdate(ctx, tx, uid)
		if err != nil {
			return err
		}

		beforeDec := decimal.NewFromFloat(user.Balance)
		afterDec := beforeDec.Add(up.total).Round(2)

		if err := model.CreditForPayout(ctx, tx, uid, afterDec.InexactFloat64(), up.total.Round(2).InexactFloat64()); err != nil {
			return err
		}

		// 每笔注单一条账本，before/after 链式推进
		currentDec := beforeDec
		for idx, billNo := range up.bills {
			payoutDec := up.amounts[idx]
			nextDec := currentDec.Add(payoutDec).Round(2)

			ledger := &model.WalletLedger{
				UserID:       uid,
				BizType:      constant.BalanceChangePayout,
				BizTypeStr:   "payout",
				Amount:       payoutDec.Round(2).InexactFloat64(),
				BeforeAmount: currentDec.Round(2).InexactFloat64(),
				AfterAmount:  nextDec.InexactFloat64(),
				Currency:     "CNY",
				BillNo:       billNo,
				RoundID:      round.ID,
				RoundNumber:  round.RoundNumber,
				Remark:       "bet payout",
				TraceID:      traceID,
			}
			if err := ledger.Insert(ctx, tx); err != nil {
				return err
			}
			currentDec = nextDec
		}
	}
	return nil
}

// AdjustInput 人工调账输入
type AdjustInput struct {
	PlatformID     int8
	PlatformUserID string
	Amount         string // 正数入账，负数扣减
	Remark         string
	Operator       string
	TraceID        string
}

type AdjustOutput struct {
	UserID  int64
	Balance string
}

type LedgerService interface {
	// Adjust 人工调账（运营后台），余额不允许调成负数
	Adjust(ctx context.Context, in AdjustInput) (*AdjustOutput, error)
	// ListLedger 查询用户账本流水
	ListLedger(ctx context.Context, userID int64, limit int) ([]model.WalletLedger, error)
}

type ledgerService struct{}

func NewLedgerService() LedgerService { return &ledgerService{} }

var ErrNegativeBalance = errors.New("adjustment would make balance negative")

func (s *ledgerService) Adjust(ctx context.Context, in AdjustInput) (*AdjustOutput, error) {
	amtDec, err := decimal.NewFromString(in.Amount)
	if err != nil || amtDec.IsZero() {
		return nil, invalidBet("invalid adjust amount %q", in.Amount)
	}

	tx, err := infmysql.SQLX().BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	user, err := model.GetUserByPlatformUserForUpdate(ctx, tx, in.PlatformID, in.PlatformUserID)
	if err != nil {
		return nil, err
	}

	beforeDec := decimal.NewFromFloat(user.Balance)
	afterDec := beforeDec.Add(amtDec).Round(2)
	if afterDec.IsNegative() {
		return nil, ErrNegativeBalance
	}

	if err := model.UpdateUserBalance(ctx, tx, user.ID, afterDec.InexactFloat64()); err != nil {
		return nil, err
	}

	ledger := &model.WalletLedger{
		UserID:       user.ID,
		BizType:      constant.BalanceChangeAdjust,
		BizTypeStr:   "adjust",
		Amount:       amtDec.Abs().Round(2).InexactFloat64(),
		BeforeAmount: beforeDec.Round(2).InexactFloat64(),
		AfterAmount:  afterDec.InexactFloat64(),
		Currency:     "CNY",
		Remark:       fmt.Sprintf("manual adjust by %s: %s", in.Operator, in.Remark),
		TraceID:      in.TraceID,
	}
	if err := ledger.Insert(ctx, tx); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &AdjustOutput{UserID: user.ID, Balance: afterDec.StringFixed(2)}, nil
}

func (s *ledgerService) ListLedger(ctx context.Context, userID int64, limit int) ([]model.WalletLedger, error) {
	return model.ListUserLedger(ctx, infmysql.ReadDB(), userID, limit)
}
