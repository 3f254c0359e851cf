package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	infmysql "lucky10-server/internal/infra/mysql"
	infrds "lucky10-server/internal/infra/redis"
	"lucky10-server/internal/metrics"
	"lucky10-server/internal/model"
	"lucky10-server/internal/state"

	"github.com/jmoiron/sqlx"
	decimal "github.com/shopspring/decimal"
)

// DrawOutput 开奖+结算结果
type DrawOutput struct {
	RoundNumber    int64
	WinningNumbers []int
	TotalBets      int
	TotalWinners   int
	TotalPayout    float64
	// 本次调用是否实际执行了结算（false 表示幂等重放）
	Settled bool
}

type DrawService interface {
	// DrawRound 人工触发开奖：roundNumber 为 0 时取最早到期的待开奖回合
	DrawRound(ctx context.Context, roundNumber int64, operator, traceID string) (*DrawOutput, error)
	// DrawAndSettle 对指定回合执行开奖+结算（调度器与人工共用入口）
	DrawAndSettle(ctx context.Context, roundID int64, trigger, operator, traceID string) (*DrawOutput, error)
}

type drawService struct{}

func NewDrawService() DrawService { return &drawService{} }

var (
	ErrRoundNotFound = errors.New("round not found")
	ErrAlreadyDrawn  = errors.New("round already drawn")
	ErrNotExpiredYet = errors.New("round not expired yet")
)

// DrawRound 人工开奖入口
func (s *drawService) DrawRound(ctx context.Context, roundNumber int64, operator, traceID string) (*DrawOutput, error) {
	db := infmysql.SQLX()

	var roundID int64
	if roundNumber > 0 {
		r, err := model.GetRoundByNumber(ctx, db, roundNumber)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, ErrRoundNotFound
			}
			return nil, err
		}
		roundID = r.ID
	} else {
		// 未指定回合号：取最早到期的待开奖回合
		expired, err := model.ListExpiredPending(ctx, db, time.Now().UnixMilli())
		if err != nil {
			return nil, err
		}
		if len(expired) == 0 {
			return nil, ErrNotExpiredYet
		}
		roundID = expired[0].ID
	}

	return s.DrawAndSettle(ctx, roundID, "manual", operator, traceID)
}

// DrawAndSettle 开奖+结算主流程：
// 抢占开奖权(CAS) → 写开奖向量(只写一次) → 结算待结算注单 → 派彩 → 重算聚合 → 标记完成
// 任一阶段崩溃后重入均安全：开奖向量不会重生成，已结算注单不会再次派彩
func (s *drawService) DrawAndSettle(ctx context.Context, roundID int64, trigger, operator, traceID string) (*DrawOutput, error) {
	start := time.Now()
	resultLabel := "fail"
	defer func() { metrics.RecordDraw(resultLabel, trigger, start) }()

	tx, err := infmysql.SQLX().BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// 锁定回合行，后续所有状态判断基于锁内快照
	round, err := model.GetRoundForUpdate(ctx, tx, roundID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRoundNotFound
		}
		return nil, err
	}

	now := time.Now().UnixMilli()
	curState := state.FromCode(round.Status)

	switch curState {
	case state.StateCompleted:
		// 已结算：幂等重放，返回既有结果，不触碰任何余额
		out, err := s.replayCompleted(ctx, tx, round)
		if err != nil {
			return nil, err
		}
		resultLabel = "success"
		fmt.Printf("[Draw] 回合已结算，幂等返回: round_number=%d, trace_id=%s\n",
			round.RoundNumber, traceID)
		return out, nil

	case state.StatePending:
		if round.EndTime > now {
			fmt.Printf("[Draw] 回合未到期: round_number=%d, end_time=%d, now=%d, trace_id=%s\n",
				round.RoundNumber, round.EndTime, now, traceID)
			return nil, ErrNotExpiredYet
		}
		// 状态机推进 pending --expire--> drawing，CAS 落库抢占开奖权
		drawingState, err := state.NextState(curState, state.EvtExpire)
		if err != nil {
			return nil, err
		}
		claimed, err := model.ClaimForDraw(ctx, tx, round.ID, state.ToCode(drawingState))
		if err != nil {
			return nil, err
		}
		if !claimed {
			fmt.Printf("[Draw] 开奖权已被抢占: round_number=%d, trace_id=%s\n",
				round.RoundNumber, traceID)
			return nil, ErrAlreadyDrawn
		}
		claimAud := &model.RoundEventAudit{
			RoundID:     round.ID,
			RoundNumber: round.RoundNumber,
			EventType:   model.AuditEventRoundDraw,
			PrevState:   string(curState),
			NextState:   drawingState,
			Operator:    operator,
			Source:      trigger,
			Payload:     toJSON(map[string]any{"end_time": round.EndTime}),
			TraceID:     traceID,
		}
		if err := claimAud.Insert(ctx, tx); err != nil {
			return nil, err
		}

	case state.StateDrawing:
		// 上次开奖在 draw 与 settle 之间崩溃，允许续跑；向量若已写入则复用
		fmt.Printf("[Draw] 续跑遗留的开奖中回合: round_number=%d, trace_id=%s\n",
			round.RoundNumber, traceID)

	default:
		return nil, ErrAlreadyDrawn
	}

	// ========== 开奖：写一次，不覆盖 ==========
	var winning []int
	if round.WinningNumbers.Valid && round.WinningNumbers.String != "" {
		// 已有向量：复用而非重生成，避免派彩漂移
		if err := json.Unmarshal([]byte(round.WinningNumbers.String), &winning); err != nil {
			return nil, fmt.Errorf("corrupt winning numbers for round %d: %w", round.RoundNumber, err)
		}
	} else {
		winning, err = GenerateWinningNumbers()
		if err != nil {
			return nil, err
		}
		numsJSON, _ := json.Marshal(winning)
		written, err := model.SetWinningNumbers(ctx, tx, round.ID, string(numsJSON))
		if err != nil {
			return nil, err
		}
		if !written {
			// WHERE winning_numbers IS NULL 未命中：行锁内不应发生，读回兜底
			fresh, err := model.GetRound(ctx, tx, round.ID)
			if err != nil {
				return nil, err
			}
			if err := json.Unmarshal([]byte(fresh.WinningNumbers.String), &winning); err != nil {
				return nil, err
			}
		}
	}
	if err := ValidateWinningNumbers(winning); err != nil {
		return nil, err
	}
	winningJSON, _ := json.Marshal(winning)

	// ========== 结算日志：唯一索引兜底，重复插入不视为失败 ==========
	slog := &model.SettlementLog{
		RoundID:        round.ID,
		RoundNumber:    round.RoundNumber,
		WinningNumbers: string(winningJSON),
		Operator:       operator,
		TraceID:        traceID,
	}
	if err := model.CreateSettlementLog(ctx, tx, slog); err != nil {
		if !isMySQLDuplicateKeyError(err) {
			return nil, err
		}
		// 已有日志说明此前结算中断过，继续处理剩余待结算注单
	}

	// ========== 结算：只取待结算行，逐单按纯函数计算派彩 ==========
	pending, err := model.ListPendingByRoundForUpdate(ctx, tx, round.ID)
	if err != nil {
		return nil, err
	}

	fmt.Printf("[Draw] 开始结算: round_number=%d, winning=%v, pending_bets=%d, trigger=%s, trace_id=%s\n",
		round.RoundNumber, winning, len(pending), trigger, traceID)

	payoutByUser := make(map[int64]*userPayout)

	for i := range pending {
		b := pending[i]
		var subBets []SubBet
		if err := json.Unmarshal([]byte(b.SubBets), &subBets); err != nil {
			return nil, fmt.Errorf("corrupt sub bets for bill %s: %w", b.BillNo, err)
		}

		payout, matched := SettleSubBets(subBets, winning, b.Odds)
		matchedJSON, _ := json.Marshal(matched)
		isWinner := int8(0)
		if payout.GreaterThan(decimal.Zero) {
			isWinner = 1
		}

		// 状态过滤更新：status=1 的行才会被改写，重入时已结算行天然跳过
		updated, err := model.UpdateSettlement(ctx, tx, b.BillNo, payout.InexactFloat64(), isWinner, string(matchedJSON))
		if err != nil {
			return nil, err
		}
		if !updated {
			continue
		}

		if isWinner == 1 {
			up, ok := payoutByUser[b.UserID]
			if !ok {
				up = &userPayout{userID: b.UserID, total: decimal.Zero}
				payoutByUser[b.UserID] = up
			}
			up.total = up.total.Add(payout)
			up.bills = append(up.bills, b.BillNo)
			up.amounts = append(up.amounts, payout)
		}

		// 注单结算事件（事务内写 Outbox）
		if err := model.CreateOutbox(ctx, tx, "bet_settled", b.BillNo, map[string]any{
			"event":             "bet_settled",
			"bill_no":           b.BillNo,
			"user_id":           b.UserID,
			"round_number":      round.RoundNumber,
			"actual_payout":     payout.InexactFloat64(),
			"is_winner":         isWinner == 1,
			"matched_positions": matched,
			"trace_id":          traceID,
		}); err != nil {
			return nil, err
		}
	}

	// ========== 派彩：按用户分组，user_id 升序加锁避免死锁 ==========
	if err := creditWinnersInTx(ctx, tx, round, payoutByUser, traceID); err != nil {
		return nil, err
	}

	// ========== 聚合：全量重算，不做累加 ==========
	if err := model.RecomputeTotals(ctx, tx, round.ID); err != nil {
		return nil, err
	}
	stats, err := model.GetRoundSettlementStats(ctx, tx, round.ID)
	if err != nil {
		return nil, err
	}
	if err := model.UpdateSettlementStats(ctx, tx, round.ID, stats.TotalBets, stats.TotalWinners, stats.TotalPayout); err != nil {
		return nil, err
	}

	// 状态机推进 drawing --settled--> completed
	doneState, err := state.NextState(state.StateDrawing, state.EvtSettled)
	if err != nil {
		return nil, err
	}
	if _, err := model.MarkCompleted(ctx, tx, round.ID, state.ToCode(doneState)); err != nil {
		return nil, err
	}

	// 审计事件
	aud := &model.RoundEventAudit{
		RoundID:     round.ID,
		RoundNumber: round.RoundNumber,
		EventType:   model.AuditEventRoundSettle,
		PrevState:   string(curState),
		NextState:   doneState,
		Operator:    operator,
		Source:      trigger,
		Payload: toJSON(map[string]any{
			"winning_numbers": winning,
			"total_bets":      stats.TotalBets,
			"total_winners":   stats.TotalWinners,
			"total_payout":    stats.TotalPayout,
		}),
		TraceID: traceID,
	}
	if err := aud.Insert(ctx, tx); err != nil {
		return nil, err
	}

	// 回合结算事件
	if err := model.CreateOutbox(ctx, tx, "round_settled", fmt.Sprintf("round-%d", round.RoundNumber), map[string]any{
		"event":           "round_settled",
		"round_number":    round.RoundNumber,
		"winning_numbers": winning,
		"total_bets":      stats.TotalBets,
		"total_winners":   stats.TotalWinners,
		"total_payout":    stats.TotalPayout,
		"trace_id":        traceID,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		fmt.Printf("[Draw] 提交事务失败: round_number=%d, error=%v, trace_id=%s\n",
			round.RoundNumber, err, traceID)
		return nil, err
	}

	// 将开奖结果写入 Redis，便于后续查询/回放
	if r := infrds.Client(); r != nil {
		val := map[string]any{
			"round_number":    round.RoundNumber,
			"winning_numbers": winning,
			"total_bets":      stats.TotalBets,
			"total_winners":   stats.TotalWinners,
			"total_payout":    stats.TotalPayout,
		}
		if b, e := json.Marshal(val); e == nil {
			_ = r.Set(ctx, infrds.RoundResultKey(round.RoundNumber), b, 10*time.Minute).Err()
		}
	}

	resultLabel = "success"
	metrics.RecordSettlement(stats.TotalBets, stats.TotalPayout)
	fmt.Printf("[Draw] 开奖处理完成: round_number=%d, winning=%v, total_bets=%d, total_winners=%d, total_payout=%.2f, trace_id=%s\n",
		round.RoundNumber, winning, stats.TotalBets, stats.TotalWinners, stats.TotalPayout, traceID)

	return &DrawOutput{
		RoundNumber:    round.RoundNumber,
		WinningNumbers: winning,
		TotalBets:      stats.TotalBets,
		TotalWinners:   stats.TotalWinners,
		TotalPayout:    stats.TotalPayout,
		Settled:        true,
	}, nil
}

// replayCompleted 已结算回合的幂等响应：从既有数据拼装结果
func (s *drawService) replayCompleted(ctx context.Context, tx *sqlx.Tx, round *model.GameRound) (*DrawOutput, error) {
	var winning []int
	if round.WinningNumbers.Valid {
		if err := json.Unmarshal([]byte(round.WinningNumbers.String), &winning); err != nil {
			return nil, err
		}
	}
	stats, err := model.GetRoundSettlementStats(ctx, tx, round.ID)
	if err != nil {
		return nil, err
	}
	return &DrawOutput{
		RoundNumber:    round.RoundNumber,
		WinningNumbers: winning,
		TotalBets:      stats.TotalBets,
		TotalWinners:   stats.TotalWinners,
		TotalPayout:    stats.TotalPayout,
		Settled:        false,
	}, nil
}

func toJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

// isMySQLDuplicateKeyError 判断是否为 MySQL 唯一键冲突错误
func isMySQLDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	// MySQL 错误码 1062: Duplicate entry
	return strings.Contains(errMsg, "Error 1062") ||
		strings.Contains(errMsg, "Duplicate entry") ||
		strings.Contains(errMsg, "duplicate key")
}
