package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lucky10-server/common"
	"lucky10-server/common/logger"
	"lucky10-server/internal/config"
	infmysql "lucky10-server/internal/infra/mysql"
	infrds "lucky10-server/internal/infra/redis"
	"lucky10-server/internal/metrics"
	"lucky10-server/internal/model"
	"lucky10-server/internal/state"

	mysqlerr "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// SchedulerAction 一次调度中执行的单个动作
type SchedulerAction struct {
	Action      string `json:"action"`       // drew_and_settled | round_created | skipped
	RoundNumber int64  `json:"round_number"` // 涉及的回合号（创建动作为新回合号）
	Detail      string `json:"detail,omitempty"`
}

// SchedulerResult 一次 AutoManageRounds 的完整结果
// 部分失败不中断：每个动作独立记录成败，Success 表示整个过程无动作级错误
type SchedulerResult struct {
	Actions []SchedulerAction `json:"actions"`
	Success bool              `json:"success"`
	Errors  []string          `json:"errors,omitempty"`
}

type SchedulerService interface {
	// AutoManageRounds 巡检：续跑滞留的开奖中回合，结算所有到期回合，确保存在开放回合
	// 定时器与人工触发共用，可并发调用（回合级互斥由 CAS 保证）
	AutoManageRounds(ctx context.Context, trigger string) *SchedulerResult
	// CreateRound 创建下一个回合（回合号 MAX+1）
	// 已存在开放回合时拒绝创建并返回 ErrNoActionNeeded，保证开放回合唯一
	CreateRound(ctx context.Context, operator, traceID string) (int64, error)
}

type schedulerService struct {
	draw DrawService
}

func NewSchedulerService(draw DrawService) SchedulerService {
	return &schedulerService{draw: draw}
}

// ErrNoActionNeeded 已存在开放回合，无需创建新回合
var ErrNoActionNeeded = errors.New("no action needed")

// AutoManageRounds 调度主流程：
// 1) 续跑滞留在开奖中的到期回合（进程在开奖与结算之间崩溃后遗留）
// 2) 按回合号升序结算所有到期的待开奖回合（先到期先结算）
// 3) 若结算后不存在未到期的开放回合，创建新回合
// 并发安全：两个实例同时巡检时，CAS 抢占保证每个回合只被结算一次，
// 回合号唯一索引保证不会重复建回合
func (s *schedulerService) AutoManageRounds(ctx context.Context, trigger string) *SchedulerResult {
	start := time.Now()
	res := &SchedulerResult{Success: true}
	traceID := fmt.Sprintf("sched-%d", start.UnixMilli())
	db := infmysql.SQLX()

	defer func() {
		label := "success"
		if !res.Success {
			label = "fail"
		}
		metrics.RecordSchedulerPass(label, start)
	}()

	// 第一步：续跑滞留的开奖中回合（向量已落库则复用，不会重新生成）
	stuck, err := model.ListExpiredDrawing(ctx, db, time.Now().UnixMilli())
	if err != nil {
		logger.Error("scheduler list stuck drawing rounds failed", zap.Error(err), zap.String("trigger", trigger))
		res.Success = false
		res.Errors = append(res.Errors, err.Error())
		return res
	}

	// 第二步：结算所有到期的待开奖回合
	expired, err := model.ListExpiredPending(ctx, db, time.Now().UnixMilli())
	if err != nil {
		logger.Error("scheduler list expired rounds failed", zap.Error(err), zap.String("trigger", trigger))
		res.Success = false
		res.Errors = append(res.Errors, err.Error())
		return res
	}

	for _, r := range append(stuck, expired...) {
		out, err := s.draw.DrawAndSettle(ctx, r.ID, trigger, "scheduler", traceID)
		if err != nil {
			// 被并发触发方抢走属于正常情况，不算失败
			if errors.Is(err, ErrAlreadyDrawn) {
				metrics.RecordSchedulerAction("success", "skipped")
				res.Actions = append(res.Actions, SchedulerAction{
					Action:      "skipped",
					RoundNumber: r.RoundNumber,
					Detail:      "claimed by concurrent caller",
				})
				continue
			}
			logger.Error("scheduler settle round failed",
				zap.Int64("round_number", r.RoundNumber),
				zap.String("trigger", trigger),
				zap.Error(err))
			metrics.RecordSchedulerAction("fail", "drew_and_settled")
			res.Success = false
			res.Errors = append(res.Errors, fmt.Sprintf("round %d: %v", r.RoundNumber, err))
			// 单个回合失败不影响其余回合的结算
			continue
		}
		metrics.RecordSchedulerAction("success", "drew_and_settled")
		res.Actions = append(res.Actions, SchedulerAction{
			Action:      "drew_and_settled",
			RoundNumber: out.RoundNumber,
			Detail: fmt.Sprintf("bets=%d winners=%d payout=%.2f",
				out.TotalBets, out.TotalWinners, out.TotalPayout),
		})
	}

	// 第三步：确保存在开放回合
	active, err := model.HasActiveRound(ctx, db, time.Now().UnixMilli())
	if err != nil {
		logger.Error("scheduler check active round failed", zap.Error(err), zap.String("trigger", trigger))
		res.Success = false
		res.Errors = append(res.Errors, err.Error())
		return res
	}
	if !active {
		num, err := s.CreateRound(ctx, "scheduler", traceID)
		if err != nil {
			// 并发建回合：另一个触发方抢先建好（开放回合检查命中或回合号唯一索引冲突），视为跳过
			if me, ok := errAsMySQL(err); errors.Is(err, ErrNoActionNeeded) || (ok && me.Number == 1062) {
				metrics.RecordSchedulerAction("success", "skipped")
				res.Actions = append(res.Actions, SchedulerAction{
					Action: "skipped",
					Detail: "round created by concurrent caller",
				})
			} else {
				logger.Error("scheduler create round failed", zap.Error(err), zap.String("trigger", trigger))
				metrics.RecordSchedulerAction("fail", "round_created")
				res.Success = false
				res.Errors = append(res.Errors, err.Error())
			}
		} else {
			metrics.RecordSchedulerAction("success", "round_created")
			res.Actions = append(res.Actions, SchedulerAction{
				Action:      "round_created",
				RoundNumber: num,
			})
		}
	}

	logger.Info("scheduler pass done",
		zap.String("trigger", trigger),
		zap.Int("actions", len(res.Actions)),
		zap.Bool("success", res.Success),
		zap.Duration("elapsed", time.Since(start)))
	return res
}

// CreateRound 创建新回合：回合号在 INSERT...SELECT 中原子取 MAX+1，
// 并发下由唯一索引兜底，不会产生空洞或重号
// 事务内先检查是否已有开放回合：有则返回 ErrNoActionNeeded，
// 避免人工接口在开放期内再建一个回合、出现两个可投注回合
func (s *schedulerService) CreateRound(ctx context.Context, operator, traceID string) (int64, error) {
	tx, err := infmysql.SQLX().BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	active, err := model.HasActiveRound(ctx, tx, time.Now().UnixMilli())
	if err != nil {
		return 0, err
	}
	if active {
		return 0, ErrNoActionNeeded
	}

	duration := config.RoundDuration()
	id, err := model.CreateNextRound(ctx, tx, duration, traceID)
	if err != nil {
		return 0, err
	}
	round, err := model.GetRound(ctx, tx, id)
	if err != nil {
		return 0, err
	}

	aud := &model.RoundEventAudit{
		RoundID:     round.ID,
		RoundNumber: round.RoundNumber,
		EventType:   model.AuditEventRoundCreate,
		PrevState:   "",
		NextState:   state.StatePending,
		Operator:    operator,
		Source:      "scheduler",
		Payload:     toJSON(map[string]any{"end_time": round.EndTime, "duration_sec": int(duration.Seconds())}),
		TraceID:     traceID,
	}
	if err := aud.Insert(ctx, tx); err != nil {
		return 0, err
	}

	if err := model.CreateOutbox(ctx, tx, "round_created", fmt.Sprintf("round-%d", round.RoundNumber), map[string]any{
		"event":        "round_created",
		"round_number": round.RoundNumber,
		"start_time":   round.StartTime,
		"end_time":     round.EndTime,
		"trace_id":     traceID,
	}); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	// 刷新当前回合缓存（提交后写，避免脏读）
	refreshCurrentRoundCache(ctx, round)

	logger.Info("round created",
		zap.Int64("round_number", round.RoundNumber),
		zap.Int64("end_time", round.EndTime),
		zap.String("operator", operator))
	return round.RoundNumber, nil
}

func errAsMySQL(err error) (*mysqlerr.MySQLError, bool) {
	var me *mysqlerr.MySQLError
	if errors.As(err, &me) {
		return me, true
	}
	return nil, false
}

// refreshCurrentRoundCache 将开放回合快照写入 Redis
func refreshCurrentRoundCache(ctx context.Context, round *model.GameRound) {
	r := infrds.Client()
	if r == nil {
		return
	}
	ttl := time.Until(time.UnixMilli(round.EndTime))
	if ttl <= 0 {
		return
	}
	snap := map[string]any{
		"round_number": round.RoundNumber,
		"status":       state.FromCode(round.Status),
		"start_time":   round.StartTime,
		"end_time":     round.EndTime,
	}
	b, err := common.JsonMarshal(snap)
	if err != nil {
		return
	}
	_ = r.Set(ctx, infrds.KeyCurrentRound, b, ttl).Err()
}
