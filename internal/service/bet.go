package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	chelper "lucky10-server/common/helper"
	"lucky10-server/internal/config"
	infmysql "lucky10-server/internal/infra/mysql"
	infrds "lucky10-server/internal/infra/redis"
	"lucky10-server/internal/metrics"
	"lucky10-server/internal/model"

	mysqlerr "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	decimal "github.com/shopspring/decimal"
)

// 处理投注业务逻辑
const (
	BIZ_TYPE_BET = 1
	// 单张注单允许的子注上限
	MaxSubBetsPerTicket = 100
)

// SubBet 子注：位置+号码+金额
// 持久化为 JSON 数组，结算时按此列表逐条比对
type SubBet struct {
	Position int     `json:"position"` // 位置 1..10
	Number   int     `json:"number"`   // 号码 1..10
	Amount   float64 `json:"amount"`   // 金额（两位小数）
}

// SubBetInput API 层输入（金额为字符串，避免浮点误差）
type SubBetInput struct {
	Position int
	Number   int
	Amount   string
}

// BetInput 输入参数
type BetInput struct {
	PlatformID       int8   // 平台ID
	PlatformUserID   string // 平台用户ID
	PlatformUserName string // 平台用户名（可选）
	SubBets          []SubBetInput
	TotalAmount      string // 申报总额，须与子注之和一致（±0.01）
	IdempotencyKey   string
	TraceID          string
}

type BetOutput struct {
	BillNo          string
	RoundNumber     int64
	TotalAmount     string
	PotentialPayout string
	RemainAmount    string // 剩余金额
}

type BetService interface {
	PlaceBet(ctx context.Context, in BetInput) (*BetOutput, error)
}

type betService struct{}

func NewBetService() BetService { return &betService{} }

const (
	// Redis 进行中锁 TTL：建议小于最短投注窗口，避免长时间阻塞重复请求
	idemLockTTL = 45 * time.Second
	// 结果缓存 TTL：用于重复请求直接返回第一次成功结果
	idemResultTTL = 1 * time.Minute
)

// 默认事务超时时间，防止长事务占用资源影响并发（若上游已有 deadline，则沿用上游）
const defaultTxTimeout = 3 * time.Second

// 金额申报误差容忍
var totalAmountEpsilon = decimal.NewFromFloat(0.01)

var (
	ErrDuplicateInFlight   = errors.New("duplicate request in flight")
	ErrNoActiveRound       = errors.New("no active round")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUserDisabled        = errors.New("user disabled")
)

// ValidationError 注单形状错误（位置/号码/金额非法、总额不符等）
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation error: " + e.Reason }

func invalidBet(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// parseSubBets 解析并校验子注列表，返回持久化形态与合计金额
// 任何一条不合法则整单拒绝，不产生任何落库副作用
func parseSubBets(in []SubBetInput) ([]SubBet, decimal.Decimal, error) {
	if len(in) == 0 {
		return nil, decimal.Zero, invalidBet("at least one sub bet required")
	}
	if len(in) > MaxSubBetsPerTicket {
		return nil, decimal.Zero, invalidBet("too many sub bets: %d > %d", len(in), MaxSubBetsPerTicket)
	}

	out := make([]SubBet, 0, len(in))
	sum := decimal.Zero
	for i, sb := range in {
		if sb.Position < 1 || sb.Position > 10 {
			return nil, decimal.Zero, invalidBet("sub bet %d: position %d out of range [1,10]", i, sb.Position)
		}
		if sb.Number < 1 || sb.Number > 10 {
			return nil, decimal.Zero, invalidBet("sub bet %d: number %d out of range [1,10]", i, sb.Number)
		}
		amt, err := decimal.NewFromString(strings.TrimSpace(sb.Amount))
		if err != nil {
			return nil, decimal.Zero, invalidBet("sub bet %d: invalid amount %q", i, sb.Amount)
		}
		if amt.LessThanOrEqual(decimal.Zero) {
			return nil, decimal.Zero, invalidBet("sub bet %d: amount must be positive", i)
		}
		sum = sum.Add(amt)
		out = append(out, SubBet{
			Position: sb.Position,
			Number:   sb.Number,
			Amount:   amt.Round(2).InexactFloat64(),
		})
	}
	return out, sum, nil
}

// PlaceBet 处理下注主流程：
// 校验 → 幂等 → 锁定当前回合与用户 → 扣款 → 落注单 → Outbox
func (s *betService) PlaceBet(ctx context.Context, in BetInput) (*BetOutput, error) {

	start := time.Now()
	result := "fail"
	defer func() { metrics.RecordBet(result, len(in.SubBets), start) }()

	// ========== 子注解析和验证 ==========
	subBets, sumDec, err := parseSubBets(in.SubBets)
	if err != nil {
		fmt.Printf("[Bet] 子注校验失败: error=%v, trace_id=%s\n", err, in.TraceID)
		return nil, err
	}

	// 申报总额须与子注之和一致（±0.01）
	totalDec, err := decimal.NewFromString(strings.TrimSpace(in.TotalAmount))
	if err != nil {
		fmt.Printf("[Bet] 无效的总额格式: total_amount=%s, error=%v, trace_id=%s\n",
			in.TotalAmount, err, in.TraceID)
		return nil, invalidBet("invalid total amount format")
	}
	if totalDec.Sub(sumDec).Abs().GreaterThan(totalAmountEpsilon) {
		fmt.Printf("[Bet] 申报总额与子注之和不符: declared=%s, sum=%s, trace_id=%s\n",
			totalDec.String(), sumDec.String(), in.TraceID)
		return nil, invalidBet("declared total %s does not match sub bet sum %s", totalDec.String(), sumDec.String())
	}
	amtDec := sumDec

	// 投注限额
	if min, err := decimal.NewFromString(config.MinBetAmount()); err == nil && amtDec.LessThan(min) {
		return nil, invalidBet("bet amount below minimum limit: %s", min.String())
	}
	if max, err := decimal.NewFromString(config.MaxBetAmount()); err == nil && amtDec.GreaterThan(max) {
		return nil, invalidBet("bet amount exceeds maximum limit: %s", max.String())
	}

	fmt.Printf("[Bet] 收到投注请求: platform_id=%d, platform_user_id=%s, sub_bets=%d, total=%s, idem_key=%s, trace_id=%s\n",
		in.PlatformID, in.PlatformUserID, len(subBets), amtDec.String(), in.IdempotencyKey, in.TraceID)

	// Redis 快路径：若已有结果缓存，直接返回
	if r := infrds.Client(); r != nil {
		if bs, _ := r.Get(ctx, infrds.IdemResultKey(in.IdempotencyKey)).Bytes(); len(bs) > 0 {
			var out BetOutput
			if json.Unmarshal(bs, &out) == nil {
				fmt.Printf("[Bet] Redis 缓存命中: idem_key=%s, bill_no=%s, trace_id=%s\n",
					in.IdempotencyKey, out.BillNo, in.TraceID)
				return &out, nil
			}
		}

		// 生成唯一锁值，防止误删其他请求的锁
		lockValue := uuid.New().String()
		lockKey := infrds.IdemLockKey(in.IdempotencyKey)

		// 进行中锁，吸收瞬时重复
		ok, _ := r.SetNX(ctx, lockKey, lockValue, idemLockTTL).Result()
		if !ok {
			if bs, _ := r.Get(ctx, infrds.IdemResultKey(in.IdempotencyKey)).Bytes(); len(bs) > 0 {
				var out BetOutput
				if json.Unmarshal(bs, &out) == nil {
					return &out, nil
				}
			}
			fmt.Printf("[Bet] 重复请求进行中: idem_key=%s, trace_id=%s\n",
				in.IdempotencyKey, in.TraceID)
			return nil, ErrDuplicateInFlight
		}

		// 使用 Lua 脚本原子释放锁（仅当锁值匹配时删除）
		defer func() {
			script := `
				if redis.call("get", KEYS[1]) == ARGV[1] then
					return redis.call("del", KEYS[1])
				else
					return 0
				end
			`
			if _, err := r.Eval(ctx, script, []string{lockKey}, lockValue).Result(); err != nil {
				fmt.Printf("[Bet] 释放分布式锁失败: idem_key=%s, error=%v, trace_id=%s\n",
					in.IdempotencyKey, err, in.TraceID)
			}
		}()
	}

	// 开启 MySQL 事务（带默认超时，防止长事务影响并发）
	txCtx := ctx
	if _, has := ctx.Deadline(); !has {
		c, cancel := context.WithTimeout(ctx, defaultTxTimeout)
		txCtx = c
		defer cancel()
	}
	tx, err := infmysql.SQLX().BeginTxx(txCtx, nil)
	if err != nil {
		fmt.Printf("[Bet] 开启事务失败: error=%v, trace_id=%s\n", err, in.TraceID)
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// 定位当前开放回合：status=pending 且未到期
	round, err := currentOpenRoundForUpdate(txCtx, tx)
	if err != nil {
		fmt.Printf("[Bet] 无可投注回合: error=%v, trace_id=%s\n", err, in.TraceID)
		return nil, err
	}

	// 获取或创建用户（自动注册，加锁）
	user, err := getOrCreateUserInTx(txCtx, tx, in.PlatformID, in.PlatformUserID, in.PlatformUserName)
	if err != nil {
		fmt.Printf("[Bet] 获取或创建用户失败: error=%v, platform_id=%d, platform_user_id=%s, trace_id=%s\n",
			err, in.PlatformID, in.PlatformUserID, in.TraceID)
		return nil, fmt.Errorf("failed to get or create user: %w", err)
	}

	odds := config.Odds()
	billNo := generateBillNo(user.ID)

	// 幂等：先占幂等键，ref 记录 bill_no
	if err := (&model.IdempotencyKey{IdempotencyKey: in.IdempotencyKey, Purpose: "bet", Ref: billNo}).Insert(txCtx, tx); err != nil {
		if me, ok := err.(*mysqlerr.MySQLError); ok && me.Number == 1062 {
			fmt.Printf("[Bet] 幂等键冲突，尝试返回上次结果: idem_key=%s, trace_id=%s\n",
				in.IdempotencyKey, in.TraceID)
			_ = tx.Rollback()
			return s.replayResult(ctx, in)
		}
		fmt.Printf("[Bet] 插入幂等键失败: error=%v, idem_key=%s, trace_id=%s\n",
			err, in.IdempotencyKey, in.TraceID)
		return nil, fmt.Errorf("idempotency conflict or insert failed: %w", err)
	}

	// 校验用户状态（user 已经在事务中加锁）
	if user.Status != 1 {
		fmt.Printf("[Bet] 用户状态异常: user_id=%d, status=%d, trace_id=%s\n",
			user.ID, user.Status, in.TraceID)
		return nil, ErrUserDisabled
	}
	// 校验余额（decimal 比较）
	if decimal.NewFromFloat(user.Balance).Cmp(amtDec) < 0 {
		return nil, ErrInsufficientBalance
	}

	beforeDec := decimal.NewFromFloat(user.Balance)
	afterDec := beforeDec.Sub(amtDec)

	// 扣款并累计 total_bet
	if err := model.DebitForBet(txCtx, tx, user.ID, afterDec.Round(2).InexactFloat64(), amtDec.Round(2).InexactFloat64()); err != nil {
		return nil, err
	}

	// 写账本，此处为扣款
	ledger := &model.WalletLedger{
		UserID:       user.ID,
		BizType:      BIZ_TYPE_BET,
		BizTypeStr:   "bet",
		Amount:       amtDec.Round(2).InexactFloat64(),
		BeforeAmount: beforeDec.Round(2).InexactFloat64(),
		AfterAmount:  afterDec.Round(2).InexactFloat64(),
		Currency:     "CNY",
		BillNo:       billNo,
		RoundID:      round.ID,
		RoundNumber:  round.RoundNumber,
		Remark:       "bet deduct",
		TraceID:      in.TraceID,
	}
	if err := ledger.Insert(txCtx, tx); err != nil {
		fmt.Printf("[Bet] 写入账本失败: error=%v, bill_no=%s, trace_id=%s\n",
			err, billNo, in.TraceID)
		return nil, err
	}

	// 理论最大派彩 = 总额 × 赔率
	potentialDec := amtDec.Mul(decimal.NewFromFloat(odds)).Round(2)

	subBetsJSON, err := json.Marshal(subBets)
	if err != nil {
		return nil, err
	}

	// 落注单（status:1 待结算）
	bet := &model.Bet{
		BillNo:          billNo,
		RoundID:         round.ID,
		RoundNumber:     round.RoundNumber,
		UserID:          user.ID,
		PlatformID:      in.PlatformID,
		PlatformUserID:  in.PlatformUserID,
		UserName:        user.Username,
		SubBets:         string(subBetsJSON),
		SubBetCount:     len(subBets),
		TotalAmount:     amtDec.Round(2).InexactFloat64(),
		Odds:            odds,
		PotentialPayout: potentialDec.InexactFloat64(),
		Status:          1,
		Currency:        "CNY",
		IdempotencyKey:  in.IdempotencyKey,
		TraceID:         in.TraceID,
	}
	if err := bet.Insert(txCtx, tx); err != nil {
		fmt.Printf("[Bet] 创建注单失败: error=%v, bill_no=%s, trace_id=%s\n",
			err, billNo, in.TraceID)
		return nil, err
	}

	// 累计回合聚合（注单数+1，投注额累加）
	if err := model.IncrementBetAggregates(txCtx, tx, round.ID, amtDec.Round(2).InexactFloat64()); err != nil {
		fmt.Printf("[Bet] 更新回合聚合失败: error=%v, round_id=%d, trace_id=%s\n",
			err, round.ID, in.TraceID)
		return nil, err
	}

	// Outbox 消息（异步）
	payload := map[string]any{
		"event":            "bet_placed",
		"bill_no":          billNo,
		"round_number":     round.RoundNumber,
		"user_id":          user.ID,
		"platform_id":      in.PlatformID,
		"platform_user_id": in.PlatformUserID,
		"total_amount":     amtDec.Round(2).InexactFloat64(),
		"sub_bet_count":    len(subBets),
	}
	if err := model.CreateOutbox(txCtx, tx, "bet_placed", billNo, payload); err != nil {
		fmt.Printf("[Bet] 写入 Outbox 失败: error=%v, bill_no=%s, trace_id=%s\n",
			err, billNo, in.TraceID)
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		fmt.Printf("[Bet] 提交事务失败: error=%v, bill_no=%s, trace_id=%s\n",
			err, billNo, in.TraceID)
		return nil, err
	}

	result = "success"
	out := &BetOutput{
		BillNo:          billNo,
		RoundNumber:     round.RoundNumber,
		TotalAmount:     chelper.TrimDecimal(amtDec),
		PotentialPayout: chelper.TrimDecimal(potentialDec),
		RemainAmount:    chelper.TrimDecimal(afterDec),
	}

	// 写入 Redis 结果缓存（降级容错）
	if r := infrds.Client(); r != nil {
		if b, e := json.Marshal(out); e == nil {
			_ = r.Set(ctx, infrds.IdemResultKey(in.IdempotencyKey), b, idemResultTTL).Err()
		}
	}

	return out, nil
}

// replayResult 幂等冲突时重放上次成功结果：Redis 先查，DB 回源
func (s *betService) replayResult(ctx context.Context, in BetInput) (*BetOutput, error) {
	if r := infrds.Client(); r != nil {
		if bs, _ := r.Get(ctx, infrds.IdemResultKey(in.IdempotencyKey)).Bytes(); len(bs) > 0 {
			var out BetOutput
			if json.Unmarshal(bs, &out) == nil {
				return &out, nil
			}
		}
	}
	db := infmysql.SQLX()
	b, err := model.GetBetByIdempotencyKey(ctx, db, in.PlatformID, in.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("idempotency conflict but previous result missing: %w", err)
	}
	u, err := model.GetUserByPlatformUser(ctx, db, in.PlatformID, in.PlatformUserID)
	if err != nil {
		return nil, err
	}
	return &BetOutput{
		BillNo:          b.BillNo,
		RoundNumber:     b.RoundNumber,
		TotalAmount:     chelper.TrimDecimal(decimal.NewFromFloat(b.TotalAmount)),
		PotentialPayout: chelper.TrimDecimal(decimal.NewFromFloat(b.PotentialPayout)),
		RemainAmount:    chelper.TrimDecimal(decimal.NewFromFloat(u.Balance)),
	}, nil
}

// currentOpenRoundForUpdate 在事务中锁定当前开放回合
// 仅接受 status=pending 且 end_time 未到的回合；到期回合的投注必须失败，
// 不允许悄悄挂到下一个回合上
func currentOpenRoundForUpdate(ctx context.Context, tx *sqlx.Tx) (*model.GameRound, error) {
	round, err := model.GetCurrentRound(ctx, tx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNoActiveRound
		}
		return nil, err
	}
	// 加锁后重新校验，避免读到的快照在锁等待期间被开奖流程改写
	locked, err := model.GetRoundForUpdate(ctx, tx, round.ID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UnixMilli()
	if locked.Status != 1 || locked.EndTime <= now {
		return nil, ErrNoActiveRound
	}
	return locked, nil
}

// generateBillNo 生成可读的注单号
// 格式：LK{YYYYMMDD}{HHmmss}{UserID后4位}{随机3位十六进制}
// 示例：LK20260829143025100156A
func generateBillNo(userID int64) string {
	now := time.Now()
	dateTime := now.Format("20060102150405")
	userSuffix := fmt.Sprintf("%04d", userID%10000)
	randomBytes := make([]byte, 2)
	rand.Read(randomBytes)
	randomDigits := fmt.Sprintf("%03d", (int(randomBytes[0])<<8|int(randomBytes[1]))%1000)

	// 末位为 Luhn 校验位，便于下游快速识别被截断/篡改的单号
	return chelper.AppendLuhn(fmt.Sprintf("LK%s%s%s", dateTime, userSuffix, randomDigits))
}

// getOrCreateUserInTx 在事务中获取或创建用户
// 如果用户不存在，自动创建；如果存在，返回现有用户并加锁
func getOrCreateUserInTx(ctx context.Context, tx *sqlx.Tx, platformID int8, platformUserID, username string) (*model.Customers, error) {
	user, err := model.GetUserByPlatformUserForUpdate(ctx, tx, platformID, platformUserID)
	if err == nil {
		return user, nil
	}

	if err == sql.ErrNoRows {
		now := time.Now().UnixMilli()
		newUser := &model.Customers{
			PlatformID:     platformID,
			PlatformUserID: platformUserID,
			Username:       username,
			Balance:        0.00,
			Status:         1,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		query := `INSERT INTO customers (platform_id, platform_user_id, username, balance, total_bet, total_won, status, created_at, updated_at)
		          VALUES (?, ?, ?, ?, 0, 0, ?, ?, ?)`
		result, err := tx.ExecContext(ctx, query,
			newUser.PlatformID, newUser.PlatformUserID, newUser.Username, newUser.Balance, newUser.Status, newUser.CreatedAt, newUser.UpdatedAt)
		if err != nil {
			// 并发创建时唯一索引冲突，重新查询并加锁
			if me, ok := err.(*mysqlerr.MySQLError); ok && me.Number == 1062 {
				return model.GetUserByPlatformUserForUpdate(ctx, tx, platformID, platformUserID)
			}
			return nil, err
		}

		id, _ := result.LastInsertId()
		newUser.ID = id

		return newUser, nil
	}

	return nil, err
}
