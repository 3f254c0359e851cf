package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	infmysql "lucky10-server/internal/infra/mysql"
	infrds "lucky10-server/internal/infra/redis"
	"lucky10-server/internal/model"
	"lucky10-server/internal/state"
)

// RoundSnapshot 当前回合快照（对外查询）
type RoundSnapshot struct {
	RoundNumber          int64  `json:"round_number"`
	Status               string `json:"status"`
	StartTime            int64  `json:"start_time"`
	EndTime              int64  `json:"end_time"`
	TimeRemainingSeconds int64  `json:"time_remaining_seconds"`
}

// RoundDetail 历史回合详情（含开奖与聚合）
type RoundDetail struct {
	RoundNumber    int64   `json:"round_number"`
	Status         string  `json:"status"`
	WinningNumbers []int   `json:"winning_numbers,omitempty"`
	TotalBetsCount int     `json:"total_bets_count"`
	TotalBetAmount float64 `json:"total_bet_amount"`
	TotalPayout    float64 `json:"total_payout"`
	StartTime      int64   `json:"start_time"`
	EndTime        int64   `json:"end_time"`
	DrawTime       int64   `json:"draw_time,omitempty"`
}

type RoundService interface {
	// GetCurrentRound 查询当前开放回合；无开放回合返回 ErrNoActiveRound
	GetCurrentRound(ctx context.Context) (*RoundSnapshot, error)
	// GetRoundByNumber 查询历史回合（含开奖结果）
	GetRoundByNumber(ctx context.Context, roundNumber int64) (*RoundDetail, error)
	// ListRecentRounds 最近回合列表（开奖记录页）
	ListRecentRounds(ctx context.Context, limit int) ([]RoundDetail, error)
}

type roundService struct{}

func NewRoundService() RoundService { return &roundService{} }

func (s *roundService) GetCurrentRound(ctx context.Context) (*RoundSnapshot, error) {
	now := time.Now().UnixMilli()

	// Redis 快路径：当前回合快照缓存（建回合时写入，到期自动失效）
	if r := infrds.Client(); r != nil {
		if bs, _ := r.Get(ctx, infrds.KeyCurrentRound).Bytes(); len(bs) > 0 {
			var snap RoundSnapshot
			if json.Unmarshal(bs, &snap) == nil && snap.EndTime > now {
				snap.TimeRemainingSeconds = (snap.EndTime - now) / 1000
				return &snap, nil
			}
		}
	}

	round, err := model.GetCurrentRound(ctx, infmysql.ReadDB())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNoActiveRound
		}
		return nil, err
	}
	if round.EndTime <= now {
		// 最新的待开奖回合已到期但尚未被调度器收割
		return nil, ErrNoActiveRound
	}

	return &RoundSnapshot{
		RoundNumber:          round.RoundNumber,
		Status:               state.FromCode(round.Status),
		StartTime:            round.StartTime,
		EndTime:              round.EndTime,
		TimeRemainingSeconds: (round.EndTime - now) / 1000,
	}, nil
}

func (s *roundService) GetRoundByNumber(ctx context.Context, roundNumber int64) (*RoundDetail, error) {
	round, err := model.GetRoundByNumber(ctx, infmysql.ReadDB(), roundNumber)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRoundNotFound
		}
		return nil, err
	}
	return toRoundDetail(round), nil
}

func (s *roundService) ListRecentRounds(ctx context.Context, limit int) ([]RoundDetail, error) {
	rounds, err := model.ListRecentRounds(ctx, infmysql.ReadDB(), limit)
	if err != nil {
		return nil, err
	}
	out := make([]RoundDetail, 0, len(rounds))
	for i := range rounds {
		out = append(out, *toRoundDetail(&rounds[i]))
	}
	return out, nil
}

func toRoundDetail(r *model.GameRound) *RoundDetail {
	d := &RoundDetail{
		RoundNumber:    r.RoundNumber,
		Status:         state.FromCode(r.Status),
		TotalBetsCount: r.TotalBetsCount,
		TotalBetAmount: r.TotalBetAmount,
		TotalPayout:    r.TotalPayout,
		StartTime:      r.StartTime,
		EndTime:        r.EndTime,
		DrawTime:       r.DrawTime,
	}
	if r.WinningNumbers.Valid && r.WinningNumbers.String != "" {
		_ = json.Unmarshal([]byte(r.WinningNumbers.String), &d.WinningNumbers)
	}
	return d
}
