package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// RoundEventAudit 对应 round_event_audit 表（回合状态机审计）
// event_type 采用数值枚举（1=round_create 2=round_expire 3=round_draw 4=round_settle）
// prev_state/next_state 使用字符串快照，便于直观查询
type RoundEventAudit struct {
	ID          int64 `db:"id"`
	RoundID     int64 `db:"round_id"`
	RoundNumber int64 `db:"round_number"`
	// 事件类型（数值：1=round_create 2=round_expire 3=round_draw 4=round_settle）
	EventType int8   `db:"event_type"`
	PrevState string `db:"prev_state"`
	NextState string `db:"next_state"`
	Operator  string `db:"operator"`
	Source    string `db:"source"`
	Payload   string `db:"payload"`
	TraceID   string `db:"trace_id"`
	CreatedAt int64  `db:"created_at"`
}

// 审计事件类型
const (
	AuditEventRoundCreate int8 = 1
	AuditEventRoundExpire int8 = 2
	AuditEventRoundDraw   int8 = 3
	AuditEventRoundSettle int8 = 4
)

// Insert
func (e *RoundEventAudit) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()

	sqlStr := "INSERT INTO round_event_audit (round_id, round_number, event_type, prev_state, next_state, operator, source, payload, trace_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	args := []interface{}{e.RoundID, e.RoundNumber, e.EventType, e.PrevState, e.NextState, e.Operator, e.Source, e.Payload, e.TraceID, now}

	_, err := exec.ExecContext(ctx, sqlStr, args...)
	return err
}
