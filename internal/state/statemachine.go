package state

import "fmt"

// State 回合状态
const (
	StatePending   = "pending"   // 投注中（开放回合）
	StateDrawing   = "drawing"   // 已过期并被抢占，开奖+结算进行中
	StateCompleted = "completed" // 开奖结算完成
)

// Event 回合事件
const (
	EvtExpire  = "round_expire"  // 到期被调度器/手动触发抢占
	EvtSettled = "round_settled" // 开奖与全部注单结算完成
)

// NextState 根据当前状态与事件计算下一个状态，非法转换报错
// 抢占（EvtExpire）对应存储层的条件更新：只有 pending 能进入 drawing，
// 这是并发触发之间唯一的互斥点。
func NextState(cur, evt string) (string, error) {
	switch cur {
	case StatePending:
		if evt == EvtExpire {
			return StateDrawing, nil
		}
	case StateDrawing:
		if evt == EvtSettled {
			return StateCompleted, nil
		}
	}
	return cur, fmt.Errorf("invalid transition: %s --%s--> ?", cur, evt)
}

// FromCode 数据库状态码转状态名
// round status: 1=pending 2=drawing 3=completed
func FromCode(c int8) string {
	switch c {
	case 1:
		return StatePending
	case 2:
		return StateDrawing
	case 3:
		return StateCompleted
	default:
		return ""
	}
}

// ToCode 状态名转数据库状态码
func ToCode(s string) int8 {
	switch s {
	case StatePending:
		return 1
	case StateDrawing:
		return 2
	case StateCompleted:
		return 3
	default:
		return 0
	}
}
