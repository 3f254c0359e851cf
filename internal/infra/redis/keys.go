package redis

import "strconv"

// Redis Key 定义与构造器
// 统一管理业务使用的 Redis Key，避免散落的魔法字符串，便于统一维护与变更。

const (
	// PrefixBetIdemResult：投注幂等“结果缓存”Key 的前缀。
	// 作用：缓存某个 idempotency key 对应的第一次成功结果（BetOutput JSON），用于后续重复请求直接返回。
	PrefixBetIdemResult = "bet:idem:result:"
	// PrefixBetIdemLock：投注幂等“进行中锁”Key 的前缀。
	// 作用：使用 SETNX + TTL 标记 idempotency key 正在处理，吸收瞬时重复请求，减轻数据库压力。
	PrefixBetIdemLock = "bet:idem:lock:"

	// KeyCurrentRound：当前开放回合快照缓存，供前端倒计时轮询
	KeyCurrentRound = "round:current"
	// PrefixRoundResult：回合开奖结果缓存
	PrefixRoundResult = "round:result:"
	// PrefixAuthNonce：平台签名认证的 nonce 去重前缀
	PrefixAuthNonce = "auth:nonce:"
)

// IdemResultKey：构造幂等“结果缓存”的完整 Key。
// 形如：bet:idem:result:{idempotency_key}
func IdemResultKey(k string) string { return PrefixBetIdemResult + k }

// IdemLockKey：构造幂等“进行中锁”的完整 Key。
// 形如：bet:idem:lock:{idempotency_key}
func IdemLockKey(k string) string { return PrefixBetIdemLock + k }

// RoundResultKey：构造开奖结果缓存 Key。形如：round:result:{round_number}
func RoundResultKey(roundNumber int64) string {
	return PrefixRoundResult + strconv.FormatInt(roundNumber, 10)
}

// NonceKey：构造认证 nonce Key。形如：auth:nonce:{app_key}:{nonce}
func NonceKey(appKey, nonce string) string { return PrefixAuthNonce + appKey + ":" + nonce }
