package service

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	decimal "github.com/shopspring/decimal"
)

// 开奖向量长度与号码取值范围
const (
	PositionCount = 10
	NumberMin     = 1
	NumberMax     = 10
)

// GenerateWinningNumbers 生成开奖向量：10 个位置各一个号码，号码在 [1,10] 内独立均匀
// 使用 crypto/rand，位置之间允许重复
func GenerateWinningNumbers() ([]int, error) {
	nums := make([]int, PositionCount)
	var buf [8]byte
	for i := 0; i < PositionCount; i++ {
		if _, err := rand.Read(buf[:]); err != nil {
			return nil, err
		}
		v := binary.BigEndian.Uint64(buf[:])
		nums[i] = NumberMin + int(v%uint64(NumberMax-NumberMin+1))
	}
	return nums, nil
}

// ValidateWinningNumbers 校验开奖向量的形状
func ValidateWinningNumbers(nums []int) error {
	if len(nums) != PositionCount {
		return fmt.Errorf("winning numbers must have %d entries, got %d", PositionCount, len(nums))
	}
	for i, n := range nums {
		if n < NumberMin || n > NumberMax {
			return fmt.Errorf("winning number at position %d out of range: %d", i+1, n)
		}
	}
	return nil
}

// SettleSubBets 结算的唯一计算入口：给定子注列表与开奖向量，返回派彩与命中位置
// 纯函数：不读不写任何既有结算状态，重复执行必然得到相同结果
// 规则：子注命中当且仅当 number == winning[position-1]，派彩 = 金额 × 赔率（不退本金）
func SettleSubBets(subBets []SubBet, winning []int, odds float64) (decimal.Decimal, []int) {
	payout := decimal.Zero
	oddsDec := decimal.NewFromFloat(odds)
	matchedSet := make(map[int]bool)

	for _, sb := range subBets {
		if sb.Position < 1 || sb.Position > len(winning) {
			continue
		}
		if sb.Number == winning[sb.Position-1] {
			payout = payout.Add(decimal.NewFromFloat(sb.Amount).Mul(oddsDec))
			matchedSet[sb.Position] = true
		}
	}

	matched := make([]int, 0, len(matchedSet))
	for p := 1; p <= len(winning); p++ {
		if matchedSet[p] {
			matched = append(matched, p)
		}
	}
	return payout.Round(2), matched
}
