package constant

// 账变类型常量定义
const (
	BalanceChangeBet    = 1 // 投注扣款
	BalanceChangePayout = 2 // 结算派彩
	BalanceChangeRefund = 3 // 退款（回合作废）
	BalanceChangeAdjust = 4 // 后台调整
)

// 账变类型描述映射
var BalanceChangeTypeDesc = map[int]string{
	BalanceChangeBet:    "bet",
	BalanceChangePayout: "payout",
	BalanceChangeRefund: "refund",
	BalanceChangeAdjust: "adjust",
}

// GetBalanceChangeTypeDesc 获取账变类型描述
func GetBalanceChangeTypeDesc(changeType int) string {
	if desc, exists := BalanceChangeTypeDesc[changeType]; exists {
		return desc
	}
	return "未知类型"
}

// IsValidBalanceChangeType 验证账变类型是否有效
func IsValidBalanceChangeType(changeType int) bool {
	_, exists := BalanceChangeTypeDesc[changeType]
	return exists
}

// 常用账变类型分组
var (
	// 收入类型
	IncomeTypes = []int{BalanceChangePayout, BalanceChangeRefund}

	// 支出类型
	ExpenseTypes = []int{BalanceChangeBet}
)

// IsIncomeType 判断是否为收入类型
func IsIncomeType(changeType int) bool {
	for _, t := range IncomeTypes {
		if t == changeType {
			return true
		}
	}
	return false
}

// IsExpenseType 判断是否为支出类型
func IsExpenseType(changeType int) bool {
	for _, t := range ExpenseTypes {
		if t == changeType {
			return true
		}
	}
	return false
}
