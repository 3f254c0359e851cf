package service

import (
	"reflect"
	"testing"

	decimal "github.com/shopspring/decimal"
)

func TestGenerateWinningNumbers(t *testing.T) {
	for i := 0; i < 200; i++ {
		nums, err := GenerateWinningNumbers()
		if err != nil {
			t.Fatalf("generate error: %v", err)
		}
		if len(nums) != PositionCount {
			t.Fatalf("len != %d: %v", PositionCount, nums)
		}
		for p, n := range nums {
			if n < NumberMin || n > NumberMax {
				t.Fatalf("position %d out of range: %d", p+1, n)
			}
		}
		if err := ValidateWinningNumbers(nums); err != nil {
			t.Fatalf("generated vector failed validation: %v", err)
		}
	}
}

func TestValidateWinningNumbers(t *testing.T) {
	cases := []struct {
		name    string
		nums    []int
		wantErr bool
	}{
		{"valid", []int{5, 2, 8, 9, 3, 4, 7, 8, 7, 7}, false},
		{"all min", []int{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}, false},
		{"all max", []int{10, 10, 10, 10, 10, 10, 10, 10, 10, 10}, false},
		{"too short", []int{1, 2, 3}, true},
		{"too long", []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 1}, true},
		{"zero entry", []int{0, 2, 3, 4, 5, 6, 7, 8, 9, 10}, true},
		{"over max", []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 11}, true},
		{"empty", nil, true},
	}
	for _, c := range cases {
		err := ValidateWinningNumbers(c.nums)
		if (err != nil) != c.wantErr {
			t.Errorf("%s: err=%v, wantErr=%v", c.name, err, c.wantErr)
		}
	}
}

func TestSettleSubBets(t *testing.T) {
	winning := []int{3, 7, 1, 9, 5, 2, 10, 4, 6, 8}

	cases := []struct {
		name        string
		subBets     []SubBet
		wantPayout  string
		wantMatched []int
	}{
		{
			name:        "no bets",
			subBets:     nil,
			wantPayout:  "0",
			wantMatched: []int{},
		},
		{
			name: "single win",
			subBets: []SubBet{
				{Position: 1, Number: 3, Amount: 10},
			},
			wantPayout:  "98",
			wantMatched: []int{1},
		},
		{
			name: "single loss",
			subBets: []SubBet{
				{Position: 1, Number: 4, Amount: 10},
			},
			wantPayout:  "0",
			wantMatched: []int{},
		},
		{
			name: "mixed, same position twice",
			subBets: []SubBet{
				{Position: 2, Number: 7, Amount: 1.5},
				{Position: 2, Number: 7, Amount: 0.5},
				{Position: 5, Number: 1, Amount: 100},
			},
			wantPayout:  "19.6",
			wantMatched: []int{2},
		},
		{
			name: "matched positions sorted",
			subBets: []SubBet{
				{Position: 10, Number: 8, Amount: 1},
				{Position: 4, Number: 9, Amount: 1},
				{Position: 7, Number: 10, Amount: 1},
			},
			wantPayout:  "29.4",
			wantMatched: []int{4, 7, 10},
		},
	}

	for _, c := range cases {
		payout, matched := SettleSubBets(c.subBets, winning, 9.8)
		want, _ := decimal.NewFromString(c.wantPayout)
		if !payout.Equal(want) {
			t.Errorf("%s: payout=%s, want=%s", c.name, payout.String(), c.wantPayout)
		}
		if !reflect.DeepEqual(matched, c.wantMatched) {
			t.Errorf("%s: matched=%v, want=%v", c.name, matched, c.wantMatched)
		}
	}
}

// 结算是纯函数：对同一输入重复结算，结果必然一致
func TestSettleSubBetsDeterministic(t *testing.T) {
	winning := []int{5, 2, 8, 9, 3, 4, 7, 8, 7, 7}
	subBets := []SubBet{
		{Position: 1, Number: 5, Amount: 2},
		{Position: 6, Number: 4, Amount: 3.5},
		{Position: 9, Number: 1, Amount: 10},
	}
	first, firstMatched := SettleSubBets(subBets, winning, 9.8)
	for i := 0; i < 10; i++ {
		payout, matched := SettleSubBets(subBets, winning, 9.8)
		if !payout.Equal(first) || !reflect.DeepEqual(matched, firstMatched) {
			t.Fatalf("run %d diverged: payout=%s matched=%v", i, payout.String(), matched)
		}
	}
}

// 生产回放场景：开奖向量 [5,2,8,9,3,4,7,8,7,7]，每个位置投 5 个号码各 2.00，
// 共 50 个子注总额 100.00；7 个位置命中，各贡献 2×9.8=19.6，总派彩 137.20
func TestSettleProductionScenario(t *testing.T) {
	winning := []int{5, 2, 8, 9, 3, 4, 7, 8, 7, 7}

	numberSets := map[int][]int{
		1:  {1, 2, 3, 4, 5},
		2:  {1, 3, 5, 7, 9},
		3:  {6, 7, 8, 9, 10},
		4:  {1, 2, 3, 4, 5},
		5:  {1, 2, 3, 4, 5},
		6:  {1, 2, 3, 4, 5},
		7:  {1, 3, 5, 7, 9},
		8:  {6, 7, 8, 9, 10},
		9:  {2, 4, 6, 8, 10},
		10: {1, 3, 5, 7, 9},
	}

	var subBets []SubBet
	for pos := 1; pos <= 10; pos++ {
		for _, num := range numberSets[pos] {
			subBets = append(subBets, SubBet{Position: pos, Number: num, Amount: 2})
		}
	}
	if len(subBets) != 50 {
		t.Fatalf("expected 50 sub bets, got %d", len(subBets))
	}

	payout, matched := SettleSubBets(subBets, winning, 9.8)

	// 命中位置：1(5)、3(8)、5(3)、6(4)、7(7)、8(8)、10(7)；2/4/9 脱靶
	wantMatched := []int{1, 3, 5, 6, 7, 8, 10}
	if !reflect.DeepEqual(matched, wantMatched) {
		t.Fatalf("matched=%v, want=%v", matched, wantMatched)
	}
	want := decimal.NewFromFloat(137.2)
	if !payout.Equal(want) {
		t.Fatalf("payout=%s, want=137.2", payout.String())
	}
}

// 无效位置的子注不参与结算（防御：持久化数据损坏时不作数）
func TestSettleSubBetsOutOfRangePosition(t *testing.T) {
	winning := []int{5, 2, 8, 9, 3, 4, 7, 8, 7, 7}
	subBets := []SubBet{
		{Position: 0, Number: 5, Amount: 2},
		{Position: 11, Number: 7, Amount: 2},
		{Position: 1, Number: 5, Amount: 2},
	}
	payout, matched := SettleSubBets(subBets, winning, 9.8)
	if !payout.Equal(decimal.NewFromFloat(19.6)) {
		t.Fatalf("payout=%s, want=19.6", payout.String())
	}
	if !reflect.DeepEqual(matched, []int{1}) {
		t.Fatalf("matched=%v, want=[1]", matched)
	}
}
