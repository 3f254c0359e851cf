package service

import (
	"errors"
	"strings"
	"testing"

	decimal "github.com/shopspring/decimal"
)

func TestParseSubBets(t *testing.T) {
	cases := []struct {
		name    string
		in      []SubBetInput
		wantSum string
		wantErr string
	}{
		{
			name:    "single valid",
			in:      []SubBetInput{{Position: 1, Number: 5, Amount: "2.00"}},
			wantSum: "2",
		},
		{
			name: "multiple valid",
			in: []SubBetInput{
				{Position: 1, Number: 1, Amount: "0.01"},
				{Position: 10, Number: 10, Amount: "99.99"},
			},
			wantSum: "100",
		},
		{
			name:    "empty",
			in:      nil,
			wantErr: "at least one sub bet",
		},
		{
			name:    "position zero",
			in:      []SubBetInput{{Position: 0, Number: 5, Amount: "1"}},
			wantErr: "position 0 out of range",
		},
		{
			name:    "position eleven",
			in:      []SubBetInput{{Position: 11, Number: 5, Amount: "1"}},
			wantErr: "position 11 out of range",
		},
		{
			name:    "number zero",
			in:      []SubBetInput{{Position: 3, Number: 0, Amount: "1"}},
			wantErr: "number 0 out of range",
		},
		{
			name:    "number eleven",
			in:      []SubBetInput{{Position: 3, Number: 11, Amount: "1"}},
			wantErr: "number 11 out of range",
		},
		{
			name:    "zero amount",
			in:      []SubBetInput{{Position: 3, Number: 3, Amount: "0"}},
			wantErr: "amount must be positive",
		},
		{
			name:    "negative amount",
			in:      []SubBetInput{{Position: 3, Number: 3, Amount: "-1"}},
			wantErr: "amount must be positive",
		},
		{
			name:    "garbage amount",
			in:      []SubBetInput{{Position: 3, Number: 3, Amount: "abc"}},
			wantErr: "invalid amount",
		},
	}

	for _, c := range cases {
		out, sum, err := parseSubBets(c.in)
		if c.wantErr != "" {
			if err == nil {
				t.Errorf("%s: expected error containing %q, got nil", c.name, c.wantErr)
				continue
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("%s: error is not *ValidationError: %v", c.name, err)
			}
			if !strings.Contains(err.Error(), c.wantErr) {
				t.Errorf("%s: err=%v, want contains %q", c.name, err, c.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %v", c.name, err)
			continue
		}
		if len(out) != len(c.in) {
			t.Errorf("%s: parsed %d sub bets, want %d", c.name, len(out), len(c.in))
		}
		want, _ := decimal.NewFromString(c.wantSum)
		if !sum.Equal(want) {
			t.Errorf("%s: sum=%s, want=%s", c.name, sum.String(), c.wantSum)
		}
	}
}

func TestParseSubBetsTooMany(t *testing.T) {
	in := make([]SubBetInput, MaxSubBetsPerTicket+1)
	for i := range in {
		in[i] = SubBetInput{Position: 1, Number: 1, Amount: "1"}
	}
	if _, _, err := parseSubBets(in); err == nil {
		t.Fatal("expected error for too many sub bets")
	}

	in = in[:MaxSubBetsPerTicket]
	if _, _, err := parseSubBets(in); err != nil {
		t.Fatalf("exactly max sub bets should pass: %v", err)
	}
}

func TestGenerateBillNo(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		no := generateBillNo(int64(10000 + i))
		if !strings.HasPrefix(no, "LK") {
			t.Fatalf("bill no missing prefix: %s", no)
		}
		// LK + 14位时间 + 4位用户尾号 + 3位随机 + 1位校验
		if len(no) != 24 {
			t.Fatalf("bill no length %d: %s", len(no), no)
		}
		seen[no] = true
	}
	// 同一毫秒内的随机尾数几乎不可能全部撞车
	if len(seen) < 50 {
		t.Fatalf("too many duplicate bill numbers: %d unique of 100", len(seen))
	}
}
