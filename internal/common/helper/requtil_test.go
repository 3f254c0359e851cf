package helper

import (
	"strings"
	"testing"
)

func TestIsMoneyFormat(t *testing.T) {
	valid := []string{"0", "1", "10", "0.5", "0.05", "123.45", "1000000", " 2.00 "}
	for _, s := range valid {
		if !IsMoneyFormat(s) {
			t.Errorf("IsMoneyFormat(%q) = false, want true", s)
		}
	}
	invalid := []string{"", "-1", "1.", ".5", "01", "1.234", "abc", "1,000", "1e3", "+1"}
	for _, s := range invalid {
		if IsMoneyFormat(s) {
			t.Errorf("IsMoneyFormat(%q) = true, want false", s)
		}
	}
}

func TestIsJSONContentType(t *testing.T) {
	if !IsJSONContentType("application/json") {
		t.Error("application/json should be json")
	}
	if !IsJSONContentType("application/json; charset=utf-8") {
		t.Error("json with charset should be json")
	}
	if IsJSONContentType("application/x-www-form-urlencoded") {
		t.Error("form should not be json")
	}
	if IsJSONContentType("") {
		t.Error("empty should not be json")
	}
}

func TestParseBetFromJSON(t *testing.T) {
	body := `{"sub_bets":[{"position":1,"number":5,"amount":"2.00"},{"position":2,"number":3,"amount":"1.50"}],"total_amount":"3.50","idempotency_key":"k-1"}`
	out, ok, msg := ParseBetFromJSON(strings.NewReader(body))
	if !ok {
		t.Fatalf("parse failed: %s", msg)
	}
	if len(out.SubBets) != 2 || out.SubBets[0].Position != 1 || out.SubBets[1].Amount != "1.50" {
		t.Fatalf("unexpected sub bets: %+v", out.SubBets)
	}
	if out.TotalAmount != "3.50" || out.IdempotencyKey != "k-1" {
		t.Fatalf("unexpected fields: %+v", out)
	}

	if _, ok, _ := ParseBetFromJSON(strings.NewReader("{not json")); ok {
		t.Fatal("invalid json should fail")
	}
}

func TestValidateBet(t *testing.T) {
	mk := func() BetParsed {
		return BetParsed{
			SubBets:        []SubBetParsed{{Position: 1, Number: 5, Amount: "2.00"}},
			TotalAmount:    "2.00",
			IdempotencyKey: "key-123",
		}
	}

	if ok, msg := ValidateBet(&BetParsed{}); ok || msg == "" {
		t.Error("empty bet should fail")
	}

	in := mk()
	if ok, msg := ValidateBet(&in); !ok {
		t.Errorf("valid bet rejected: %s", msg)
	}

	in = mk()
	in.TotalAmount = ""
	if ok, _ := ValidateBet(&in); ok {
		t.Error("missing total_amount should fail")
	}

	in = mk()
	in.TotalAmount = "2.001"
	if ok, _ := ValidateBet(&in); ok {
		t.Error("three decimals should fail")
	}

	in = mk()
	in.IdempotencyKey = ""
	if ok, _ := ValidateBet(&in); ok {
		t.Error("missing idempotency_key should fail")
	}

	in = mk()
	in.IdempotencyKey = strings.Repeat("x", 65)
	if ok, _ := ValidateBet(&in); ok {
		t.Error("oversized idempotency_key should fail")
	}

	in = mk()
	in.SubBets[0].Amount = "abc"
	if ok, _ := ValidateBet(&in); ok {
		t.Error("non-numeric sub bet amount should fail")
	}

	in = mk()
	in.SubBets = make([]SubBetParsed, 101)
	for i := range in.SubBets {
		in.SubBets[i] = SubBetParsed{Position: 1, Number: 1, Amount: "1"}
	}
	if ok, _ := ValidateBet(&in); ok {
		t.Error("101 sub bets should fail")
	}
}

func TestValidateAdjust(t *testing.T) {
	cases := []struct {
		name string
		in   AdjustParsed
		ok   bool
	}{
		{"credit", AdjustParsed{PlatformUserID: "u1", Amount: "10.00"}, true},
		{"debit", AdjustParsed{PlatformUserID: "u1", Amount: "-10.00"}, true},
		{"missing user", AdjustParsed{Amount: "10"}, false},
		{"missing amount", AdjustParsed{PlatformUserID: "u1"}, false},
		{"bare minus", AdjustParsed{PlatformUserID: "u1", Amount: "-"}, false},
		{"three decimals", AdjustParsed{PlatformUserID: "u1", Amount: "1.234"}, false},
		{"long remark", AdjustParsed{PlatformUserID: "u1", Amount: "1", Remark: strings.Repeat("r", 256)}, false},
	}
	for _, c := range cases {
		if ok, _ := ValidateAdjust(&c.in); ok != c.ok {
			t.Errorf("%s: ok=%v, want %v", c.name, ok, c.ok)
		}
	}
}
