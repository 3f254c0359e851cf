package state

import "testing"

func TestNextState(t *testing.T) {
	cases := []struct {
		cur, evt string
		want     string
		wantErr  bool
	}{
		{StatePending, EvtExpire, StateDrawing, false},
		{StateDrawing, EvtSettled, StateCompleted, false},
		{StatePending, EvtSettled, "", true},
		{StateDrawing, EvtExpire, "", true},
		{StateCompleted, EvtExpire, "", true},
		{StateCompleted, EvtSettled, "", true},
		{"", EvtExpire, "", true},
	}
	for _, c := range cases {
		got, err := NextState(c.cur, c.evt)
		if c.wantErr {
			if err == nil {
				t.Errorf("NextState(%q, %q): expected error", c.cur, c.evt)
			}
			continue
		}
		if err != nil {
			t.Errorf("NextState(%q, %q): unexpected error %v", c.cur, c.evt, err)
			continue
		}
		if got != c.want {
			t.Errorf("NextState(%q, %q) = %q, want %q", c.cur, c.evt, got, c.want)
		}
	}
}

func TestCodeRoundTrip(t *testing.T) {
	for _, s := range []string{StatePending, StateDrawing, StateCompleted} {
		if got := FromCode(ToCode(s)); got != s {
			t.Errorf("round trip %q -> %d -> %q", s, ToCode(s), got)
		}
	}
	if FromCode(0) != "" || FromCode(4) != "" {
		t.Error("unknown codes should map to empty state")
	}
	if ToCode("unknown") != 0 {
		t.Error("unknown state should map to code 0")
	}
}
