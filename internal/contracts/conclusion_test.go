package contracts

import "testing"

func TestParseDirection(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   Direction
		wantOK bool
	}{
		{name: "up-open", input: "up-open", want: DirectionUpOpen, wantOK: true},
		{name: "mixed case", input: " Down-Open ", want: DirectionDownOpen, wantOK: true},
		{name: "flat", input: "flat", want: DirectionFlat, wantOK: true},
		{name: "legacy up", input: "高开", want: DirectionUpOpen, wantOK: true},
		{name: "legacy down", input: "低开", want: DirectionDownOpen, wantOK: true},
		{name: "legacy flat", input: "平开", want: DirectionFlat, wantOK: true},
		{name: "unknown", input: "sideways", wantOK: false},
		{name: "empty", input: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDirection(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseDirection(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("ParseDirection(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDirection_Evaluable(t *testing.T) {
	if !DirectionUpOpen.Evaluable() || !DirectionDownOpen.Evaluable() {
		t.Error("up-open and down-open must be evaluable")
	}
	if DirectionFlat.Evaluable() {
		t.Error("flat must not be evaluable")
	}
}

func TestActiveStocks(t *testing.T) {
	stocks := []Stock{
		{ID: "sz002594", Status: StockActive},
		{ID: "sh600519", Status: StockInactive},
		{ID: "sz000001"},
		{ID: "sh601318", Status: StockActive},
	}

	active := ActiveStocks(stocks)
	if len(active) != 2 {
		t.Fatalf("expected 2 active stocks, got %d", len(active))
	}
	if active[0].ID != "sz002594" || active[1].ID != "sh601318" {
		t.Errorf("unexpected order: %v", active)
	}
}
