package domain

import "testing"

func TestPosition_Exposure(t *testing.T) {
	tests := []struct {
		name  string
		apply func(p *Position)
		want  int64
	}{
		{"Bid fill unhedged", func(p *Position) { p.ApplyFill(Bid, 100) }, 100},
		{"Ask fill unhedged", func(p *Position) { p.ApplyFill(Ask, 100) }, -100},
		{"Bid fill hedged", func(p *Position) {
			p.ApplyFill(Bid, 100)
			p.ApplyHedge(Ask, 100)
		}, 0},
		{"Partial hedge", func(p *Position) {
			p.ApplyFill(Ask, 100)
			p.ApplyHedge(Bid, 40)
		}, -60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Position{}
			tt.apply(p)
			if got := int64(p.Exposure()); got != tt.want {
				t.Errorf("Position.Exposure() = %d, want %d", got, tt.want)
			}
			if p.IsFlat() != (tt.want == 0) {
				t.Errorf("Position.IsFlat() = %v", p.IsFlat())
			}
		})
	}
}
