package chat

import "testing"

func TestDetectAdjustment(t *testing.T) {
	tests := []struct {
		message   string
		amount    float64
		direction Direction
	}{
		{"30万円安くしてください", 300000, DirectionReduce},
		{"あと50万ほど削減したい", 500000, DirectionReduce},
		{"さらに10万円くらいカットできますか", 100000, DirectionReduce},
		{"300000円安くして", 300000, DirectionReduce},
		{"100万円アップでお願いします", 1000000, DirectionIncrease},
		{"もう少し20万追加してほしい", 200000, DirectionIncrease},
		{"reduce the total by $1,000", 1000, DirectionReduce},
		{"could you cut the estimate by 500", 500, DirectionReduce},
		{"increase the budget by 2,000", 2000, DirectionIncrease},
	}

	for _, tt := range tests {
		got := DetectAdjustment(tt.message)
		if got == nil {
			t.Errorf("DetectAdjustment(%q) = nil, want %v %v", tt.message, tt.amount, tt.direction)
			continue
		}
		if got.Amount != tt.amount || got.Direction != tt.direction {
			t.Errorf("DetectAdjustment(%q) = %v %v, want %v %v",
				tt.message, got.Amount, got.Direction, tt.amount, tt.direction)
		}
	}
}

func TestDetectAdjustment_NoMatch(t *testing.T) {
	for _, message := range []string{
		"",
		"こんにちは",
		"テストを簡素化してください",
		"管理画面を20%下げてください",
		"Reduce the effort for Admin UI by 20%",
		"Reduce all effort by 5%",
	} {
		if got := DetectAdjustment(message); got != nil {
			t.Errorf("DetectAdjustment(%q) = %+v, want nil", message, got)
		}
	}
}

func TestGroupDigits(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567.8, "1,234,568"},
		{-40000, "-40,000"},
	}
	for _, tt := range tests {
		if got := groupDigits(tt.in); got != tt.want {
			t.Errorf("groupDigits(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
