package chat

import (
	"regexp"
	"strconv"
	"strings"
)

// Direction is the sign of a quantified adjustment request.
type Direction string

const (
	DirectionReduce   Direction = "reduce"
	DirectionIncrease Direction = "increase"
)

// Adjustment is a detected amount+direction expression, e.g. 「30万円安く」.
type Adjustment struct {
	Amount    float64
	Direction Direction
}

// Qualifier prefixes (あと/さらに/...) and suffixes (ほど/ぐらい/...) are
// tolerated around the number. 「N万円」 and 「N0000円」 notations both
// normalize to yen.
var (
	reduceManPattern = regexp.MustCompile(
		`(?:あと|さらに|もっと|もう少し)?[\s　]*(\d+)[\s　]*万円?(?:ほど|ぐらい|くらい)?(?:安く|削減|減らし|下げ|カット|ダウン|マイナス)`)
	reduceYenPattern = regexp.MustCompile(
		`(?:あと|さらに|もっと|もう少し)?[\s　]*(\d+)0{4}[\s　]*円(?:ほど|ぐらい|くらい)?(?:安く|削減|減らし|下げ|カット|ダウン|マイナス)`)
	increaseManPattern = regexp.MustCompile(
		`(?:あと|さらに|もっと|もう少し)?[\s　]*(\d+)[\s　]*万円?(?:ほど|ぐらい|くらい)?(?:アップ|増やし|追加|上げ|プラス)`)
	increaseYenPattern = regexp.MustCompile(
		`(?:あと|さらに|もっと|もう少し)?[\s　]*(\d+)0{4}[\s　]*円(?:ほど|ぐらい|くらい)?(?:アップ|増やし|追加|上げ|プラス)`)

	// The trailing group catches percent signs so "reduce X by 20%" is left
	// to the rule-based path instead of being read as a currency amount.
	reduceEnPattern = regexp.MustCompile(
		`(?:reduce|cut|lower|decrease)(?:\s+\S+)*?\s+by\s+(?:about\s+|around\s+)?[$¥]?([\d,]+)\s*([%％]?)`)
	increaseEnPattern = regexp.MustCompile(
		`(?:increase|raise|add)(?:\s+\S+)*?\s+by\s+(?:about\s+|around\s+)?[$¥]?([\d,]+)\s*([%％]?)`)
)

// DetectAdjustment scans a free-text message for a quantified amount change.
// Returns nil when the message carries no such expression.
func DetectAdjustment(message string) *Adjustment {
	if message == "" {
		return nil
	}
	m := strings.ToLower(message)

	for _, p := range []*regexp.Regexp{reduceManPattern, reduceYenPattern} {
		if match := p.FindStringSubmatch(m); match != nil {
			return &Adjustment{Amount: parseUnits(match[1]) * 10000, Direction: DirectionReduce}
		}
	}
	if match := reduceEnPattern.FindStringSubmatch(m); match != nil && match[2] == "" {
		return &Adjustment{Amount: parseUnits(match[1]), Direction: DirectionReduce}
	}

	for _, p := range []*regexp.Regexp{increaseManPattern, increaseYenPattern} {
		if match := p.FindStringSubmatch(m); match != nil {
			return &Adjustment{Amount: parseUnits(match[1]) * 10000, Direction: DirectionIncrease}
		}
	}
	if match := increaseEnPattern.FindStringSubmatch(m); match != nil && match[2] == "" {
		return &Adjustment{Amount: parseUnits(match[1]), Direction: DirectionIncrease}
	}
	return nil
}

func parseUnits(s string) float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0
	}
	return v
}
