package estimate

import (
	"math"
	"testing"
)

// =============================================================================
// Totals
// =============================================================================

func TestCalculateTotals_JapaneseTax(t *testing.T) {
	estimates := []Estimate{
		{Amount: 400000},
		{Amount: 600000},
	}

	totals := CalculateTotals(estimates, 0.10)
	if totals.Subtotal != 1000000 {
		t.Errorf("Subtotal = %v, want 1000000", totals.Subtotal)
	}
	if totals.Tax != 100000 {
		t.Errorf("Tax = %v, want 100000", totals.Tax)
	}
	if totals.Total != 1100000 {
		t.Errorf("Total = %v, want 1100000", totals.Total)
	}
}

func TestCalculateTotals_ZeroTaxRate(t *testing.T) {
	totals := CalculateTotals([]Estimate{{Amount: 500}}, 0)
	if totals.Tax != 0 || totals.Total != 500 {
		t.Errorf("Totals = %+v, want tax 0 total 500", totals)
	}
}

func TestCalculateTotals_Idempotent(t *testing.T) {
	estimates := []Estimate{{Amount: 123456.78}, {Amount: 98765.43}}

	first := CalculateTotals(estimates, 0.10)
	second := CalculateTotals(estimates, 0.10)
	if first != second {
		t.Errorf("Repeated calculation differs: %+v vs %+v", first, second)
	}
}

func TestCalculateTotals_Empty(t *testing.T) {
	totals := CalculateTotals(nil, 0.10)
	if totals.Subtotal != 0 || totals.Tax != 0 || totals.Total != 0 {
		t.Errorf("Totals for empty set = %+v, want zeros", totals)
	}
}

// =============================================================================
// Deliverables
// =============================================================================

func TestNewDeliverable_GeneratesStableID(t *testing.T) {
	d1 := NewDeliverable("要件定義書", "ヒアリングと要件整理")
	d2 := NewDeliverable("要件定義書", "ヒアリングと要件整理")

	if d1.ID == "" {
		t.Fatal("Expected generated id")
	}
	if d1.ID == d2.ID {
		t.Error("Expected distinct ids for distinct deliverables")
	}
	if d1.Name != "要件定義書" {
		t.Errorf("Name = %q", d1.Name)
	}
}

// =============================================================================
// Reasoning separation
// =============================================================================

func TestSeparateReasoning_NotesAlreadyPresent(t *testing.T) {
	breakdown, notes := SeparateReasoning("- 設計: 2.0人日", "前提条件あり")
	if breakdown != "- 設計: 2.0人日" || notes != "前提条件あり" {
		t.Errorf("Expected unchanged, got (%q, %q)", breakdown, notes)
	}
}

func TestSeparateReasoning_SplitsBulletsFromProse(t *testing.T) {
	combined := "- 設計: 2.0人日\n- 実装: 3.0人日\n\nこの見積りは既存システムとの連携を前提としています。"

	breakdown, notes := SeparateReasoning(combined, "")
	if breakdown != "- 設計: 2.0人日\n- 実装: 3.0人日" {
		t.Errorf("breakdown = %q", breakdown)
	}
	if notes != "この見積りは既存システムとの連携を前提としています。" {
		t.Errorf("notes = %q", notes)
	}
}

func TestSeparateReasoning_MultiLineBulletSections(t *testing.T) {
	combined := "工程別内訳:\n- 設計: 2.0人日\n- テスト: 1.0人日\n\n備考です。"

	breakdown, notes := SeparateReasoning(combined, "")
	if breakdown != "工程別内訳:\n- 設計: 2.0人日\n- テスト: 1.0人日" {
		t.Errorf("breakdown = %q", breakdown)
	}
	if notes != "備考です。" {
		t.Errorf("notes = %q", notes)
	}
}

func TestSeparateReasoning_AllBulletsUnchanged(t *testing.T) {
	combined := "- 設計: 2.0人日\n\n- 実装: 3.0人日"
	breakdown, notes := SeparateReasoning(combined, "")
	if breakdown != combined || notes != "" {
		t.Errorf("Expected unchanged, got (%q, %q)", breakdown, notes)
	}
}

func TestSeparateReasoning_Empty(t *testing.T) {
	breakdown, notes := SeparateReasoning("", "")
	if breakdown != "" || notes != "" {
		t.Errorf("Expected empty passthrough, got (%q, %q)", breakdown, notes)
	}
}

// =============================================================================
// JSON extraction
// =============================================================================

func TestExtractJSONObject_Plain(t *testing.T) {
	obj, ok := ExtractJSONObject(`{"person_days": 4.5}`)
	if !ok || obj != `{"person_days": 4.5}` {
		t.Errorf("got (%q, %v)", obj, ok)
	}
}

func TestExtractJSONObject_SurroundedByProse(t *testing.T) {
	content := "見積り結果は以下の通りです。\n```json\n{\"person_days\": 4.5, \"reasoning_breakdown\": \"- 設計: 2.0人日\"}\n```\nご確認ください。"

	obj, ok := ExtractJSONObject(content)
	if !ok {
		t.Fatal("Expected extraction to succeed")
	}
	if obj != `{"person_days": 4.5, "reasoning_breakdown": "- 設計: 2.0人日"}` {
		t.Errorf("obj = %q", obj)
	}
}

func TestExtractJSONObject_NestedAndBracesInStrings(t *testing.T) {
	content := `prefix {"outer": {"inner": 1}, "note": "has } brace and \" quote"} suffix {"second": 2}`

	obj, ok := ExtractJSONObject(content)
	if !ok {
		t.Fatal("Expected extraction to succeed")
	}
	if obj != `{"outer": {"inner": 1}, "note": "has } brace and \" quote"}` {
		t.Errorf("obj = %q", obj)
	}
}

func TestExtractJSONObject_NoObject(t *testing.T) {
	if _, ok := ExtractJSONObject("no json here"); ok {
		t.Error("Expected failure for plain text")
	}
	if _, ok := ExtractJSONObject(`{"unterminated": 1`); ok {
		t.Error("Expected failure for unbalanced braces")
	}
}

func TestDecodeObject(t *testing.T) {
	var out struct {
		PersonDays float64 `json:"person_days"`
	}
	if err := DecodeObject("answer: {\"person_days\": 4.5}", &out); err != nil {
		t.Fatalf("DecodeObject error = %v", err)
	}
	if out.PersonDays != 4.5 {
		t.Errorf("PersonDays = %v, want 4.5", out.PersonDays)
	}

	if err := DecodeObject("{invalid json}", &out); err == nil {
		t.Error("Expected error for malformed JSON")
	}
	if err := DecodeObject("none at all", &out); err == nil {
		t.Error("Expected error when no object present")
	}
}

// =============================================================================
// Amount validation
// =============================================================================

func TestValidateAmount_WithinTolerance(t *testing.T) {
	// 5.0 person-days x 40000 = 200000; 10% tolerance allows 180000-220000.
	if err := ValidateAmount(200000, 5.0, 40000); err != nil {
		t.Errorf("Exact amount rejected: %v", err)
	}
	if err := ValidateAmount(219000, 5.0, 40000); err != nil {
		t.Errorf("Amount within tolerance rejected: %v", err)
	}
}

func TestValidateAmount_OutsideTolerance(t *testing.T) {
	if err := ValidateAmount(250000, 5.0, 40000); err == nil {
		t.Error("Expected rejection for +25% deviation")
	}
	if err := ValidateAmount(100000, 5.0, 40000); err == nil {
		t.Error("Expected rejection for -50% deviation")
	}
}

func TestValidateAmount_ZeroExpected(t *testing.T) {
	if err := ValidateAmount(12345, 0, 40000); err != nil {
		t.Errorf("Zero expected amount should skip validation, got %v", err)
	}
}

func TestValidateAmount_BoundaryExactlyTenPercent(t *testing.T) {
	expected := 5.0 * 40000.0
	boundary := expected * 1.10
	if math.Abs(boundary-220000) > 1e-9 {
		t.Fatalf("test setup wrong")
	}
	if err := ValidateAmount(boundary, 5.0, 40000); err != nil {
		t.Errorf("Exactly 10%% deviation should pass, got %v", err)
	}
}
