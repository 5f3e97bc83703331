package engine_test

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/covara/agreement-engine/engine"
	"github.com/shopspring/decimal"
)

// =============================================================================
// TEST FIXTURES
// =============================================================================

// bookingQuote is a quote that should classify as booking_system with a
// comfortable margin over every other category.
var bookingQuote = struct {
	text  []string
	items []string
	value float64
	count int
}{
	text:  []string{"We need an online booking system with appointment scheduling"},
	items: []string{"booking system setup", "calendar integration", "reminder notifications"},
	value: 45000,
	count: 5,
}

// =============================================================================
// CLASSIFICATION TESTS
// =============================================================================

func TestClassify_Deterministic(t *testing.T) {
	// GIVEN: Identical arguments
	// WHEN: Classifying twice
	// THEN: Results are identical, including scores and reasoning

	a := engine.Classify(bookingQuote.text, bookingQuote.items, bookingQuote.value, bookingQuote.count)
	b := engine.Classify(bookingQuote.text, bookingQuote.items, bookingQuote.value, bookingQuote.count)

	if !reflect.DeepEqual(a, b) {
		t.Errorf("classification is not deterministic:\n%+v\n%+v", a, b)
	}
}

func TestClassify_BookingQuote(t *testing.T) {
	res := engine.Classify(bookingQuote.text, bookingQuote.items, bookingQuote.value, bookingQuote.count)

	if res.PackageType != engine.PackageBookingSystem {
		t.Fatalf("expected booking_system, got %s (scores %v)", res.PackageType, res.ScoresByType)
	}
	if res.ConfidencePercent < 60 {
		t.Errorf("expected a confident call, got %d%%", res.ConfidencePercent)
	}
	if len(res.Reasoning[engine.PackageBookingSystem]) == 0 {
		t.Error("winning category should list its matched evidence")
	}
}

func TestClassify_AllEmptyInput_DefaultsToGeneralWebsite(t *testing.T) {
	// GIVEN: Nothing to score
	// WHEN: Classifying
	// THEN: The safe fallback applies with zero confidence - never an error

	res := engine.Classify(nil, nil, 0, 0)

	if res.PackageType != engine.PackageGeneralWebsite {
		t.Errorf("expected general_website fallback, got %s", res.PackageType)
	}
	if res.ConfidencePercent != 0 {
		t.Errorf("expected confidence 0, got %d", res.ConfidencePercent)
	}
}

func TestClassify_PerfectTie_DefaultsToGeneralWebsite(t *testing.T) {
	// GIVEN: Only value/count signals, which land three categories on the
	//        same score
	// WHEN: Classifying
	// THEN: The tie falls back to general_website

	res := engine.Classify(nil, nil, 50000, 5)

	if res.PackageType != engine.PackageGeneralWebsite {
		t.Errorf("tie should fall back to general_website, got %s (scores %v)",
			res.PackageType, res.ScoresByType)
	}
	if res.ConfidencePercent != 0 {
		t.Errorf("tie carries no confidence, got %d", res.ConfidencePercent)
	}
}

func TestClassify_MalformedInput_DegradesQuietly(t *testing.T) {
	// GIVEN: A non-finite total value
	// WHEN: Classifying
	// THEN: Degrades to the default with confidence 0 rather than raising -
	//       classification must never block document generation

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		res := engine.Classify([]string{"booking"}, nil, v, 3)
		if res.PackageType != engine.PackageGeneralWebsite || res.ConfidencePercent != 0 {
			t.Errorf("value %v: expected degraded default, got %s/%d",
				v, res.PackageType, res.ConfidencePercent)
		}
	}
}

func TestClassify_ConfidenceBoost_WhenTopDominates(t *testing.T) {
	// GIVEN: A top score more than 1.5x the runner-up
	// WHEN: Classifying
	// THEN: Confidence is base + 20, capped at 95

	res := engine.Classify(bookingQuote.text, bookingQuote.items, bookingQuote.value, bookingQuote.count)

	top := res.ScoresByType[res.PackageType]
	runnerUp := decimal.Zero
	sum := decimal.Zero
	for pt, s := range res.ScoresByType {
		sum = sum.Add(s)
		if pt != res.PackageType && s.GreaterThan(runnerUp) {
			runnerUp = s
		}
	}
	if !top.GreaterThan(runnerUp.Mul(decimal.RequireFromString("1.5"))) {
		t.Fatalf("fixture no longer dominates (top %s, runner-up %s); adjust the quote", top, runnerUp)
	}

	base := int(top.Div(sum).Mul(decimal.NewFromInt(100)).Round(0).IntPart())
	want := base + 20
	if want > 95 {
		want = 95
	}
	if res.ConfidencePercent != want {
		t.Errorf("expected boosted confidence %d, got %d", want, res.ConfidencePercent)
	}
}

func TestClassify_WholeWordMatching(t *testing.T) {
	// GIVEN: Text containing "overbooking" but not the word "booking"
	// WHEN: Classifying
	// THEN: The booking keyword does not fire on the substring

	res := engine.Classify([]string{"avoid overbooking issues"}, nil, 0, 0)

	if !res.ScoresByType[engine.PackageBookingSystem].IsZero() {
		t.Errorf("substring must not score, got %s", res.ScoresByType[engine.PackageBookingSystem])
	}
}

// =============================================================================
// CLASSIFICATION VALIDATION TESTS
// =============================================================================

func TestValidateClassification_StrongCall_IsValid(t *testing.T) {
	check := engine.ValidateClassification(engine.PackageBookingSystem,
		bookingQuote.text, bookingQuote.items, bookingQuote.value, bookingQuote.count)

	if !check.Valid {
		t.Errorf("strong classification should validate, warnings: %v", check.Warnings)
	}
	if len(check.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", check.Warnings)
	}
}

func TestValidateClassification_NarrowGap_Warns(t *testing.T) {
	// GIVEN: Value/count-only input where the score board is flat
	// WHEN: Validating the detected type
	// THEN: A narrow-gap warning plus up to two alternates scoring >= 2

	check := engine.ValidateClassification(engine.PackageEcommerce, nil, nil, 50000, 5)

	if check.Valid {
		t.Error("flat score board should not validate")
	}
	if len(check.Warnings) == 0 {
		t.Error("expected a narrow-gap warning")
	}
	if len(check.Alternates) != 2 {
		t.Errorf("expected 2 alternates, got %v", check.Alternates)
	}
	for _, alt := range check.Alternates {
		if alt == engine.PackageEcommerce {
			t.Error("detected type must not appear in alternates")
		}
	}
}

func TestValidateClassification_RangeViolations_Warn(t *testing.T) {
	// GIVEN: A detected type whose value/count ranges the quote violates
	// WHEN: Validating
	// THEN: One human-readable warning per violated range

	check := engine.ValidateClassification(engine.PackageWebApplication,
		bookingQuote.text, bookingQuote.items, 5000, 1)

	var rangeWarnings int
	for _, w := range check.Warnings {
		if strings.Contains(w, "typical range") {
			rangeWarnings++
		}
	}
	if rangeWarnings != 2 {
		t.Errorf("expected 2 range warnings, got %v", check.Warnings)
	}
}
