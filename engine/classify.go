/*
classify.go - Heuristic package-type classification for quotes

PURPOSE:
  Scores a quote's free text, line-item descriptions, total value, and
  item count against the four business-package categories and returns the
  best match with a 0-100 confidence and per-category reasoning strings.

POLICY:
  Classification is advisory and must never block document generation.
  Malformed input degrades to the general_website default with confidence
  0 rather than returning an error. A perfect tie, or an all-zero score
  board, also falls back to general_website.

SEE ALSO:
  - keywords.go: The static per-category scoring tables
*/
package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	scoreTwo         = decimal.NewFromInt(2)
	scoreOne         = decimal.NewFromInt(1)
	scoreOneAndHalf  = decimal.RequireFromString("1.5")
	scoreHalf        = decimal.RequireFromString("0.5")
	belowRangeFactor = decimal.RequireFromString("1.5")
	aboveRangeFactor = decimal.RequireFromString("0.7")
	hundred          = decimal.NewFromInt(100)
)

// Classify scores the input against every category and picks the best.
// Deterministic given identical arguments; no hidden state.
func Classify(freeText []string, itemDescriptions []string, totalValue float64, itemCount int) ClassificationResult {
	if math.IsNaN(totalValue) || math.IsInf(totalValue, 0) || itemCount < 0 {
		return degradedResult()
	}

	textHaystack := strings.ToLower(strings.Join(freeText, " "))
	itemHaystack := strings.ToLower(strings.Join(itemDescriptions, " "))
	value := decimal.NewFromFloat(totalValue)

	scores := make(map[PackageType]decimal.Decimal, len(AllPackageTypes))
	reasoning := make(map[PackageType][]string, len(AllPackageTypes))
	for _, pt := range AllPackageTypes {
		score, reasons := scoreCategory(categoryProfiles[pt], textHaystack, itemHaystack, value, itemCount)
		scores[pt] = score
		reasoning[pt] = reasons
	}

	best, tied := selectBest(scores)
	return ClassificationResult{
		PackageType:       best,
		ConfidencePercent: confidence(scores, best, tied),
		ScoresByType:      scores,
		Reasoning:         reasoning,
	}
}

// scoreCategory applies the four signal groups in fixed order: keywords,
// item patterns, value fit, item-count fit. Reasons list every matched
// signal in that order.
func scoreCategory(p categoryProfile, text, items string, value decimal.Decimal, itemCount int) (decimal.Decimal, []string) {
	score := decimal.Zero
	reasons := []string{}

	for _, k := range p.keywords {
		n := len(k.re.FindAllStringIndex(text, -1))
		if n == 0 {
			continue
		}
		score = score.Add(k.weight.Mul(decimal.NewFromInt(int64(n))))
		reasons = append(reasons, fmt.Sprintf("keyword %q matched %dx (weight %s)", k.word, n, k.weight))
	}

	for _, ip := range p.itemPatterns {
		n := len(ip.re.FindAllStringIndex(items, -1))
		if n == 0 {
			continue
		}
		score = score.Add(itemPatternWeight.Mul(decimal.NewFromInt(int64(n))))
		reasons = append(reasons, fmt.Sprintf("item pattern %q matched %dx", ip.phrase, n))
	}

	switch {
	case value.GreaterThanOrEqual(p.valueMin) && value.LessThanOrEqual(p.valueMax):
		score = score.Add(scoreTwo)
		reasons = append(reasons, fmt.Sprintf("total value %s within expected range %s-%s", value, p.valueMin, p.valueMax))
	case value.LessThan(p.valueMin) && value.Mul(belowRangeFactor).GreaterThanOrEqual(p.valueMin):
		score = score.Add(scoreOne)
		reasons = append(reasons, fmt.Sprintf("total value %s just below expected range %s-%s", value, p.valueMin, p.valueMax))
	case value.GreaterThan(p.valueMax) && value.Mul(aboveRangeFactor).LessThanOrEqual(p.valueMax):
		score = score.Add(scoreOne)
		reasons = append(reasons, fmt.Sprintf("total value %s just above expected range %s-%s", value, p.valueMin, p.valueMax))
	}

	switch {
	case itemCount >= p.countMin && itemCount <= p.countMax:
		score = score.Add(scoreOneAndHalf)
		reasons = append(reasons, fmt.Sprintf("item count %d within expected range %d-%d", itemCount, p.countMin, p.countMax))
	case itemCount < p.countMin && itemCount*2 >= p.countMin:
		score = score.Add(scoreHalf)
		reasons = append(reasons, fmt.Sprintf("item count %d near expected minimum %d", itemCount, p.countMin))
	}

	return score.Round(2), reasons
}

// selectBest picks the max-scoring category. Returns tied=true when more
// than one category shares the max, or every score is zero; the caller
// then falls back to the general_website default.
func selectBest(scores map[PackageType]decimal.Decimal) (PackageType, bool) {
	best := AllPackageTypes[0]
	max := scores[best]
	ties := 1
	for _, pt := range AllPackageTypes[1:] {
		switch {
		case scores[pt].GreaterThan(max):
			best, max, ties = pt, scores[pt], 1
		case scores[pt].Equal(max):
			ties++
		}
	}
	if ties > 1 || max.IsZero() {
		return PackageGeneralWebsite, true
	}
	return best, false
}

// confidence is detectedScore / sum(allScores) × 100, rounded. When the
// top score exceeds the runner-up by more than 1.5x, a flat 20-point
// boost applies, capped at 95. Ties and zero boards are confidence 0.
func confidence(scores map[PackageType]decimal.Decimal, best PackageType, tied bool) int {
	if tied {
		return 0
	}
	sum := decimal.Zero
	runnerUp := decimal.Zero
	for _, pt := range AllPackageTypes {
		sum = sum.Add(scores[pt])
		if pt != best && scores[pt].GreaterThan(runnerUp) {
			runnerUp = scores[pt]
		}
	}
	if sum.IsZero() {
		return 0
	}
	conf := int(scores[best].Div(sum).Mul(hundred).Round(0).IntPart())
	if scores[best].GreaterThan(runnerUp.Mul(belowRangeFactor)) {
		conf += 20
		if conf > 95 {
			conf = 95
		}
	}
	return conf
}

func degradedResult() ClassificationResult {
	scores := make(map[PackageType]decimal.Decimal, len(AllPackageTypes))
	reasoning := make(map[PackageType][]string, len(AllPackageTypes))
	for _, pt := range AllPackageTypes {
		scores[pt] = decimal.Zero
		reasoning[pt] = []string{}
	}
	return ClassificationResult{
		PackageType:       PackageGeneralWebsite,
		ConfidencePercent: 0,
		ScoresByType:      scores,
		Reasoning:         reasoning,
	}
}

// =============================================================================
// CLASSIFICATION VALIDATION - Flags low-confidence calls
// =============================================================================

// ValidateClassification re-scores the input and reports whether the
// detected type stands on solid ground: warnings for a narrow score gap,
// weak overall evidence, or violated value/item-count ranges, plus up to
// two alternate types worth offering (any runner-up scoring >= 2).
//
// A classification is valid only when confidence >= 60 and no warnings
// were raised.
func ValidateClassification(detected PackageType, freeText []string, itemDescriptions []string, totalValue float64, itemCount int) ClassificationCheck {
	res := Classify(freeText, itemDescriptions, totalValue, itemCount)

	check := ClassificationCheck{
		Confidence: res.ConfidencePercent,
		Warnings:   []string{},
		Alternates: []PackageType{},
	}

	top, runnerUp := topTwo(res.ScoresByType)
	if top.Sub(runnerUp).LessThan(scoreTwo) {
		check.Warnings = append(check.Warnings, fmt.Sprintf(
			"top score %s is within 2 points of the runner-up %s", top, runnerUp))
	}
	if top.LessThan(decimal.NewFromInt(3)) {
		check.Warnings = append(check.Warnings, fmt.Sprintf(
			"overall evidence is weak (top score %s)", top))
	}

	for _, pt := range rankedTypes(res.ScoresByType) {
		if pt == detected || len(check.Alternates) == 2 {
			continue
		}
		if res.ScoresByType[pt].GreaterThanOrEqual(scoreTwo) {
			check.Alternates = append(check.Alternates, pt)
		}
	}

	if p, ok := categoryProfiles[detected]; ok {
		value := decimal.NewFromFloat(totalValue)
		if value.LessThan(p.valueMin) || value.GreaterThan(p.valueMax) {
			check.Warnings = append(check.Warnings, fmt.Sprintf(
				"total value %s is outside the typical range for %s (%s-%s)",
				value, detected, p.valueMin, p.valueMax))
		}
		if itemCount < p.countMin || itemCount > p.countMax {
			check.Warnings = append(check.Warnings, fmt.Sprintf(
				"item count %d is outside the typical range for %s (%d-%d)",
				itemCount, detected, p.countMin, p.countMax))
		}
	}

	check.Valid = check.Confidence >= 60 && len(check.Warnings) == 0
	return check
}

// topTwo returns the highest and second-highest scores on the board.
func topTwo(scores map[PackageType]decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	ranked := rankedTypes(scores)
	return scores[ranked[0]], scores[ranked[1]]
}

// rankedTypes orders categories by score descending, breaking ties by
// canonical category order so output is stable.
func rankedTypes(scores map[PackageType]decimal.Decimal) []PackageType {
	ranked := make([]PackageType, len(AllPackageTypes))
	copy(ranked, AllPackageTypes)
	// Insertion sort: four elements, stability matters more than speed.
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && scores[ranked[j]].GreaterThan(scores[ranked[j-1]]); j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}
	return ranked
}
