/*
keywords.go - Static scoring tables for package-type classification

PURPOSE:
  One auditable table per category: weighted keywords searched in free
  text, item-pattern phrases searched in line-item descriptions, and the
  expected total-value and item-count ranges. These tables are data, not
  behavior - classify.go interprets them.

WEIGHTS:
  Keywords default to weight 1; strong signals are boosted to 2-3.
  Item patterns carry a fixed weight of 1.5 because line-item wording is
  a stronger signal than free text.

MATCHING:
  All matching is whole-word (word-boundary), case-insensitive, against
  lower-cased haystacks. Patterns are precompiled at load time.

SEE ALSO:
  - classify.go: Scoring and selection
*/
package engine

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// itemPatternWeight is the fixed weight for item-description phrase hits.
var itemPatternWeight = decimal.RequireFromString("1.5")

type weightedKeyword struct {
	word   string
	weight decimal.Decimal
	re     *regexp.Regexp
}

type itemPattern struct {
	phrase string
	re     *regexp.Regexp
}

type categoryProfile struct {
	keywords     []weightedKeyword
	itemPatterns []itemPattern
	valueMin     decimal.Decimal
	valueMax     decimal.Decimal
	countMin     int
	countMax     int
}

// wholeWord compiles a case-already-lowered phrase into a word-boundary
// matcher. Substring hits ("booked" for "book") do not count.
func wholeWord(phrase string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(strings.ToLower(phrase)) + `\b`)
}

func kw(word string, weight int64) weightedKeyword {
	return weightedKeyword{word: word, weight: decimal.NewFromInt(weight), re: wholeWord(word)}
}

func pat(phrase string) itemPattern {
	return itemPattern{phrase: phrase, re: wholeWord(phrase)}
}

func money(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// categoryProfiles defines the four business-package categories.
// Evaluation iterates AllPackageTypes, not this map, for determinism.
var categoryProfiles = map[PackageType]categoryProfile{
	PackageGeneralWebsite: {
		keywords: []weightedKeyword{
			kw("website", 2),
			kw("homepage", 1),
			kw("landing page", 1),
			kw("wordpress", 2),
			kw("cms", 1),
			kw("blog", 1),
			kw("seo", 1),
			kw("web design", 2),
			kw("portfolio", 1),
			kw("brochure", 1),
		},
		itemPatterns: []itemPattern{
			pat("responsive design"),
			pat("contact form"),
			pat("content management"),
			pat("search engine optimization"),
			pat("page design"),
		},
		valueMin: money(10000), valueMax: money(60000),
		countMin: 2, countMax: 8,
	},
	PackageEcommerce: {
		keywords: []weightedKeyword{
			kw("ecommerce", 3),
			kw("webshop", 3),
			kw("shop", 2),
			kw("store", 1),
			kw("checkout", 2),
			kw("cart", 2),
			kw("payment", 1),
			kw("products", 1),
			kw("catalog", 1),
			kw("shipping", 1),
			kw("stripe", 1),
			kw("klarna", 1),
		},
		itemPatterns: []itemPattern{
			pat("product catalog"),
			pat("payment gateway"),
			pat("shopping cart"),
			pat("order management"),
			pat("inventory sync"),
		},
		valueMin: money(40000), valueMax: money(150000),
		countMin: 5, countMax: 15,
	},
	PackageBookingSystem: {
		keywords: []weightedKeyword{
			kw("booking", 3),
			kw("appointment", 2),
			kw("reservation", 2),
			kw("calendar", 1),
			kw("schedule", 1),
			kw("availability", 1),
			kw("time slot", 1),
			kw("cancellation", 1),
		},
		itemPatterns: []itemPattern{
			pat("booking system"),
			pat("calendar integration"),
			pat("appointment scheduling"),
			pat("reminder notifications"),
			pat("online booking"),
		},
		valueMin: money(30000), valueMax: money(120000),
		countMin: 4, countMax: 12,
	},
	PackageWebApplication: {
		keywords: []weightedKeyword{
			kw("portal", 2),
			kw("dashboard", 2),
			kw("saas", 2),
			kw("api", 1),
			kw("integration", 1),
			kw("database", 1),
			kw("login", 1),
			kw("workflow", 1),
			kw("automation", 1),
			kw("platform", 1),
		},
		itemPatterns: []itemPattern{
			pat("user authentication"),
			pat("admin dashboard"),
			pat("api integration"),
			pat("custom development"),
			pat("data migration"),
		},
		valueMin: money(80000), valueMax: money(400000),
		countMin: 6, countMax: 20,
	},
}
