package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Rule extracts text from the first element matching Selector. When Attr
// is set the attribute value is taken instead of the element text, which
// is how meta tags carry their price.
type Rule struct {
	Selector string
	Attr     string
}

// genericRules cover pages exposing standard Open Graph product metadata.
var genericRules = []Rule{
	{Selector: `meta[property="product:price:amount"]`, Attr: "content"},
	{Selector: `meta[property="og:price:amount"]`, Attr: "content"},
}

// ruleSets maps a scraper type to the ordered extraction rules for that
// site. Adding a new site is a data change here, not new code.
var ruleSets = map[string][]Rule{
	"generic":     genericRules,
	"woocommerce": {{Selector: ".woocommerce-Price-amount.amount"}},
	"cellphones":  {{Selector: ".sale-price"}},
	"dienmayxanh": {{Selector: ".bs_price strong"}},
	"fptshop": {
		// FPT Shop ships two different price markups, try both.
		{Selector: ".price-product"},
		{Selector: ".text-black-opacity-100.h4-bold"},
	},
	"tiki":          {{Selector: ".product-price__current-price"}},
	"lazada":        {{Selector: ".pdp-price_type_normal"}},
	"shopee":        {{Selector: ".product-briefing .items-center > div"}},
	"sendo":         {{Selector: ".current-price"}},
	"thegioididong": {{Selector: ".box-price-present"}},
	"hoanghamobile": {{Selector: ".product-center-price"}},
	"bachhoaxanh":   {{Selector: ".product-detail .price"}},
	"nguyenkim":     {{Selector: ".product-price--final"}},
	"dell":          {{Selector: ".ps-dell-price .ps-sale-price"}},
	"anphat":        {{Selector: ".p-price .pd-price"}},
}

// RulesFor returns the extraction rules for a scraper type. Unknown types
// fall back to the generic meta-tag rules rather than erroring.
func RulesFor(scraperType string) []Rule {
	if rules, ok := ruleSets[scraperType]; ok {
		return rules
	}
	return genericRules
}

// ExtractPriceText applies the rule set for scraperType to a parsed
// document. Rules are tried in order and the first non-empty trimmed
// result wins; an empty string means no rule matched.
func ExtractPriceText(doc *goquery.Document, scraperType string) string {
	for _, rule := range RulesFor(scraperType) {
		sel := doc.Find(rule.Selector).First()

		var text string
		if rule.Attr != "" {
			text, _ = sel.Attr(rule.Attr)
		} else {
			text = sel.Text()
		}

		if text = strings.TrimSpace(text); text != "" {
			return text
		}
	}

	return ""
}
