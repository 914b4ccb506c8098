package llm

import (
	"strings"
	"unicode/utf8"
)

// maxContextChars bounds, in bytes, the search context embedded in a prompt.
const maxContextChars = 12000

// BuildDimensionsPrompt asks for the physical dimensions of product using the
// search context, falling back to similar products and then to typical values
// for the inferred product category.
func BuildDimensionsPrompt(product, searchContext string) string {
	searchContext = truncateUTF8(searchContext, maxContextChars)

	parts := []string{
		`Based on the following search context for the product "` + product + `", extract its height, width, length and weight.`,
		"- If you find the exact dimensions, use them.",
		"- If you do not, use the dimensions of very similar products mentioned in the context.",
		"- If a value still cannot be determined, predict it: decide what kind of product this is and use typical dimensions for that category.",
		"- Measurements often appear in the listing title or image captions; prefer the most representative and reliable option.",
		"- Be especially careful with the physical weight.",
		"- Heights, widths and lengths are in centimetres; weight is in kilograms. Return them as floating point numbers.",
		`- Put the web page or source you used in the "source" key; if unknown, use "desconocida".`,
		`- Your answer MUST be only a JSON object with the keys "height", "width", "length", "weight" and "source".`,
		"",
		"Context:",
		"---",
		searchContext,
		"---",
	}
	return strings.Join(parts, "\n")
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
