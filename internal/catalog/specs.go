// internal/catalog/specs.go
package catalog

import (
	"regexp"
	"strings"
)

// Heurystyki pisane pod opisy wyrobów skórzanych. Kolejność sprawdzeń ma znaczenie.
var (
	reFullGrain = regexp.MustCompile(`(?i)\bfull[\s-]?grain\s+leather\b`)
	reGenuine   = regexp.MustCompile(`(?i)\b(?:genuine|real)\s+leather\b|\bcowhide\b`)
	reLeather   = regexp.MustCompile(`(?i)\bleather\b`)

	reFit      = regexp.MustCompile(`(?i)\b(slim|regular|relaxed|oversized)\s+fit\b`)
	reLaptop   = regexp.MustCompile(`(?i)\b(?:laptop|macbook|notebook)s?\b`)
	reInches   = regexp.MustCompile(`(?i)\b(\d{2}(?:\.\d)?)\s*-?\s*(?:inch(?:es)?\b|")`)
	reSizeWord = regexp.MustCompile(`(?i)\bsizes?\b`)
	reSizeCode = regexp.MustCompile(`\b(XXXL|XXL|XL|XXS|XS|3XL|2XL|S|M|L)\b`)
	reAdjStrap = regexp.MustCompile(`(?i)\badjustable\s+(?:shoulder\s+)?straps?\b`)
	reZipper   = regexp.MustCompile(`(?i)\bzip(?:per(?:ed|s)?|s)?\b`)
	rePockets  = regexp.MustCompile(`(?i)\bpockets\b`)
	reHandmade = regexp.MustCompile(`(?i)\bhand[\s-]?(?:made|crafted|stitched)\b`)
	rePremium  = regexp.MustCompile(`(?i)\b(?:premium|luxury|luxurious|high[\s-]quality|full[\s-]?grain)\b`)
)

// kolejność = priorytet; wygrywa pierwszy kolor z listy, nie pierwszy w tekście
var colorVocabulary = []string{
	"black", "brown", "tan", "cognac", "burgundy", "navy",
	"grey", "gray", "white", "red", "green", "blue", "beige",
}

var colorPatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(colorVocabulary))
	for i, c := range colorVocabulary {
		out[i] = regexp.MustCompile(`(?i)\b` + c + `\b`)
	}
	return out
}()

// InferSpecifications wyciąga atrybuty z nazwy i opisu (tekst, nie HTML).
// Wynik jest best-effort; brak dopasowania = brak klucza (poza Quality).
func InferSpecifications(name, description string) map[string]string {
	text := strings.TrimSpace(name + " " + description)
	specs := make(map[string]string)

	switch {
	case reFullGrain.MatchString(text):
		specs["Material"] = "Full-Grain Leather"
	case reGenuine.MatchString(text):
		specs["Material"] = "Genuine Leather"
	case reLeather.MatchString(text):
		specs["Material"] = "Leather"
	}

	for i, re := range colorPatterns {
		if re.MatchString(text) {
			specs["Color"] = titleWord(colorVocabulary[i])
			break
		}
	}

	if m := reFit.FindStringSubmatch(text); m != nil {
		specs["Fit"] = titleWord(strings.ToLower(m[1])) + " Fit"
	}

	if reLaptop.MatchString(text) {
		var sizes []string
		for _, m := range reInches.FindAllStringSubmatch(text, -1) {
			sizes = appendUnique(sizes, m[1]+"-inch")
		}
		if len(sizes) > 0 {
			specs["Laptop Size"] = strings.Join(sizes, ", ")
		}
	}

	if reSizeWord.MatchString(text) {
		var codes []string
		for _, m := range reSizeCode.FindAllStringSubmatch(text, -1) {
			codes = appendUnique(codes, m[1])
		}
		if len(codes) > 0 {
			specs["Sizes"] = strings.Join(codes, ", ")
		}
	}

	var features []string
	if reAdjStrap.MatchString(text) {
		features = append(features, "Adjustable strap")
	}
	if reZipper.MatchString(text) {
		features = append(features, "Zipper closure")
	}
	if rePockets.MatchString(text) {
		features = append(features, "Multiple pockets")
	}
	if reHandmade.MatchString(text) {
		features = append(features, "Handmade")
	}
	if len(features) > 0 {
		specs["Features"] = strings.Join(features, ", ")
	}

	if rePremium.MatchString(text) {
		specs["Quality"] = "Premium"
	} else {
		specs["Quality"] = "Durable"
	}
	return specs
}

func titleWord(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
