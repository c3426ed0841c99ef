package processor

import (
	"strings"
)

// legalForms maps the spellings scrapers encounter to a canonical legal
// form label.
var legalForms = map[string]string{
	"gmbh":           "GmbH",
	"gmbh & co. kg":  "GmbH & Co. KG",
	"gmbh & co kg":   "GmbH & Co. KG",
	"ug":             "UG",
	"ug (haftungsbeschränkt)": "UG (haftungsbeschränkt)",
	"ag":             "AG",
	"kg":             "KG",
	"ohg":            "OHG",
	"gbr":            "GbR",
	"e.k.":           "e.K.",
	"ek":             "e.K.",
	"e.v.":           "e.V.",
	"se":             "SE",
	"einzelunternehmen": "Einzelunternehmen",
}

// states canonicalizes Bundesland spellings.
var states = map[string]string{
	"baden-württemberg":      "Baden-Württemberg",
	"baden-wuerttemberg":     "Baden-Württemberg",
	"bayern":                 "Bayern",
	"berlin":                 "Berlin",
	"brandenburg":            "Brandenburg",
	"bremen":                 "Bremen",
	"hamburg":                "Hamburg",
	"hessen":                 "Hessen",
	"mecklenburg-vorpommern": "Mecklenburg-Vorpommern",
	"niedersachsen":          "Niedersachsen",
	"nordrhein-westfalen":    "Nordrhein-Westfalen",
	"nrw":                    "Nordrhein-Westfalen",
	"rheinland-pfalz":        "Rheinland-Pfalz",
	"saarland":               "Saarland",
	"sachsen":                "Sachsen",
	"sachsen-anhalt":         "Sachsen-Anhalt",
	"schleswig-holstein":     "Schleswig-Holstein",
	"thüringen":              "Thüringen",
	"thueringen":             "Thüringen",
}

const maxDescriptionLen = 1000

// Normalizer brings validated fields into the shape the companies table
// stores: canonical casing, extracted legal form, trimmed description.
type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

func (n *Normalizer) Normalize(fields map[string]any) map[string]any {
	if n == nil || fields == nil {
		return fields
	}

	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}

	if name := strings.TrimSpace(str(fields["company_name"])); name != "" {
		cleaned, legalForm := extractLegalForm(name)
		out["company_name"] = normalizeName(cleaned)
		if legalForm != "" {
			if _, set := out["legal_form"]; !set {
				out["legal_form"] = legalForm
			}
		}
	}
	if city := strings.TrimSpace(str(fields["city"])); city != "" {
		out["city"] = titleCase(city)
	}
	if state := strings.TrimSpace(str(fields["state"])); state != "" {
		if canonical, ok := states[strings.ToLower(state)]; ok {
			out["state"] = canonical
		}
	}
	if desc := strings.TrimSpace(str(fields["description"])); desc != "" {
		if len([]rune(desc)) > maxDescriptionLen {
			desc = string([]rune(desc)[:maxDescriptionLen])
		}
		out["description"] = desc
	}

	return out
}

// extractLegalForm strips a trailing legal form suffix off the name and
// returns both parts. "Müller Bäckerei GmbH" -> ("Müller Bäckerei", "GmbH").
func extractLegalForm(name string) (cleaned, legalForm string) {
	lower := strings.ToLower(name)
	for suffix, canonical := range legalForms {
		if strings.HasSuffix(lower, " "+suffix) {
			trimmed := strings.TrimSpace(name[:len(name)-len(suffix)])
			trimmed = strings.TrimRight(trimmed, " ,-")
			if trimmed != "" && (legalForm == "" || len(suffix) > len(legalForm)) {
				cleaned, legalForm = trimmed, canonical
			}
		}
	}
	if cleaned == "" {
		return name, ""
	}
	return cleaned, legalForm
}

// normalizeName title-cases the words of a name but leaves acronyms
// (all-caps runs of 2+ letters) alone.
func normalizeName(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		if isAcronym(w) {
			continue
		}
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

func isAcronym(w string) bool {
	letters := 0
	for _, r := range w {
		if r >= 'a' && r <= 'z' {
			return false
		}
		if (r >= 'A' && r <= 'Z') || r == 'Ä' || r == 'Ö' || r == 'Ü' {
			letters++
		}
	}
	return letters >= 2
}

func capitalize(w string) string {
	runes := []rune(strings.ToLower(w))
	if len(runes) == 0 {
		return w
	}
	runes[0] = []rune(strings.ToUpper(string(runes[0])))[0]
	return string(runes)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}
