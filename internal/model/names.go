package model

import (
	"fmt"
	"maps"
	"slices"
)

// Name languages.
const (
	LangNorwegian = "nb"
	LangLatin     = "la"
)

// CodeName is one entry of a fixed name table.
type CodeName struct {
	Code string
	Name string
}

var redlistCategories = []CodeName{
	{"RE", "Regionalt utdødd"},
	{"CR", "Kritisk truet"},
	{"EN", "Sterkt truet"},
	{"VU", "Sårbar"},
	{"NT", "Nær truet"},
	{"DD", "Datamangel"},
	{"LC", "Livskraftig"},
}

var blacklistCategories = []CodeName{
	{"SE", "Svært høy risiko"},
	{"HI", "Høy risiko"},
	{"PH", "Potensielt høy risiko"},
	{"LO", "Lav risiko"},
	{"NK", "Ingen kjent risiko"},
}

var conservationAreaCategories = map[string]string{
	"NR":    "Naturreservat",
	"NP":    "Nasjonalpark",
	"LVO":   "Landskapsvernområde",
	"D":     "Dyrelivsfredning",
	"PD":    "Plante- og dyrelivsfredning",
	"NM":    "Naturminne",
	"LVOP":  "Landskapsvernområde med plantelivsfredning",
	"DO":    "Dyrefredningsområde",
	"LVOD":  "Landskapsvernområde med dyrelivsfredning",
	"PO":    "Plantefredningsområde",
	"LVOPD": "Landskapsvernområde med plante- og dyrelivsfredning",
	"PDO":   "Plante- og dyrefredningsområde",
	"MIV":   "Midlertidig verna område/objekt",
	"P":     "Plantelivsfredning",
	"BVV":   "Biotopvern etter viltloven",
	"NRS":   "Naturreservat (Svalbardmiljøloven)",
	"NPS":   "Nasjonalpark (Svalbardmiljøloven)",
	"GVS":   "Geotopvern (Svalbardmiljøloven)",
	"BV":    "Biotopvern",
	"MAV":   "Marint verneområde (naturmangfoldloven)",
}

// RedlistCategories returns the red list categories in severity order.
func RedlistCategories() []CodeName { return slices.Clone(redlistCategories) }

// BlacklistCategories returns the alien species risk categories in
// descending risk order.
func BlacklistCategories() []CodeName { return slices.Clone(blacklistCategories) }

// RedlistCategoryName returns the name of a red list category code.
func RedlistCategoryName(code string) (string, bool) { return lookup(redlistCategories, code) }

// BlacklistCategoryName returns the name of a blacklist category code.
func BlacklistCategoryName(code string) (string, bool) { return lookup(blacklistCategories, code) }

// ConservationAreaCategoryName returns the name of a conservation area
// category short code, or "Andre (<code>)" for unknown codes.
func ConservationAreaCategoryName(code string) string {
	if name, ok := conservationAreaCategories[code]; ok {
		return name
	}
	return fmt.Sprintf("Andre (%s)", code)
}

// ConservationAreaCategoryCodes returns the known category short codes,
// sorted.
func ConservationAreaCategoryCodes() []string {
	return slices.Sorted(maps.Keys(conservationAreaCategories))
}

func lookup(table []CodeName, code string) (string, bool) {
	for _, cn := range table {
		if cn.Code == code {
			return cn.Name, true
		}
	}
	return "", false
}
