package model

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Code prefixes. A code is "<prefix>_<value>", lowercased.
const (
	PrefixAdministrativeArea       = "ao"
	PrefixConservationAreaCategory = "vk"
	PrefixConservationArea         = "vv"
	PrefixRedlistCategory          = "rl"
	PrefixRedlistAssessmentUnit    = "rv"
	PrefixRedlistTheme             = "rt"
	PrefixBlacklistCategory        = "fa"
	PrefixNatureArea               = "no"
	PrefixTaxon                    = "ar"
	PrefixDescriptionVariable      = "bs"
	PrefixEnvironmentVariable      = "mi"
	PrefixMatingSystem             = "aems"
	PrefixPrimaryDiet              = "aepd"
	PrefixSexualDimorphism         = "aesd"
	PrefixSocialSystem             = "aess"
	PrefixTerrestriality           = "aet"
	PrefixTrophicLevel             = "aetl"
)

const (
	// RootCode is the code of the catalogue root.
	RootCode = "~"

	// NatureAreaTypeRoot is the code of the nature area type hierarchy.
	NatureAreaTypeRoot = "na"

	// NatureAreaTypeCodePrefix starts every nature area type code below
	// NatureAreaTypeRoot.
	NatureAreaTypeCodePrefix = "na-"
)

// Prefixes returns every code prefix.
func Prefixes() []string {
	return []string{
		PrefixAdministrativeArea,
		PrefixConservationArea,
		PrefixConservationAreaCategory,
		PrefixRedlistCategory,
		PrefixRedlistAssessmentUnit,
		PrefixRedlistTheme,
		PrefixBlacklistCategory,
		PrefixNatureArea,
		PrefixTaxon,
		PrefixDescriptionVariable,
		PrefixEnvironmentVariable,
		PrefixMatingSystem,
		PrefixPrimaryDiet,
		PrefixSexualDimorphism,
		PrefixSocialSystem,
		PrefixTerrestriality,
		PrefixTrophicLevel,
	}
}

// FormatCode builds "<prefix>_<value>" with spaces replaced by
// underscores, lowercased.
func FormatCode(prefix string, value any) string {
	return strings.ToLower(strings.ReplaceAll(fmt.Sprintf("%s_%v", prefix, value), " ", "_"))
}

// Code constructors, one per entity kind.
func NatureAreaCode(id int) string { return FormatCode(PrefixNatureArea, id) }
func TaxonCode(scientificNameID int) string { return FormatCode(PrefixTaxon, scientificNameID) }
func RedlistCategoryCode(name string) string { return FormatCode(PrefixRedlistCategory, name) }
func RedlistThemeCode(id int) string { return FormatCode(PrefixRedlistTheme, id) }
func RedlistAssessmentUnitCode(id int) string { return FormatCode(PrefixRedlistAssessmentUnit, id) }
func BlacklistCategoryCode(name string) string { return FormatCode(PrefixBlacklistCategory, name) }
func ConservationAreaCategoryCode(short string) string { return FormatCode(PrefixConservationAreaCategory, short) }
func ConservationAreaCode(number int) string { return FormatCode(PrefixConservationArea, number) }

// TraitCode builds the code of a taxon trait value under prefix.
func TraitCode(prefix, value string) string { return FormatCode(prefix, value) }

// VariableCode returns the description variable code for codes starting
// with a digit and the environment variable code otherwise.
func VariableCode(code string) string {
	if code != "" && unicode.IsDigit(rune(code[0])) {
		return FormatCode(PrefixDescriptionVariable, code)
	}
	return FormatCode(PrefixEnvironmentVariable, code)
}

// AdministrativeUnitCode maps a county or municipality number to its code
// in the administrative hierarchy: 3 gives "ao_03", 301 gives "ao_03-01",
// 1201 gives "ao_12-01".
func AdministrativeUnitCode(number int) string {
	s := strconv.Itoa(number)
	switch {
	case number < 10:
		return "ao_0" + s
	case number < 1000:
		return "ao_0" + s[:1] + "-" + s[1:]
	default:
		return "ao_" + s[:2] + "-" + s[2:]
	}
}

// AdministrativeAreaNumber is the inverse of AdministrativeUnitCode.
func AdministrativeAreaNumber(code string) (int, error) {
	digits := strings.ReplaceAll(strings.TrimPrefix(code, PrefixAdministrativeArea+"_"), "-", "")
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("administrative area code %q: %w", code, err)
	}
	return n, nil
}
