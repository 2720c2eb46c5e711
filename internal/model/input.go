package model

// Storage keys of the input bundle documents.
const (
	KeyNatureAreas                    = "natureareas"
	KeyTaxons                         = "taxons"
	KeyNatureAreaDescriptionVariables = "nature_area_description_variables"
	KeyNatureAreaTypes                = "nature_area_types"
	KeyNatureAreaRedlistCategories    = "nature_area_redlist_categories"
	KeyNatureAreaRedlistThemes        = "nature_area_redlist_themes"
	KeyNatureAreaGeographicalAreaData = "nature_area_geographical_area_data"
	KeyCodeTree                       = "code_tree"
	KeyNatureAreaVariables            = "nature_area_variables"
	KeyTaxonTraits                    = "taxon_traits"
)

// InputKeys returns the keys a graph build reads, in load order.
func InputKeys() []string {
	return []string{
		KeyNatureAreas,
		KeyNatureAreaRedlistCategories,
		KeyNatureAreaRedlistThemes,
		KeyNatureAreaGeographicalAreaData,
		KeyTaxons,
		KeyCodeTree,
		KeyNatureAreaVariables,
		KeyTaxonTraits,
	}
}

// OptionalInputKey reports whether a missing document for key decodes to
// an empty collection instead of failing the load.
func OptionalInputKey(key string) bool {
	return key == KeyNatureAreaVariables || key == KeyTaxonTraits
}

// GraphInput is the fully materialized bundle a graph is built from.
type GraphInput struct {
	NatureAreas                    []NatureAreaDto
	NatureAreaRedlistCategories    []RedlistCategoryDto
	NatureAreaRedlistThemes        []RedlistThemeDto
	NatureAreaGeographicalAreaData GeographicalAreaData
	Taxons                         []TaxonDto
	CodeTree                       *CodeTreeNode
	NatureAreaVariables            []NatureAreaVariables
	TaxonTraits                    []TaxonTraits
}

// NatureAreaDto is a mapped nature area. Envelope is WKT.
type NatureAreaDto struct {
	ID       int     `json:"Id"`
	Area     float64 `json:"Area"`
	Envelope string  `json:"Envelope"`
}

// TaxonDto is one entry of the input document.
type TaxonDto struct {
	TaxonID                int      `json:"TaxonId"`
	ParentScientificNameID int      `json:"ParentScientificNameId"`
	ScientificNameID       int      `json:"ScientificNameId"`
	ScientificName         string   `json:"ScientificName"`
	PopularName            string   `json:"PopularName"`
	NatureAreaTypeCodes    []string `json:"NatureAreaTypeCodes"`
	BlacklistCategory      string   `json:"BlacklistCategory"`
	RedlistCategories      []string `json:"RedlistCategories"`
	// EastNorths holds observation points as [east, north] pairs.
	EastNorths        [][]int `json:"EastNorths"`
	Municipalities    []int   `json:"Municipalities"`
	ConservationAreas []int   `json:"ConservationAreas"`
}

type TaxonTraits struct {
	ScientificNameID int      `json:"ScientificNameId"`
	TotalLifeSpan    *int     `json:"TotalLifeSpan"`
	Habitat          []string `json:"Habitat"`
	Terrestriality   string   `json:"Terrestriality"`
	TrophicLevel     []string `json:"TrophicLevel"`
	FeedsOn          []int    `json:"FeedsOn"`
	PreysUpon        []int    `json:"PreysUpon"`
	SexualDimorphism []string `json:"SexualDimorphism"`
	MatingSystem     string   `json:"MatingSystem"`
	SocialSystem     []string `json:"SocialSystem"`
	PrimaryDiet      []string `json:"PrimaryDiet"`
}

// IsEmpty reports whether no trait is set.
func (t TaxonTraits) IsEmpty() bool {
	return t.TotalLifeSpan == nil &&
		t.Habitat == nil &&
		t.Terrestriality == "" &&
		t.TrophicLevel == nil &&
		t.FeedsOn == nil &&
		t.PreysUpon == nil &&
		t.SexualDimorphism == nil &&
		t.MatingSystem == "" &&
		t.SocialSystem == nil &&
		t.PrimaryDiet == nil
}

// NatureAreaVariables maps one nature area to a nature area type and the
// description variables recorded for it.
type NatureAreaVariables struct {
	NatureAreaTypeCode   string   `json:"NatureAreaTypeCode"`
	NatureAreaID         int      `json:"NatureAreaId"`
	Percentage           float64  `json:"Percentage"`
	Mapped               *string  `json:"Mapped,omitempty"`
	DescriptionVariables []string `json:"DescriptionVariables"`
}

// RedlistCategoryDto is one entry of the input document.
type RedlistCategoryDto struct {
	ID            int    `json:"Id"`
	Name          string `json:"Name"`
	NatureAreaIDs []int  `json:"NatureAreaIds"`
}

// RedlistThemeDto is one entry of the input document.
type RedlistThemeDto struct {
	ID              int                     `json:"Id"`
	Name            string                  `json:"Name"`
	AssessmentUnits []RedlistAssessmentUnitDto `json:"AssessmentUnits"`
}

// RedlistAssessmentUnitDto is one entry of the input document.
type RedlistAssessmentUnitDto struct {
	ID            int    `json:"Id"`
	Name          string `json:"Name"`
	NatureAreaIDs []int  `json:"NatureAreaIds"`
}

type GeographicalAreaData struct {
	Counties                   []County       `json:"Counties"`
	ConservationAreaCategories []AreaCategory `json:"ConservationAreaCategories"`
}

type County struct {
	Number         int            `json:"Number"`
	Name           string         `json:"Name"`
	Municipalities []MunicipalityDto `json:"Municipalities"`
}

// MunicipalityDto is one entry of the input document.
type MunicipalityDto struct {
	Number        int    `json:"Number"`
	Name          string `json:"Name"`
	NatureAreaIDs []int  `json:"NatureAreaIds"`
}

type AreaCategory struct {
	ShortName         string             `json:"ShortName"`
	Name              string             `json:"Name"`
	ConservationAreas []ConservationAreaDto `json:"ConservationAreas"`
}

// ConservationAreaDto is one entry of the input document.
type ConservationAreaDto struct {
	Number        int    `json:"Number"`
	Name          string `json:"Name"`
	NatureAreaIDs []int  `json:"NatureAreaIds"`
}
