package ingestion

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Benny93/ninmem-go/internal/model"
	"github.com/Benny93/ninmem-go/internal/storage"
)

const testCodeTree = `{"data": [
	{"kode": "~", "tittel": {"nb": "Katalog"}},
	{"kode": "NA", "tittel": {"nb": "Naturtyper"}, "forelder": "~"},
	{"kode": "NA-T", "tittel": {"nb": "Fastmark"}, "forelder": "NA"},
	{"kode": "NA-T4", "tittel": {"nb": "Skog"}, "forelder": "NA-T"},
	{"kode": "BS", "tittel": {"nb": "Beskrivelsesvariabler"}, "forelder": "~"},
	{"kode": "BS_1", "tittel": {"nb": "Tilstand"}, "forelder": "BS"},
	{"kode": "MI", "tittel": {"nb": "Miljøvariabler"}, "forelder": "~"},
	{"kode": "MI_KA", "tittel": {"nb": "Kalkinnhold"}, "forelder": "MI"},
	{"kode": "AO", "tittel": {"nb": "Fylker"}, "forelder": "~"},
	{"kode": "AO_03", "tittel": {"nb": "Oslo"}, "forelder": "AO"},
	{"kode": "AO_03-01", "tittel": {"nb": "Oslo"}, "forelder": "AO_03"},
	{"kode": "AO_50", "tittel": {"nb": "Trøndelag"}, "forelder": "AO"},
	{"kode": "AO_50-24", "tittel": {"nb": "Indre Fosen"}, "forelder": "AO_50"},
	{"kode": "AR", "tittel": {"nb": "Liv"}, "forelder": "~"},
	{"kode": "AR_1", "tittel": {"la": "Plantae"}, "forelder": "AR"},
	{"kode": "AR_100", "tittel": {"nb": "gran", "la": "Picea abies"}, "forelder": "AR_1"}
]}`

const testNatureAreas = `[
	{"Id": 1, "Area": 10.5, "Envelope": "POLYGON((0 0, 10 0, 10 10, 0 10, 0 0))"},
	{"Id": 2, "Area": 4, "Envelope": "POLYGON((20 20, 30 20, 30 30, 20 30, 20 20))"}
]`

const testRedlistCategories = `[
	{"Id": 1, "Name": "VU", "NatureAreaIds": [1, 99]}
]`

const testRedlistThemes = `[
	{"Id": 7, "Name": "Skog", "AssessmentUnits": [
		{"Id": 70, "Name": "Gammel skog", "NatureAreaIds": [2]}
	]}
]`

// Rissa carries its number from before it merged into Indre Fosen.
const testGeographicalAreaData = `{
	"Counties": [
		{"Number": 3, "Name": "Oslo", "Municipalities": [
			{"Number": 301, "Name": "Oslo", "NatureAreaIds": [1]}
		]},
		{"Number": 50, "Name": "Trøndelag", "Municipalities": [
			{"Number": 1624, "Name": "Rissa", "NatureAreaIds": [2]}
		]}
	],
	"ConservationAreaCategories": [
		{"ShortName": "NR", "Name": "", "ConservationAreas": [
			{"Number": 11, "Name": "Skogen naturreservat", "NatureAreaIds": [2]}
		]}
	]
}`

const testTaxons = `[
	{"TaxonId": 1, "ScientificNameId": 1, "ScientificName": "Plantae", "EastNorths": []},
	{
		"TaxonId": 100, "ParentScientificNameId": 1, "ScientificNameId": 100,
		"ScientificName": "Picea abies", "PopularName": "gran",
		"NatureAreaTypeCodes": ["na-t4"], "RedlistCategories": ["NT"],
		"EastNorths": [[5, 5], [6, 6]], "Municipalities": [301], "ConservationAreas": [11]
	},
	{"TaxonId": 200, "ScientificNameId": 200, "ScientificName": "Pinus", "EastNorths": [[25, 25]]}
]`

const testVariables = `[
	{"NatureAreaTypeCode": "na-t4", "NatureAreaId": 1, "Percentage": 80, "DescriptionVariables": ["1", "KA", "ZZ"]},
	{"NatureAreaTypeCode": "na-t4", "NatureAreaId": 1, "Percentage": 20, "DescriptionVariables": []}
]`

const testTraits = `[
	{"ScientificNameId": 100, "TotalLifeSpan": 300, "Habitat": ["na-t4"], "TrophicLevel": ["producer"], "FeedsOn": [999]}
]`

// testDocs returns a small but complete input bundle. Building it skips
// three links (nature area 99, variable ZZ, taxon 999) and two taxa
// (Plantae has no observations, Pinus is not in the code tree).
func testDocs() map[string][]byte {
	return map[string][]byte{
		model.KeyCodeTree:                       []byte(testCodeTree),
		model.KeyNatureAreas:                    []byte(testNatureAreas),
		model.KeyNatureAreaRedlistCategories:    []byte(testRedlistCategories),
		model.KeyNatureAreaRedlistThemes:        []byte(testRedlistThemes),
		model.KeyNatureAreaGeographicalAreaData: []byte(testGeographicalAreaData),
		model.KeyTaxons:                         []byte(testTaxons),
		model.KeyNatureAreaVariables:            []byte(testVariables),
		model.KeyTaxonTraits:                    []byte(testTraits),
	}
}

func newTestStore(t *testing.T, docs map[string][]byte) *storage.MemoryStore {
	t.Helper()
	store := storage.NewMemoryStore(docs)
	require.NoError(t, store.Initialize("", false))
	return store
}

func loadTestInput(t *testing.T) *model.GraphInput {
	t.Helper()
	input, err := LoadInput(t.Context(), newTestStore(t, testDocs()), nil)
	require.NoError(t, err)
	return input
}
