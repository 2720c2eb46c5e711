// Package model defines the domain vocabulary of the nature knowledge
// graph: vertex and edge labels, property keys, code prefixes, fixed name
// tables and the input bundle the graph is built from.
package model

import (
	"fmt"

	"github.com/Benny93/ninmem-go/internal/graph"
)

// Vertex labels.
const (
	NatureArea graph.Label = iota + 1
	NatureAreaType
	DescriptionVariable
	EnvironmentVariable
	RedlistCategory
	RedlistTheme
	RedlistAssessmentUnit
	AdministrativeArea
	Municipality
	ConservationArea
	ConservationAreaCategory
	Taxon
	BlacklistCategory
	TreeNode
	MatingSystem
	PrimaryDiet
	SexualDimorphism
	SocialSystem
	Terrestriality
	TrophicLevel
)

// Edge labels. Child points from a code to its parent code; In points from
// a container (category, area, variable) to what it contains.
const (
	Child graph.Label = iota + 100
	In

	// Taxon trait relations.
	Eats
	Hunts
	LivesIn
	Has
	Is
)

// Property keys.
const (
	PropName graph.PropertyKey = iota + 1
	PropArea
	PropPercentage
	PropNames
	PropScientificNameID
	PropScientificName
	PropTaxonID
	PropPopularName
	PropTotalLifeSpan
)

// Schema is the graph schema of the domain.
var Schema = graph.Schema{ParentEdge: Child, NameProperty: PropName}

var labelNames = map[graph.Label]string{
	NatureArea:               "NatureArea",
	NatureAreaType:           "NatureAreaType",
	DescriptionVariable:      "DescriptionVariable",
	EnvironmentVariable:      "EnvironmentVariable",
	RedlistCategory:          "RedlistCategory",
	RedlistTheme:             "RedlistTheme",
	RedlistAssessmentUnit:    "RedlistAssessmentUnit",
	AdministrativeArea:       "AdministrativeArea",
	Municipality:             "Municipality",
	ConservationArea:         "ConservationArea",
	ConservationAreaCategory: "ConservationAreaCategory",
	Taxon:                    "Taxon",
	BlacklistCategory:        "BlacklistCategory",
	TreeNode:                 "TreeNode",
	MatingSystem:             "MatingSystem",
	PrimaryDiet:              "PrimaryDiet",
	SexualDimorphism:         "SexualDimorphism",
	SocialSystem:             "SocialSystem",
	Terrestriality:           "Terrestriality",
	TrophicLevel:             "TrophicLevel",
	Child:                    "Child",
	In:                       "In",
	Eats:                     "Eats",
	Hunts:                    "Hunts",
	LivesIn:                  "LivesIn",
	Has:                      "Has",
	Is:                       "Is",
}

// LabelName returns a readable name for a vertex or edge label.
func LabelName(l graph.Label) string {
	if name, ok := labelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Label(%d)", int(l))
}
