package ingestion

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/Benny93/ninmem-go/internal/graph"
	"github.com/Benny93/ninmem-go/internal/model"
)

// BuildStats summarizes a graph build.
type BuildStats struct {
	Vertices     int
	Edges        int
	Taxa         int
	NatureAreas  int
	SkippedLinks int
	SkippedTaxa  int
}

type topNode struct {
	code  string
	name  string
	label graph.Label
}

var topNodes = []topNode{
	{model.PrefixAdministrativeArea, "Fylker", model.TreeNode},
	{model.PrefixConservationArea, "Verneområder", model.TreeNode},
	{model.PrefixEnvironmentVariable, "Miljøvariabler", model.TreeNode},
	{model.PrefixDescriptionVariable, "Beskrivelsesvariabler", model.TreeNode},
	{model.PrefixRedlistCategory, "Truede arter", model.TreeNode},
	{model.PrefixRedlistTheme, "Rødlistetemaer", model.TreeNode},
	{model.PrefixBlacklistCategory, "Fremmede arter", model.TreeNode},
	{model.PrefixTaxon, "Liv", model.TreeNode},
	{model.NatureAreaTypeRoot, "Naturområder", model.NatureAreaType},
}

// Municipalities merged into a new one keep their old number in the input;
// they are resolved through the name of the municipality they joined.
var mergedMunicipalities = map[string]string{
	"rissa":    "indre fosen",
	"leksvik":  "indre fosen",
	"hof":      "holmestrand",
	"andebu":   "sandefjord",
	"stokke":   "sandefjord",
	"tjøme":    "færder",
	"nøtterøy": "færder",
	"lardal":   "larvik",
}

type property struct {
	key   graph.PropertyKey
	value any
}

type linkKey struct {
	from, to string
}

type graphBuilder struct {
	g      *graph.G
	in     *model.GraphInput
	logger *slog.Logger
	stats  BuildStats

	linked          map[linkKey]struct{}
	taxa            map[int]model.TaxonDto
	taxaInCodeTree  map[string]*model.CodeTreeNode
	municipalityMap map[int]string
}

// BuildGraph builds the knowledge graph from input. The returned graph is
// still writable; callers freeze it once every index is built.
//
// Links to codes that do not exist are skipped and counted; a duplicate
// vertex id aborts the build.
func BuildGraph(input *model.GraphInput, logger *slog.Logger, opts ...graph.Option) (*graph.G, BuildStats, error) {
	if input == nil || input.CodeTree == nil {
		return nil, BuildStats{}, errors.New("build graph: input has no code tree")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	b := &graphBuilder{
		g:               graph.New(model.Schema, opts...),
		in:              input,
		logger:          logger,
		linked:          make(map[linkKey]struct{}),
		taxa:            make(map[int]model.TaxonDto, len(input.Taxons)),
		municipalityMap: make(map[int]string),
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"catalogue", b.addCatalogue},
		{"codes", b.addCodeTrees},
		{"nature areas", b.addNatureAreas},
		{"nature area variables", b.addNatureAreaVariables},
		{"redlist", b.addRedlist},
		{"conservation areas", b.addConservationAreas},
		{"municipalities", b.addMunicipalities},
		{"taxa", b.addTaxa},
		{"taxon traits", b.addTaxonTraits},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return nil, BuildStats{}, fmt.Errorf("build graph: %s: %w", step.name, err)
		}
	}

	b.stats.Vertices = b.g.VertexCount()
	b.stats.Edges = b.g.EdgeCount()
	b.stats.Taxa = b.g.CountByLabel(model.Taxon)
	b.stats.NatureAreas = b.g.CountByLabel(model.NatureArea)

	logger.Info("graph built",
		"vertices", b.stats.Vertices,
		"edges", b.stats.Edges,
		"taxa", b.stats.Taxa,
		"nature_areas", b.stats.NatureAreas,
		"skipped_links", b.stats.SkippedLinks,
		"skipped_taxa", b.stats.SkippedTaxa)

	return b.g, b.stats, nil
}

func (b *graphBuilder) addV(label graph.Label, code, name string) (*graph.Vertex, error) {
	v, err := b.g.AddV(label, code)
	if err != nil {
		return nil, err
	}
	if err := v.AddP(model.PropName, name); err != nil {
		return nil, err
	}
	return v, nil
}

func (b *graphBuilder) addChild(child, parent *graph.Vertex) error {
	_, err := child.AddE(model.Child, parent)
	return err
}

// linkOnce adds an In edge from container to member. It returns a nil edge
// when the pair was linked before.
func (b *graphBuilder) linkOnce(container, member *graph.Vertex) (*graph.Edge, error) {
	key := linkKey{container.ID(), member.ID()}
	if _, ok := b.linked[key]; ok {
		return nil, nil
	}
	e, err := container.AddE(model.In, member)
	if err != nil {
		return nil, err
	}
	b.linked[key] = struct{}{}
	return e, nil
}

func (b *graphBuilder) skip(msg string, args ...any) {
	b.stats.SkippedLinks++
	b.logger.Debug(msg, args...)
}

func (b *graphBuilder) addCatalogue() error {
	root, err := b.addV(model.TreeNode, model.RootCode, "Katalog")
	if err != nil {
		return err
	}
	for _, top := range topNodes {
		v, err := b.addV(top.label, top.code, top.name)
		if err != nil {
			return err
		}
		if err := b.addChild(v, root); err != nil {
			return err
		}
	}

	redlist, _ := b.g.TryGetV(model.PrefixRedlistCategory)
	for _, c := range model.RedlistCategories() {
		v, err := b.addV(model.RedlistCategory, model.RedlistCategoryCode(c.Code), c.Name)
		if err != nil {
			return err
		}
		if err := b.addChild(v, redlist); err != nil {
			return err
		}
	}

	blacklist, _ := b.g.TryGetV(model.PrefixBlacklistCategory)
	for _, c := range model.BlacklistCategories() {
		v, err := b.addV(model.BlacklistCategory, model.BlacklistCategoryCode(c.Code), c.Name)
		if err != nil {
			return err
		}
		if err := b.addChild(v, blacklist); err != nil {
			return err
		}
	}
	return nil
}

func (b *graphBuilder) addCodeTrees() error {
	subtrees := []struct {
		code  string
		label graph.Label
	}{
		{model.NatureAreaTypeRoot, model.NatureAreaType},
		{model.PrefixDescriptionVariable, model.DescriptionVariable},
		{model.PrefixEnvironmentVariable, model.EnvironmentVariable},
		{model.PrefixAdministrativeArea, model.AdministrativeArea},
	}
	for _, st := range subtrees {
		node := b.codeTreeChild(st.code)
		if node == nil {
			b.logger.Warn("code tree has no subtree", "code", st.code)
			continue
		}
		if err := b.addCodes(node, st.label); err != nil {
			return fmt.Errorf("%s: %w", st.code, err)
		}
	}
	return nil
}

func (b *graphBuilder) codeTreeChild(code string) *model.CodeTreeNode {
	for _, c := range b.in.CodeTree.Children {
		if c.Code == code {
			return c
		}
	}
	return nil
}

func (b *graphBuilder) addCodes(node *model.CodeTreeNode, label graph.Label) error {
	descendants := node.Descendants()
	for _, d := range descendants {
		if _, err := b.addV(label, d.Code, d.Name()); err != nil {
			return err
		}
	}

	connected := make(map[linkKey]struct{})
	for _, d := range descendants {
		v, _ := b.g.TryGetV(d.Code)
		for _, p := range d.Parents {
			key := linkKey{v.ID(), p.Code}
			if _, ok := connected[key]; ok {
				continue
			}
			parent, ok := b.g.TryGetV(p.Code)
			if !ok {
				b.skip("parent code not in graph", "code", d.Code, "parent", p.Code)
				continue
			}
			if err := b.addChild(v, parent); err != nil {
				return err
			}
			connected[key] = struct{}{}
		}
	}
	return nil
}

func (b *graphBuilder) addNatureAreas() error {
	for _, na := range b.in.NatureAreas {
		v, err := b.g.AddV(model.NatureArea, model.NatureAreaCode(na.ID))
		if err != nil {
			return err
		}
		if err := v.AddP(model.PropArea, na.Area); err != nil {
			return err
		}
	}
	return nil
}

func (b *graphBuilder) addNatureAreaVariables() error {
	for _, nav := range b.in.NatureAreaVariables {
		naCode := model.NatureAreaCode(nav.NatureAreaID)
		na, ok := b.g.TryGetV(naCode)
		if !ok {
			b.skip("nature area variables for unknown nature area", "code", naCode)
			continue
		}
		nat, ok := b.g.TryGetV(nav.NatureAreaTypeCode)
		if !ok {
			b.skip("unknown nature area type", "code", nav.NatureAreaTypeCode, "nature_area", naCode)
			continue
		}

		e, err := b.linkOnce(nat, na)
		if err != nil {
			return err
		}
		if e != nil {
			if err := e.AddP(model.PropPercentage, nav.Percentage); err != nil {
				return err
			}
		}

		for _, dv := range nav.DescriptionVariables {
			variable, ok := b.g.TryGetV(model.VariableCode(dv))
			if !ok {
				b.skip("unknown variable", "code", dv, "nature_area", naCode)
				continue
			}
			if _, err := b.linkOnce(variable, na); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *graphBuilder) linkNatureAreas(container *graph.Vertex, ids []int) error {
	for _, id := range ids {
		code := model.NatureAreaCode(id)
		na, ok := b.g.TryGetV(code)
		if !ok {
			b.skip("unknown nature area", "code", code, "container", container.ID())
			continue
		}
		if _, err := container.AddE(model.In, na); err != nil {
			return err
		}
	}
	return nil
}

func (b *graphBuilder) addRedlist() error {
	for _, rc := range b.in.NatureAreaRedlistCategories {
		v, ok := b.g.TryGetV(model.RedlistCategoryCode(rc.Name))
		if !ok {
			b.skip("unknown redlist category", "name", rc.Name)
			continue
		}
		if err := b.linkNatureAreas(v, rc.NatureAreaIDs); err != nil {
			return err
		}
	}

	themes, _ := b.g.TryGetV(model.PrefixRedlistTheme)
	for _, theme := range b.in.NatureAreaRedlistThemes {
		tv, err := b.addV(model.RedlistTheme, model.RedlistThemeCode(theme.ID), theme.Name)
		if err != nil {
			return err
		}
		if err := b.addChild(tv, themes); err != nil {
			return err
		}
		for _, au := range theme.AssessmentUnits {
			av, err := b.addV(model.RedlistAssessmentUnit, model.RedlistAssessmentUnitCode(au.ID), au.Name)
			if err != nil {
				return err
			}
			if err := b.addChild(av, tv); err != nil {
				return err
			}
			if err := b.linkNatureAreas(av, au.NatureAreaIDs); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *graphBuilder) addConservationAreas() error {
	top, _ := b.g.TryGetV(model.PrefixConservationArea)
	for _, cat := range b.in.NatureAreaGeographicalAreaData.ConservationAreaCategories {
		name := cat.Name
		if name == "" {
			name = model.ConservationAreaCategoryName(cat.ShortName)
		}
		cv, err := b.addV(model.ConservationAreaCategory, model.ConservationAreaCategoryCode(cat.ShortName), name)
		if err != nil {
			return err
		}
		if err := b.addChild(cv, top); err != nil {
			return err
		}
		for _, ca := range cat.ConservationAreas {
			av, err := b.addV(model.ConservationArea, model.ConservationAreaCode(ca.Number), ca.Name)
			if err != nil {
				return err
			}
			if err := b.addChild(av, cv); err != nil {
				return err
			}
			if err := b.linkNatureAreas(av, ca.NatureAreaIDs); err != nil {
				return err
			}
		}
	}
	return nil
}

// addMunicipalities links municipalities to their nature areas. Counties
// and municipalities come from the code tree; the input numbers them by the
// numbering in force when the data was collected.
func (b *graphBuilder) addMunicipalities() error {
	byNumber := make(map[int]string)
	byName := make(map[string]string)
	duplicates := make(map[string]bool)

	if aa := b.codeTreeChild(model.PrefixAdministrativeArea); aa != nil {
		for _, d := range aa.Descendants() {
			if len(strings.Split(d.Code, "-")) >= 3 {
				continue
			}
			n, err := model.AdministrativeAreaNumber(d.Code)
			if err != nil {
				b.skip("administrative area without number", "code", d.Code)
				continue
			}
			byNumber[n] = d.Code

			if !strings.Contains(d.Code, "-") {
				continue
			}
			name := strings.ToLower(d.Name())
			if _, ok := byName[name]; ok || duplicates[name] {
				delete(byName, name)
				duplicates[name] = true
				continue
			}
			byName[name] = d.Code
		}
	}

	for _, county := range b.in.NatureAreaGeographicalAreaData.Counties {
		for _, m := range county.Municipalities {
			code, ok := byNumber[m.Number]
			if !ok {
				name := strings.ToLower(m.Name)
				if merged, ok := mergedMunicipalities[name]; ok {
					name = merged
				}
				code, ok = byName[name]
				if !ok {
					b.skip("unresolved municipality", "number", m.Number, "name", m.Name)
					continue
				}
			}
			b.municipalityMap[m.Number] = code

			v, ok := b.g.TryGetV(code)
			if !ok {
				b.skip("municipality not in graph", "code", code)
				continue
			}
			if err := b.linkNatureAreas(v, m.NatureAreaIDs); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *graphBuilder) addTaxa() error {
	for _, t := range b.in.Taxons {
		if _, ok := b.taxa[t.ScientificNameID]; !ok {
			b.taxa[t.ScientificNameID] = t
		}
	}

	b.taxaInCodeTree = make(map[string]*model.CodeTreeNode)
	if ar := b.codeTreeChild(model.PrefixTaxon); ar != nil {
		b.taxaInCodeTree = ar.DescendantSet()
	}

	top, _ := b.g.TryGetV(model.PrefixTaxon)

	for _, t := range b.in.Taxons {
		if len(t.EastNorths) == 0 {
			b.stats.SkippedTaxa++
			continue
		}
		code := model.TaxonCode(t.ScientificNameID)
		if _, ok := b.taxaInCodeTree[code]; !ok {
			b.stats.SkippedTaxa++
			b.logger.Debug("taxon not in code tree", "code", code)
			continue
		}

		v, ok := b.g.TryGetV(code)
		if !ok {
			var err error
			if v, err = b.addTaxon(t, code); err != nil {
				return err
			}
		}
		if v.Parent() != nil {
			continue
		}
		if err := b.attachTaxon(v, t, top); err != nil {
			return err
		}
	}
	return nil
}

// attachTaxon walks the parent chain of t, creating missing ancestors, until
// it reaches a taxon already in the graph or the top of the input.
func (b *graphBuilder) attachTaxon(v *graph.Vertex, t model.TaxonDto, top *graph.Vertex) error {
	current := v
	parentID := t.ParentScientificNameID
	for {
		parent, known := b.taxa[parentID]
		if parentID == 0 || !known {
			return b.addChild(current, top)
		}
		parentCode := model.TaxonCode(parentID)
		if pv, ok := b.g.TryGetV(parentCode); ok {
			return b.addChild(current, pv)
		}
		pv, err := b.addTaxon(parent, parentCode)
		if err != nil {
			return err
		}
		if err := b.addChild(current, pv); err != nil {
			return err
		}
		current = pv
		parentID = parent.ParentScientificNameID
	}
}

func (b *graphBuilder) addTaxon(t model.TaxonDto, code string) (*graph.Vertex, error) {
	v, err := b.addV(model.Taxon, code, t.ScientificName)
	if err != nil {
		return nil, err
	}

	names := map[string]string{}
	if node, ok := b.taxaInCodeTree[code]; ok {
		names = maps.Clone(node.Names)
	}
	props := []property{
		{model.PropScientificNameID, t.ScientificNameID},
		{model.PropScientificName, t.ScientificName},
		{model.PropTaxonID, t.TaxonID},
		{model.PropNames, names},
	}
	if strings.TrimSpace(t.PopularName) != "" {
		props = append(props, property{model.PropPopularName, t.PopularName})
	}
	for _, p := range props {
		if err := v.AddP(p.key, p.value); err != nil {
			return nil, err
		}
	}

	if strings.TrimSpace(t.BlacklistCategory) != "" {
		if err := b.linkTaxon(v, model.BlacklistCategoryCode(t.BlacklistCategory)); err != nil {
			return nil, err
		}
	}
	for _, c := range t.NatureAreaTypeCodes {
		if err := b.linkTaxon(v, c); err != nil {
			return nil, err
		}
	}
	for _, c := range t.RedlistCategories {
		if err := b.linkTaxon(v, model.RedlistCategoryCode(c)); err != nil {
			return nil, err
		}
	}
	for _, n := range t.Municipalities {
		code, ok := b.municipalityMap[n]
		if !ok {
			b.skip("taxon in unknown municipality", "taxon", v.ID(), "number", n)
			continue
		}
		if err := b.linkTaxon(v, code); err != nil {
			return nil, err
		}
	}
	for _, n := range t.ConservationAreas {
		if err := b.linkTaxon(v, model.ConservationAreaCode(n)); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (b *graphBuilder) linkTaxon(taxon *graph.Vertex, containerCode string) error {
	container, ok := b.g.TryGetV(containerCode)
	if !ok {
		b.skip("taxon linked to unknown code", "taxon", taxon.ID(), "code", containerCode)
		return nil
	}
	_, err := container.AddE(model.In, taxon)
	return err
}

func (b *graphBuilder) addTaxonTraits() error {
	for _, tt := range b.in.TaxonTraits {
		if tt.IsEmpty() {
			continue
		}
		v, ok := b.g.TryGetV(model.TaxonCode(tt.ScientificNameID))
		if !ok || v.Label() != model.Taxon {
			b.skip("traits for taxon not in graph", "scientific_name_id", tt.ScientificNameID)
			continue
		}
		if err := b.addTraits(v, tt); err != nil {
			return err
		}
	}
	return nil
}

func (b *graphBuilder) addTraits(v *graph.Vertex, tt model.TaxonTraits) error {
	for _, id := range tt.FeedsOn {
		if err := b.relate(v, model.Eats, model.TaxonCode(id)); err != nil {
			return err
		}
	}
	for _, id := range tt.PreysUpon {
		if err := b.relate(v, model.Hunts, model.TaxonCode(id)); err != nil {
			return err
		}
	}
	for _, code := range tt.Habitat {
		if err := b.relate(v, model.LivesIn, code); err != nil {
			return err
		}
	}

	type trait struct {
		label  graph.Label
		edge   graph.Label
		prefix string
		values []string
	}
	single := func(s string) []string {
		if strings.TrimSpace(s) == "" {
			return nil
		}
		return []string{s}
	}
	traits := []trait{
		{model.MatingSystem, model.Has, model.PrefixMatingSystem, single(tt.MatingSystem)},
		{model.PrimaryDiet, model.Eats, model.PrefixPrimaryDiet, tt.PrimaryDiet},
		{model.SexualDimorphism, model.Has, model.PrefixSexualDimorphism, tt.SexualDimorphism},
		{model.SocialSystem, model.Has, model.PrefixSocialSystem, tt.SocialSystem},
		{model.Terrestriality, model.LivesIn, model.PrefixTerrestriality, single(tt.Terrestriality)},
		{model.TrophicLevel, model.Is, model.PrefixTrophicLevel, tt.TrophicLevel},
	}
	for _, tr := range traits {
		for _, value := range tr.values {
			code := model.TraitCode(tr.prefix, value)
			tv, ok := b.g.TryGetV(code)
			if !ok {
				var err error
				if tv, err = b.addV(tr.label, code, value); err != nil {
					return err
				}
			}
			if _, err := v.AddE(tr.edge, tv); err != nil {
				return err
			}
		}
	}

	if tt.TotalLifeSpan != nil {
		if err := v.AddP(model.PropTotalLifeSpan, *tt.TotalLifeSpan); err != nil {
			return err
		}
	}
	return nil
}

func (b *graphBuilder) relate(v *graph.Vertex, label graph.Label, code string) error {
	target, ok := b.g.TryGetV(code)
	if !ok {
		b.skip("trait target not in graph", "taxon", v.ID(), "code", code)
		return nil
	}
	_, err := v.AddE(label, target)
	return err
}
