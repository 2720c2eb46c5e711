package search

import (
	"strings"

	"github.com/Benny93/ninmem-go/internal/graph"
	"github.com/Benny93/ninmem-go/internal/model"
)

// CodeGroup is a family of query codes sharing a prefix. Codes within a
// group are alternatives; separate groups must all match.
type CodeGroup struct {
	Prefix string
	Codes  []string
}

// GroupCodes splits a comma separated code list into groups keyed by the
// text before the first '_' or '-' of each code, in order of first
// appearance. Codes are lowercased and deduplicated; blank entries are
// dropped.
func GroupCodes(codes string) []CodeGroup {
	var groups []CodeGroup
	index := map[string]int{}
	seen := map[string]struct{}{}

	for part := range strings.SplitSeq(codes, ",") {
		code := strings.ToLower(strings.TrimSpace(part))
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}

		prefix := GroupPrefix(code)
		i, ok := index[prefix]
		if !ok {
			i = len(groups)
			index[prefix] = i
			groups = append(groups, CodeGroup{Prefix: prefix})
		}
		groups[i].Codes = append(groups[i].Codes, code)
	}
	return groups
}

// GroupPrefix returns the group a code belongs to: "ao_03-01" and "ao_18"
// share "ao", "na-t4" belongs to "na". A code without separator is its own
// group.
func GroupPrefix(code string) string {
	if i := strings.IndexAny(code, "_-"); i >= 0 {
		return code[:i]
	}
	return code
}

// NatureAreaTaxonSet holds the nature areas and taxa reachable from a
// code.
type NatureAreaTaxonSet struct {
	NatureAreas map[string]struct{}
	Taxa        map[string]struct{}
}

// All returns the union of nature areas and taxa.
func (s NatureAreaTaxonSet) All() map[string]struct{} {
	all := make(map[string]struct{}, len(s.NatureAreas)+len(s.Taxa))
	for code := range s.NatureAreas {
		all[code] = struct{}{}
	}
	for code := range s.Taxa {
		all[code] = struct{}{}
	}
	return all
}

func (s NatureAreaTaxonSet) add(v *graph.Vertex) {
	switch v.Label() {
	case model.Taxon:
		s.Taxa[v.ID()] = struct{}{}
	case model.NatureArea:
		s.NatureAreas[v.ID()] = struct{}{}
		s.addIDs(v.OutIDs(model.In, model.Taxon))
	case model.AdministrativeArea:
		if strings.Contains(v.ID(), "-") {
			s.addIDs(v.OutIDs(model.In, model.Taxon))
		}
	case model.ConservationArea:
		s.addIDs(v.OutIDs(model.In, model.Taxon))
	}
}

func (s NatureAreaTaxonSet) addIDs(ids graph.IDSet) {
	for id := range ids.All() {
		s.Taxa[id] = struct{}{}
	}
}

// NatureAreaTaxonCodes walks the subtree of code and collects every nature
// area and taxon it reaches, directly or through a containing vertex.
func (s *CodeSearch) NatureAreaTaxonCodes(code string) (NatureAreaTaxonSet, error) {
	set := NatureAreaTaxonSet{NatureAreas: map[string]struct{}{}, Taxa: map[string]struct{}{}}

	start, err := s.g.V(code)
	if err != nil {
		return set, err
	}

	pushed := map[string]struct{}{start.ID(): {}}
	members := map[string]struct{}{}
	stack := []*graph.Vertex{start}

	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		set.add(v)

		for _, member := range v.Out(model.In) {
			if _, ok := members[member.ID()]; ok {
				continue
			}
			members[member.ID()] = struct{}{}
			set.add(member)
		}

		// A member may also be a child; collecting it does not stop the descent.
		for _, child := range v.In(model.Child) {
			if _, ok := pushed[child.ID()]; ok {
				continue
			}
			pushed[child.ID()] = struct{}{}
			stack = append(stack, child)
		}
	}
	return set, nil
}

// SearchByCodes returns the nature areas and taxa matching every group of
// codes, each group matching when any of its codes does. An empty code
// list yields an empty set.
func (s *CodeSearch) SearchByCodes(codes string) (map[string]struct{}, error) {
	return s.searchGroups(GroupCodes(codes))
}

func (s *CodeSearch) searchGroups(groups []CodeGroup) (map[string]struct{}, error) {
	var result map[string]struct{}

	for _, group := range groups {
		union := map[string]struct{}{}
		for _, code := range group.Codes {
			set, err := s.NatureAreaTaxonCodes(code)
			if err != nil {
				return nil, err
			}
			for id := range set.All() {
				union[id] = struct{}{}
			}
		}

		if result == nil {
			result = union
			continue
		}
		for id := range result {
			if _, ok := union[id]; !ok {
				delete(result, id)
			}
		}
	}

	if result == nil {
		result = map[string]struct{}{}
	}
	return result, nil
}

// NatureAreaTaxonCodesByCodesAndBBox combines a bounding box filter and a
// grouped code filter. When both produce hits the result is their
// intersection, otherwise whichever one has hits wins. Codes are validated
// before any work is done.
func (s *CodeSearch) NatureAreaTaxonCodesByCodesAndBBox(codes, bbox string) ([]string, error) {
	groups := GroupCodes(codes)
	for _, group := range groups {
		for _, code := range group.Codes {
			if _, err := s.g.V(code); err != nil {
				return nil, err
			}
		}
	}

	result, err := s.bboxSet(bbox)
	if err != nil {
		return nil, err
	}

	byCodes, err := s.searchGroups(groups)
	if err != nil {
		return nil, err
	}

	switch {
	case len(result) == 0:
		result = byCodes
	case len(byCodes) > 0:
		for id := range result {
			if _, ok := byCodes[id]; !ok {
				delete(result, id)
			}
		}
	}
	return sortedKeys(result), nil
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }
