package search

import (
	"fmt"
	"maps"
	"strings"

	"github.com/Benny93/ninmem-go/internal/graph"
	"github.com/Benny93/ninmem-go/internal/model"
)

// CodeName is a code with its localized names and, when the code has one,
// its parent.
type CodeName struct {
	Code   string            `json:"code"`
	Names  map[string]string `json:"names"`
	Parent *CodeName         `json:"parent,omitempty"`
}

// FreeText returns up to limit codes matching query, best match first,
// with nature area type codes moved ahead of everything else.
func (s *CodeSearch) FreeText(query string, limit int) ([]CodeName, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: empty search string", ErrInvalidArgument)
	}
	if limit < 1 || limit > MaxLimit {
		return nil, fmt.Errorf("%w: limit %d outside 1..%d", ErrInvalidArgument, limit, MaxLimit)
	}

	codes := s.text.Search(query)
	if len(codes) == 0 {
		return []CodeName{}, nil
	}

	ordered := make([]string, 0, len(codes))
	var rest []string
	for _, code := range codes {
		if strings.HasPrefix(code, model.NatureAreaTypeCodePrefix) {
			ordered = append(ordered, code)
		} else {
			rest = append(rest, code)
		}
	}
	ordered = append(ordered, rest...)

	result := make([]CodeName, 0, min(limit, len(ordered)))
	for _, code := range ordered {
		if len(result) == limit {
			break
		}
		v, err := s.g.V(code)
		if err != nil {
			return nil, err
		}
		cn := codeName(v)
		if p := v.Parent(); p != nil {
			parent := codeName(p)
			cn.Parent = &parent
		}
		result = append(result, cn)
	}
	return result, nil
}

func codeName(v *graph.Vertex) CodeName {
	if v.Label() == model.Taxon {
		if names, err := graph.ValueOf[map[string]string](v, model.PropNames); err == nil {
			return CodeName{Code: v.ID(), Names: maps.Clone(names)}
		}
	}
	return CodeName{Code: v.ID(), Names: map[string]string{model.LangNorwegian: v.Name()}}
}
