package search

import (
	"strings"

	"github.com/Benny93/ninmem-go/internal/model"
)

// TreeRef names a code.
type TreeRef struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// TreeChild is a child entry of a TreeNode.
type TreeChild struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	HasChildren bool   `json:"hasChildren"`
}

// TreeNode is one level of the code tree.
type TreeNode struct {
	Code     string      `json:"code"`
	Name     string      `json:"name"`
	Parent   *TreeRef    `json:"parent,omitempty"`
	Children []TreeChild `json:"children"`
}

// Tree returns code with its parent and immediate children. A blank code
// means the catalogue root.
func (s *CodeSearch) Tree(code string) (*TreeNode, error) {
	if isBlank(code) {
		code = model.RootCode
	}

	v, err := s.g.V(strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}

	node := &TreeNode{Code: v.ID(), Name: v.Name(), Children: []TreeChild{}}
	if parents := v.Out(model.Child); len(parents) > 0 {
		node.Parent = &TreeRef{Code: parents[0].ID(), Name: parents[0].Name()}
	}
	for _, child := range v.In(model.Child) {
		node.Children = append(node.Children, TreeChild{
			Code:        child.ID(),
			Name:        child.Name(),
			HasChildren: len(child.In(model.Child)) > 0,
		})
	}
	return node, nil
}
