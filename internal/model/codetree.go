package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoRoot is returned when a code list has no entry with an empty code.
var ErrNoRoot = errors.New("code tree has no root")

// CodeTreeNode is one code of the published code hierarchy. A code may have
// several parents, so the hierarchy is a DAG rooted at RootCode.
type CodeTreeNode struct {
	Code     string
	Names    map[string]string
	Parents  []*CodeTreeNode
	Children []*CodeTreeNode
}

// Name returns the Norwegian bokmål name, falling back to Latin.
func (n *CodeTreeNode) Name() string {
	if name, ok := n.Names[LangNorwegian]; ok {
		return name
	}
	return n.Names[LangLatin]
}

// Descendants returns every node below n once, in depth-first pre-order.
func (n *CodeTreeNode) Descendants() []*CodeTreeNode {
	var out []*CodeTreeNode
	seen := map[string]bool{n.Code: true}
	stack := []*CodeTreeNode{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur != n {
			out = append(out, cur)
		}
		for i := len(cur.Children) - 1; i >= 0; i-- {
			c := cur.Children[i]
			if seen[c.Code] {
				continue
			}
			seen[c.Code] = true
			stack = append(stack, c)
		}
	}
	return out
}

// DescendantSet returns the descendants of n keyed by code.
func (n *CodeTreeNode) DescendantSet() map[string]*CodeTreeNode {
	ds := n.Descendants()
	out := make(map[string]*CodeTreeNode, len(ds))
	for _, d := range ds {
		out[d.Code] = d
	}
	return out
}

// Find returns the node with the given code below or at n.
func (n *CodeTreeNode) Find(code string) (*CodeTreeNode, bool) {
	code = strings.ToLower(code)
	if n.Code == code {
		return n, true
	}
	for _, d := range n.Descendants() {
		if d.Code == code {
			return d, true
		}
	}
	return nil, false
}

func (n *CodeTreeNode) hasParent(code string) bool {
	for _, p := range n.Parents {
		if p.Code == code {
			return true
		}
	}
	return false
}

type flatCode struct {
	Kode     string            `json:"kode"`
	Tittel   map[string]string `json:"tittel"`
	Forelder string            `json:"forelder"`
}

type codeList struct {
	Data []flatCode `json:"data"`
}

// DecodeCodeTree folds the flat code list document into a CodeTreeNode DAG
// and returns its root. Codes whose parent is not in the list are kept
// detached and reported in orphans.
func DecodeCodeTree(data []byte) (root *CodeTreeNode, orphans []string, err error) {
	var list codeList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, nil, fmt.Errorf("decode code list: %w", err)
	}

	nodes := make(map[string]*CodeTreeNode, len(list.Data))
	for _, fc := range list.Data {
		code := strings.ToLower(strings.TrimSpace(fc.Kode))
		if code == "" {
			code = RootCode
		}
		if _, ok := nodes[code]; ok {
			continue
		}
		names := make(map[string]string, len(fc.Tittel))
		for lang, name := range fc.Tittel {
			names[lang] = name
		}
		nodes[code] = &CodeTreeNode{Code: code, Names: names}
	}

	for _, fc := range list.Data {
		parentCode := strings.ToLower(strings.TrimSpace(fc.Forelder))
		if parentCode == "" {
			continue
		}
		code := strings.ToLower(strings.TrimSpace(fc.Kode))
		if code == "" {
			code = RootCode
		}
		node := nodes[code]
		parent, ok := nodes[parentCode]
		if !ok {
			orphans = append(orphans, code)
			continue
		}
		if node.hasParent(parent.Code) {
			continue
		}
		node.Parents = append(node.Parents, parent)
		parent.Children = append(parent.Children, node)
	}

	root, ok := nodes[RootCode]
	if !ok {
		return nil, orphans, ErrNoRoot
	}
	return root, orphans, nil
}
