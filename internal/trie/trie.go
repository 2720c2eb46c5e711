package trie

import (
	"cmp"
	"slices"
	"unicode/utf8"
)

// terminal marks the end of an indexed term. It can never occur inside a
// term because Terms drops it.
const terminal = '$'

// Posting is one indexed value together with the field its text came from.
type Posting[T comparable] struct {
	Value T
	Field string
}

type node[T comparable] struct {
	char     rune
	depth    int
	parent   *node[T]
	children map[rune]*node[T]
	order    []rune

	postings []Posting[T]
	posted   map[Posting[T]]struct{}
}

func newNode[T comparable](char rune, parent *node[T]) *node[T] {
	n := &node[T]{char: char, parent: parent, children: make(map[rune]*node[T])}
	if parent != nil {
		n.depth = parent.depth + 1
	}
	return n
}

func (n *node[T]) child(char rune) *node[T] {
	if c, ok := n.children[char]; ok {
		return c
	}
	c := newNode(char, n)
	n.children[char] = c
	n.order = append(n.order, char)
	return c
}

func (n *node[T]) post(p Posting[T]) {
	if n.posted == nil {
		n.posted = make(map[Posting[T]]struct{})
	}
	if _, ok := n.posted[p]; ok {
		return
	}
	n.posted[p] = struct{}{}
	n.postings = append(n.postings, p)
}

// collect returns the distinct postings stored in the subtree rooted at n.
// A non-nil filter keeps only postings whose value is in it.
func (n *node[T]) collect(filter map[T]struct{}) []Posting[T] {
	var result []Posting[T]
	seen := make(map[Posting[T]]struct{})

	stack := []*node[T]{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, p := range cur.postings {
			if filter != nil {
				if _, ok := filter[p.Value]; !ok {
					continue
				}
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			result = append(result, p)
		}

		for i := len(cur.order) - 1; i >= 0; i-- {
			stack = append(stack, cur.children[cur.order[i]])
		}
	}

	return result
}

// Trie maps normalized terms to values. It is not safe for concurrent
// writes; a fully built Trie may be searched from many goroutines.
type Trie[T comparable] struct {
	root    *node[T]
	lengths map[Posting[T]]int
}

// New creates an empty trie.
func New[T comparable]() *Trie[T] {
	return &Trie[T]{
		root:    newNode[T](0, nil),
		lengths: make(map[Posting[T]]int),
	}
}

// Len returns the number of distinct (value, field) pairs indexed.
func (t *Trie[T]) Len() int { return len(t.lengths) }

// Insert indexes text under value and field. The summed length of the
// text's terms is added to the pair's total, which Search uses to weight
// matches.
func (t *Trie[T]) Insert(text string, value T, field string) {
	p := Posting[T]{Value: value, Field: field}

	for _, term := range Terms(text, false) {
		t.lengths[p] += utf8.RuneCountInString(term)
	}

	for _, term := range Terms(text, true) {
		n := t.root
		for _, r := range term {
			n = n.child(r)
		}
		n.child(terminal).post(p)
	}
}

// InsertAll indexes each text under value and field.
func (t *Trie[T]) InsertAll(texts []string, value T, field string) {
	for _, text := range texts {
		t.Insert(text, value, field)
	}
}

// Search returns the values matching every term of query, best match
// first. Each term narrows the values found by the previous one; a term
// that reaches no node ends the search with no result.
func (t *Trie[T]) Search(query string) []T {
	terms := Terms(query, false)
	if len(terms) == 0 {
		return nil
	}

	var survivors map[T]struct{}
	matches := make([][]Posting[T], len(terms))

	for i, term := range terms {
		n := t.find(term)
		if n == nil {
			return nil
		}

		postings := n.collect(survivors)
		if len(postings) == 0 {
			return nil
		}
		matches[i] = postings

		survivors = make(map[T]struct{}, len(postings))
		for _, p := range postings {
			survivors[p.Value] = struct{}{}
		}
	}

	weights := make(map[T]float64, len(survivors))
	var ranked []T

	for i, term := range terms {
		termLength := float64(utf8.RuneCountInString(term))

		for _, p := range matches[i] {
			if _, ok := survivors[p.Value]; !ok {
				continue
			}
			if _, ok := weights[p.Value]; !ok {
				weights[p.Value] = 0
				ranked = append(ranked, p.Value)
			}
			if total := t.lengths[p]; total > 0 {
				weights[p.Value] += termLength / float64(total)
			}
		}
	}

	slices.SortStableFunc(ranked, func(a, b T) int {
		return cmp.Compare(weights[b], weights[a])
	})

	return ranked
}

// IsInIndex reports whether every term of s was indexed as a whole term
// or suffix, as opposed to only being a prefix of one. It is false when s
// has no terms.
func (t *Trie[T]) IsInIndex(s string) bool {
	terms := Terms(s, false)
	if len(terms) == 0 {
		return false
	}

	for _, term := range terms {
		n := t.find(term)
		if n == nil || n.depth != utf8.RuneCountInString(term) {
			return false
		}
		if _, ok := n.children[terminal]; !ok {
			return false
		}
	}

	return true
}

func (t *Trie[T]) find(term string) *node[T] {
	n := t.root
	for _, r := range term {
		next, ok := n.children[r]
		if !ok {
			return nil
		}
		n = next
	}
	return n
}
