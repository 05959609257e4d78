// Package trie provides the player-name prefix index. Nodes live in a single
// arena slice and refer to their children by index, so a trie is released as
// a whole when it is no longer referenced.
package trie

import (
	"errors"
	"fmt"
)

// AlphabetSize is the number of child slots per node: the 26 letters
// followed by the punctuation that appears in player names.
const AlphabetSize = 26 + 5

// ErrUnsupportedCharacter is returned for names or prefixes containing a
// character outside the alphabet. Such input is a precondition violation
// and is never silently mapped to another slot.
var ErrUnsupportedCharacter = errors.New("unsupported character")

type node struct {
	children [AlphabetSize]int32
	ids      []uint32
}

// Trie maps names to player IDs. The zero value is not usable; call New.
type Trie struct {
	nodes []node
	ids   int
}

func New() *Trie {
	return &Trie{nodes: make([]node, 1)}
}

// slot maps a character to its child index. Lower-case letters share the
// upper-case slots.
func slot(c byte) (int, bool) {
	switch {
	case c >= 'A' && c <= 'Z':
		return int(c - 'A'), true
	case c >= 'a' && c <= 'z':
		return int(c - 'a'), true
	}
	switch c {
	case '"':
		return AlphabetSize - 5, true
	case '\'':
		return AlphabetSize - 4, true
	case '-':
		return AlphabetSize - 3, true
	case ' ':
		return AlphabetSize - 2, true
	case '.':
		return AlphabetSize - 1, true
	}
	return 0, false
}

// Supported reports whether every character of s is in the alphabet.
func Supported(s string) bool {
	return checkAlphabet(s) == nil
}

func checkAlphabet(s string) error {
	for i := 0; i < len(s); i++ {
		if _, ok := slot(s[i]); !ok {
			r := []rune(s[i:])[0]
			return fmt.Errorf("%w %q at offset %d", ErrUnsupportedCharacter, r, i)
		}
	}
	return nil
}

// Insert records id under name. The same name may carry many IDs, and the
// same ID inserted twice is kept twice. A name with an unsupported
// character leaves the trie unchanged.
func (t *Trie) Insert(name string, id uint32) error {
	if err := checkAlphabet(name); err != nil {
		return fmt.Errorf("inserting %q: %w", name, err)
	}
	cur := int32(0)
	for i := 0; i < len(name); i++ {
		s, _ := slot(name[i])
		next := t.nodes[cur].children[s]
		if next == 0 {
			t.nodes = append(t.nodes, node{})
			next = int32(len(t.nodes) - 1)
			t.nodes[cur].children[s] = next
		}
		cur = next
	}
	t.nodes[cur].ids = append(t.nodes[cur].ids, id)
	t.ids++
	return nil
}

// Search returns the IDs of every name starting with prefix, in pre-order:
// a node's own IDs first, then its children in alphabet order. An unknown
// prefix yields an empty slice; the empty prefix yields every ID.
func (t *Trie) Search(prefix string) ([]uint32, error) {
	if err := checkAlphabet(prefix); err != nil {
		return nil, fmt.Errorf("searching %q: %w", prefix, err)
	}
	cur := int32(0)
	for i := 0; i < len(prefix); i++ {
		s, _ := slot(prefix[i])
		cur = t.nodes[cur].children[s]
		if cur == 0 {
			return []uint32{}, nil
		}
	}
	return t.gather(cur, make([]uint32, 0)), nil
}

// gather walks the subtree rooted at start with an explicit stack so very
// long names cannot exhaust the goroutine stack.
func (t *Trie) gather(start int32, out []uint32) []uint32 {
	stack := []int32{start}
	for len(stack) > 0 {
		n := &t.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]
		out = append(out, n.ids...)
		for s := AlphabetSize - 1; s >= 0; s-- {
			if c := n.children[s]; c != 0 {
				stack = append(stack, c)
			}
		}
	}
	return out
}

// Len returns the number of stored IDs, counting duplicates.
func (t *Trie) Len() int {
	return t.ids
}

// Nodes returns the arena size including the root.
func (t *Trie) Nodes() int {
	return len(t.nodes)
}
