package trees

import (
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// JolietMaxChars is the longest name the Joliet extension records.
const JolietMaxChars = 64

// JolietName returns the name a node gets under Joliet: the NFC form,
// truncated to JolietMaxChars characters. Files keep their extension.
func JolietName(name string, isFile bool) string {
	name = norm.NFC.String(name)
	if utf8.RuneCountInString(name) <= JolietMaxChars {
		return name
	}
	if isFile {
		ext := filepath.Ext(name)
		extLen := utf8.RuneCountInString(ext)
		if ext != "" && extLen < JolietMaxChars {
			return truncateRunes(strings.TrimSuffix(name, ext), JolietMaxChars-extLen) + ext
		}
	}
	return truncateRunes(name, JolietMaxChars)
}

// JolietCompatible reports whether name fits the Joliet limit.
func JolietCompatible(name string) bool {
	return utf8.RuneCountInString(norm.NFC.String(name)) <= JolietMaxChars
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

type jolietKey struct {
	parent *Node
	name   string
}

// jolietIndex groups Joliet-incompatible nodes by parent and truncated name.
// Nodes sharing a key collide once truncated.
type jolietIndex struct {
	entries map[jolietKey][]*Node
	keys    map[*Node]jolietKey
}

func newJolietIndex() *jolietIndex {
	return &jolietIndex{
		entries: make(map[jolietKey][]*Node),
		keys:    make(map[*Node]jolietKey),
	}
}

// add indexes n if its name is incompatible and returns the nodes it now
// collides with, n included, or nil.
func (j *jolietIndex) add(n *Node) []*Node {
	if n.parent == nil || n.IsRoot() || JolietCompatible(n.Name()) {
		return nil
	}
	if _, ok := j.keys[n]; ok {
		return nil
	}
	key := jolietKey{parent: n.parent, name: JolietName(n.Name(), !n.IsDir())}
	j.entries[key] = append(j.entries[key], n)
	j.keys[n] = key
	if list := j.entries[key]; len(list) > 1 {
		return slices.Clone(list)
	}
	return nil
}

func (j *jolietIndex) remove(n *Node) {
	key, ok := j.keys[n]
	if !ok {
		return
	}
	delete(j.keys, n)
	list := j.entries[key]
	if i := slices.Index(list, n); i >= 0 {
		list = slices.Delete(list, i, i+1)
	}
	if len(list) == 0 {
		delete(j.entries, key)
		return
	}
	j.entries[key] = list
}

func (j *jolietIndex) has(n *Node) bool {
	_, ok := j.keys[n]
	return ok
}

func (j *jolietIndex) addSubtree(n *Node) [][]*Node {
	var collisions [][]*Node
	n.walk(func(c *Node) bool {
		if list := j.add(c); list != nil {
			collisions = append(collisions, list)
		}
		return true
	})
	return collisions
}

func (j *jolietIndex) removeSubtree(n *Node) {
	n.walk(func(c *Node) bool {
		j.remove(c)
		return true
	})
}

func (j *jolietIndex) nodes() []*Node {
	out := make([]*Node, 0, len(j.keys))
	for n := range j.keys {
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, b *Node) int { return strings.Compare(a.Path(), b.Path()) })
	return out
}

func (j *jolietIndex) collisions() [][]*Node {
	var out [][]*Node
	for _, list := range j.entries {
		if len(list) > 1 {
			out = append(out, slices.Clone(list))
		}
	}
	slices.SortFunc(out, func(a, b []*Node) int { return strings.Compare(a[0].Path(), b[0].Path()) })
	return out
}

func (j *jolietIndex) len() int { return len(j.keys) }

func (j *jolietIndex) clear() {
	clear(j.entries)
	clear(j.keys)
}
