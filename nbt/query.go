package nbt

import (
	"strconv"
	"strings"
)

// FindChildTag returns the first direct child of the compound t that satisfies pred. Tags that are not compounds
// have no children.
func FindChildTag(t Tag, pred func(Tag) bool) (Tag, bool) {
	children, ok := t.Compound()
	if !ok {
		return Tag{}, false
	}
	for _, c := range children {
		if pred(c) {
			return c, true
		}
	}
	return Tag{}, false
}

// FindChildTagAtPath resolves a slash separated path below t. A segment is either the name of a compound child or
// a list index written as [i], for example "Level/Sections/[2]". Nothing is returned if any segment does not
// resolve.
func FindChildTagAtPath(path string, t Tag) (Tag, bool) {
	cur := t
	for _, seg := range strings.Split(path, "/") {
		if i, ok := listIndex(seg); ok {
			l, isList := cur.List()
			if !isList || i >= len(l.Entries) {
				return Tag{}, false
			}
			cur = l.Entries[i]
			continue
		}
		next, ok := cur.Child(seg)
		if !ok {
			return Tag{}, false
		}
		cur = next
	}
	return cur, true
}

func listIndex(seg string) (int, bool) {
	if len(seg) < 3 || seg[0] != '[' || seg[len(seg)-1] != ']' {
		return 0, false
	}
	i, err := strconv.Atoi(seg[1 : len(seg)-1])
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

// FindCompoundListChildren applies pred to the children of every entry of a list of compounds. The result holds one
// slot per entry in list order; found reports which slots matched. ok is false if t is not a list of compounds.
func FindCompoundListChildren(t Tag, pred func(Tag) bool) (matches []Tag, found []bool, ok bool) {
	l, isList := t.List()
	if !isList || l.SubType != TypeCompound {
		return nil, nil, false
	}
	matches = make([]Tag, len(l.Entries))
	found = make([]bool, len(l.Entries))
	for i, entry := range l.Entries {
		matches[i], found[i] = FindChildTag(entry, pred)
	}
	return matches, found, true
}
