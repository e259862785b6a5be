package filter

import "sort"

// Navigator walks a result list: cursor movement and wrap-around search for
// the next or previous match.
type Navigator struct {
	ids    []uint64
	cursor int
}

func NewNavigator(ids []uint64) *Navigator {
	return &Navigator{ids: ids}
}

func (n *Navigator) Len() int { return len(n.ids) }

// Current returns the id under the cursor.
func (n *Navigator) Current() (uint64, bool) {
	if len(n.ids) == 0 {
		return 0, false
	}
	return n.ids[n.cursor], true
}

func (n *Navigator) Position() int { return n.cursor }

// SetPosition moves the cursor, clamped to the list.
func (n *Navigator) SetPosition(pos int) {
	switch {
	case len(n.ids) == 0 || pos < 0:
		n.cursor = 0
	case pos >= len(n.ids):
		n.cursor = len(n.ids) - 1
	default:
		n.cursor = pos
	}
}

// Replace swaps in a new result list and keeps the cursor on the same id,
// or on the first id after it, when possible.
func (n *Navigator) Replace(ids []uint64) {
	cur, ok := n.Current()
	n.ids = ids
	n.cursor = 0
	if ok {
		n.JumpTo(cur)
	}
}

// JumpTo places the cursor on id or the first id after it.
func (n *Navigator) JumpTo(id uint64) bool {
	i := sort.Search(len(n.ids), func(i int) bool { return n.ids[i] >= id })
	if i == len(n.ids) {
		return false
	}
	n.cursor = i
	return n.ids[i] == id
}

// Next moves to the next id after the cursor satisfying match, wrapping.
func (n *Navigator) Next(match func(uint64) bool) (uint64, bool) {
	for i := 1; i <= len(n.ids); i++ {
		idx := (n.cursor + i) % len(n.ids)
		if match(n.ids[idx]) {
			n.cursor = idx
			return n.ids[idx], true
		}
	}
	return 0, false
}

// Prev moves to the previous id before the cursor satisfying match, wrapping.
func (n *Navigator) Prev(match func(uint64) bool) (uint64, bool) {
	for i := 1; i <= len(n.ids); i++ {
		idx := ((n.cursor-i)%len(n.ids) + len(n.ids)) % len(n.ids)
		if match(n.ids[idx]) {
			n.cursor = idx
			return n.ids[idx], true
		}
	}
	return 0, false
}
