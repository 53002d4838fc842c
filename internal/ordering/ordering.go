// Package ordering holds the position rules shared by the server, which
// persists them, and the client, which replays them optimistically.
//
// Sibling lists (cards of a column, columns of a board) are ordered slices
// whose index is the persisted position. After every structural change the
// whole list is renumbered 0..n-1.
package ordering

// Clamp bounds at to [0, n].
func Clamp(at, n int) int {
	if at < 0 {
		return 0
	}
	if at > n {
		return n
	}
	return at
}

// IndexOf returns the index of v in items, or -1.
func IndexOf[T comparable](items []T, v T) int {
	for i, item := range items {
		if item == v {
			return i
		}
	}
	return -1
}

// Insert returns a new slice with item placed at index at, clamped to the
// current length. Used for cross-list moves and creates: no adjustment.
func Insert[T any](items []T, item T, at int) []T {
	at = Clamp(at, len(items))
	out := make([]T, 0, len(items)+1)
	out = append(out, items[:at]...)
	out = append(out, item)
	return append(out, items[at:]...)
}

// Remove returns a new slice without the element at index at. Out of range
// indexes return a copy of items.
func Remove[T any](items []T, at int) []T {
	out := make([]T, 0, len(items))
	for i, item := range items {
		if i != at {
			out = append(out, item)
		}
	}
	return out
}

// Move relocates the element at from within the same list. to names the
// sibling slot the element is dropped onto, counted in the list as it is
// before the move.
//
// Moving downward the element lands after the sibling at to, so the insertion
// point in the original list is to+1. Removing the element first shifts every
// later slot up by one: when from < slot the slot is decremented before
// reinsertion. The element therefore ends at index to, e.g. moving A from 0
// to 2 in [A B C D] yields [B C A D].
func Move[T any](items []T, from, to int) []T {
	if from < 0 || from >= len(items) {
		out := make([]T, len(items))
		copy(out, items)
		return out
	}
	to = Clamp(to, len(items)-1)

	slot := to
	if from < to {
		slot = to + 1
	}
	if from < slot {
		slot--
	}

	item := items[from]
	return Insert(Remove(items, from), item, slot)
}
