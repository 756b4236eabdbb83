package draft

// Move takes the entry keyed fromKey out of the list and reinserts it at the index toKey
// occupied before the move. Missing keys, or fromKey == toKey, return an unmodified copy
// (a drop outside the list is not an error).
func Move(items []Item, fromKey, toKey string) []Item {
	from := IndexOf(items, fromKey)
	to := IndexOf(items, toKey)
	if from < 0 || to < 0 || from == to {
		return clone(items)
	}

	moved := items[from]
	rest := make([]Item, 0, len(items))
	rest = append(rest, items[:from]...)
	rest = append(rest, items[from+1:]...)

	out := make([]Item, 0, len(items))
	out = append(out, rest[:to]...)
	out = append(out, moved)
	out = append(out, rest[to:]...)
	return Normalize(out)
}

// MoveBy moves key delta positions (negative is up). Moves past either end are no-ops.
func MoveBy(items []Item, key string, delta int) []Item {
	from := IndexOf(items, key)
	if from < 0 || delta == 0 {
		return clone(items)
	}
	to := from + delta
	if to < 0 || to >= len(items) {
		return clone(items)
	}
	return Move(items, key, items[to].LocalKey)
}

func clone(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}
