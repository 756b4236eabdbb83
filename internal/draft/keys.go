package draft

import (
	"strconv"

	"github.com/google/uuid"
)

// KeyGen hands out local keys. Keys are never derived from rank and never reused.
type KeyGen interface {
	NewKey() string
}

// CounterKeys yields prefix1, prefix2, ... Not safe for concurrent use; a draft has one owner.
type CounterKeys struct {
	Prefix string
	next   int
}

func (c *CounterKeys) NewKey() string {
	c.next++
	p := c.Prefix
	if p == "" {
		p = "k"
	}
	return p + strconv.Itoa(c.next)
}

// UUIDKeys yields random v4 UUIDs.
type UUIDKeys struct{}

func (UUIDKeys) NewKey() string { return uuid.NewString() }
