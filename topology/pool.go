package topology

import (
	"fmt"
	"net/netip"

	"go4.org/netipx"
)

// Pool hands out successive, non-overlapping sub-blocks of a fixed prefix
// length carved from one parent block. Allocation is forward-only; blocks are
// never reclaimed.
type Pool struct {
	parent    netip.Prefix
	subLen    int
	next      netip.Addr
	remaining int
}

// NewPool partitions parent into sub-blocks of subLen bits. The parent must
// be an IPv4 prefix and subLen must be between the parent's own length and 32.
func NewPool(parent netip.Prefix, subLen int) (*Pool, error) {
	if !parent.IsValid() || !parent.Addr().Is4() {
		return nil, fmt.Errorf("parent block %s is not a valid IPv4 prefix", parent)
	}
	if subLen < parent.Bits() || subLen > 32 {
		return nil, fmt.Errorf("sub-prefix length /%d does not fit parent block %s", subLen, parent)
	}
	parent = parent.Masked()
	return &Pool{
		parent:    parent,
		subLen:    subLen,
		next:      parent.Addr(),
		remaining: 1 << (subLen - parent.Bits()),
	}, nil
}

// Allocate returns the next unissued sub-block in ascending address order.
func (p *Pool) Allocate() (netip.Prefix, error) {
	if p.remaining == 0 {
		return netip.Prefix{}, fmt.Errorf("no /%d blocks left in %s: %w", p.subLen, p.parent, ErrPoolExhausted)
	}
	block := netip.PrefixFrom(p.next, p.subLen)
	p.next = netipx.PrefixLastIP(block).Next()
	p.remaining--
	return block, nil
}

// Remaining reports how many sub-blocks are still unissued.
func (p *Pool) Remaining() int {
	return p.remaining
}

// Parent returns the block the pool was carved from.
func (p *Pool) Parent() netip.Prefix {
	return p.parent
}
