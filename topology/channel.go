package topology

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"time"

	"go4.org/netipx"
)

// Channel is a shared link segment connecting two or more interfaces. It owns
// the address block its members derive their addresses from, and accumulates
// reachability records during route distribution.
type Channel struct {
	id      string
	network netip.Prefix
	delay   time.Duration

	// interfaces in registration order; an interface's position here is its
	// ordinal, which fixes its address within the block.
	interfaces []*Interface

	records []routeRecord
}

func newChannel(id string, network netip.Prefix, delay time.Duration) *Channel {
	return &Channel{id: id, network: network.Masked(), delay: delay}
}

func (c *Channel) ID() string {
	return c.id
}

// Network returns the address block allocated to the channel.
func (c *Channel) Network() netip.Prefix {
	return c.network
}

// Delay returns the channel's propagation delay; zero means none.
func (c *Channel) Delay() time.Duration {
	return c.delay
}

// Interfaces returns the member interfaces in ordinal order.
func (c *Channel) Interfaces() []*Interface {
	return c.interfaces
}

// register appends itf as the channel's next member, assigning its ordinal.
// Fails when the member's derived address would not be a usable host address
// of the block.
func (c *Channel) register(itf *Interface) error {
	ordinal := len(c.interfaces)
	addr := addrAtOffset(c.network.Addr(), ordinal+1)
	last := netipx.PrefixLastIP(c.network)
	if !addr.Less(last) {
		return fmt.Errorf("channel %s (%s) cannot hold a %d-th member: %w",
			c.id, c.network, ordinal+1, ErrAddressSpaceExhausted)
	}
	itf.ordinal = ordinal
	c.interfaces = append(c.interfaces, itf)
	return nil
}

// Interface is a node's attachment point to one channel. Its address is a
// pure function of the channel block and its member ordinal; nothing else is
// stored.
type Interface struct {
	node    *Node
	channel *Channel
	id      string
	ordinal int
}

// ID returns the per-node interface identifier.
func (i *Interface) ID() string {
	return i.id
}

func (i *Interface) Node() *Node {
	return i.node
}

func (i *Interface) Channel() *Channel {
	return i.channel
}

// Ordinal returns the interface's position among the channel's members.
func (i *Interface) Ordinal() int {
	return i.ordinal
}

// Addr returns the interface address: the channel block's base plus
// ordinal+1, skipping the reserved network address.
func (i *Interface) Addr() netip.Addr {
	return addrAtOffset(i.channel.network.Addr(), i.ordinal+1)
}

// Prefix returns the interface address in with-prefix form, carrying the
// channel block's length.
func (i *Interface) Prefix() netip.Prefix {
	return netip.PrefixFrom(i.Addr(), i.channel.network.Bits())
}

func addrAtOffset(base netip.Addr, offset int) netip.Addr {
	b := base.As4()
	binary.BigEndian.PutUint32(b[:], binary.BigEndian.Uint32(b[:])+uint32(offset))
	return netip.AddrFrom4(b)
}
