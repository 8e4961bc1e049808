package topology

import "errors"

var (
	// ErrPoolExhausted is returned when an allocation is requested from a
	// pool with no remaining sub-blocks.
	ErrPoolExhausted = errors.New("address pool exhausted")

	// ErrAddressSpaceExhausted is returned when attaching an interface would
	// place its address past the channel block's last usable host address.
	ErrAddressSpaceExhausted = errors.New("channel address space exhausted")

	// ErrDistributionNotRun is returned by route and dump queries made
	// before DistributeRoutes has been called.
	ErrDistributionNotRun = errors.New("routes have not been distributed")

	// ErrTopologyFrozen is returned when the graph is mutated after route
	// distribution.
	ErrTopologyFrozen = errors.New("topology is frozen after route distribution")
)
