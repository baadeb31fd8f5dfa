package kvtree

// OID identifies an object within a container, mirroring the source's
// 128-bit object ID split into hi/lo halves (surfaced on the CLI as
// "HI.LO").
type OID struct {
	Hi uint64
	Lo uint64
}

// Less gives OID a total order for use as a Tree key.
func (a OID) Less(b OID) bool {
	if a.Hi != b.Hi {
		return a.Hi < b.Hi
	}
	return a.Lo < b.Lo
}

func lessOID(a, b OID) bool    { return a.Less(b) }
func lessString(a, b string) bool { return a < b }
func lessUint64(a, b uint64) bool { return a < b }

// ValueEntry is a single versioned leaf in the value tree: {epoch, cookie,
// payload_ref}, per the data model.
type ValueEntry struct {
	Epoch      uint64
	Cookie     uint64
	PayloadRef uint64
}

// AkeyNode is one akey's value tree plus its own punched-epoch watermark.
type AkeyNode struct {
	Values       *Tree[uint64, ValueEntry]
	PunchedEpoch uint64
}

// NewAkeyNode returns an empty akey node.
func NewAkeyNode() *AkeyNode {
	return &AkeyNode{Values: New[uint64, ValueEntry](lessUint64)}
}

// DkeyNode is one dkey's akey tree plus its punched-epoch watermark.
type DkeyNode struct {
	Akeys        *Tree[string, *AkeyNode]
	PunchedEpoch uint64
}

// NewDkeyNode returns an empty dkey node.
func NewDkeyNode() *DkeyNode {
	return &DkeyNode{Akeys: New[string, *AkeyNode](lessString)}
}

// ObjectNode is one object's dkey tree.
type ObjectNode struct {
	Dkeys *Tree[string, *DkeyNode]
}

// NewObjectNode returns an empty object node.
func NewObjectNode() *ObjectNode {
	return &ObjectNode{Dkeys: New[string, *DkeyNode](lessString)}
}

// Container is the top-level per-container state: the object tree plus the
// purge-relevant metadata (purged_epoch watermark and the cookie→max-epoch
// map consulted by discard's short-circuit).
type Container struct {
	Objects        *Tree[OID, *ObjectNode]
	PurgedEpoch    uint64
	CookieMaxEpoch map[uint64]uint64
}

// NewContainer returns an empty container.
func NewContainer() *Container {
	return &Container{
		Objects:        New[OID, *ObjectNode](lessOID),
		CookieMaxEpoch: make(map[uint64]uint64),
	}
}

// RecordCookieEpoch tracks the max epoch ever written under cookie, feeding
// discard's short-circuit check.
func (c *Container) RecordCookieEpoch(cookie, epoch uint64) {
	if cur, ok := c.CookieMaxEpoch[cookie]; !ok || epoch > cur {
		c.CookieMaxEpoch[cookie] = epoch
	}
}

// MaxEpochForCookie returns the highest epoch ever written under cookie.
func (c *Container) MaxEpochForCookie(cookie uint64) (uint64, bool) {
	e, ok := c.CookieMaxEpoch[cookie]
	return e, ok
}
