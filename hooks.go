package tiercache

// Hooks are lightweight callbacks for high-signal tier events.
// Implementations MUST be cheap and non-blocking; tiers call them on hot paths.
// tier is the Name configured on the tier ("" if unnamed).
type Hooks interface {
	// Storage.Get failed; the tier treated the read as a miss.
	StorageReadFailed(tier string, err error)

	// A value fetched from next could not be converted or stored.
	// The value was still returned to the caller.
	WriteBackFailed(tier string, err error)

	// The key was invalidated while next was being consulted, so the
	// fetched value was returned but not written back.
	WriteBackSkipped(tier string)

	// Removing the key from this tier's storage failed during Invalidate.
	InvalidateFailed(tier string, err error)

	// A Fetch joined a request already in flight for the same key.
	Coalesced(tier string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) StorageReadFailed(string, error) {}
func (NopHooks) WriteBackFailed(string, error)   {}
func (NopHooks) WriteBackSkipped(string)         {}
func (NopHooks) InvalidateFailed(string, error)  {}
func (NopHooks) Coalesced(string)                {}
