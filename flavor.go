package tiercache

// Flavor describes how a Provider executes and whether it may fail.
// It is a set over two independent axes; composing operations unions them
// (promotion), so a pipeline ends up with the least strict flavor able to
// represent every step in it.
type Flavor uint8

const (
	// Async marks providers that may suspend (block on I/O, wait for a turn,
	// wait on another in-flight request). They honour ctx.
	Async Flavor = 1 << iota
	// Failable marks providers that may return an error.
	Failable
)

const (
	FlavorSync          Flavor = 0
	FlavorAsync                = Async
	FlavorThrowingSync         = Failable
	FlavorThrowingAsync        = Async | Failable
)

func (f Flavor) IsAsync() bool    { return f&Async != 0 }
func (f Flavor) IsFailable() bool { return f&Failable != 0 }

// Promote returns the least strict flavor that can represent both f and o.
func (f Flavor) Promote(o Flavor) Flavor { return f | o }

func (f Flavor) String() string {
	switch f {
	case FlavorSync:
		return "sync"
	case FlavorAsync:
		return "async"
	case FlavorThrowingSync:
		return "throwing-sync"
	case FlavorThrowingAsync:
		return "throwing-async"
	default:
		return "invalid"
	}
}
