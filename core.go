package rtkernel

// Core is a bump allocator over a single arena. Memory handed out by a core
// is never returned to it, it is meant to feed pools through Provider.
type Core struct {
	sys   *System
	arena []byte
	next  int
}

// NewCore creates a core allocator owning size bytes
func NewCore(s *System, size int) *Core {
	return &Core{
		sys:   s,
		arena: make([]byte, size),
	}
}

func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

// AllocI returns size bytes, nil if the arena cannot satisfy the request.
// Blocks are pointer aligned inside the arena.
func (c *Core) AllocI(size int) []byte {
	c.sys.checkClassI("Core.AllocI")

	if size <= 0 {
		return nil
	}

	if size > len(c.arena)-c.next {
		c.sys.logger.Debug().Int("size", size).Int("free", len(c.arena)-c.next).Msg("core exhausted")
		return nil
	}

	end := c.next + alignUp(size, PointerSize)
	if end > len(c.arena) {
		end = len(c.arena)
	}

	b := c.arena[c.next : c.next+size : end]
	c.next = end
	return b
}

// Alloc returns size bytes, nil if the arena is exhausted
func (c *Core) Alloc(size int) []byte {
	c.sys.Lock()
	b := c.AllocI(size)
	c.sys.Unlock()

	return b
}

// Status returns the number of bytes still available
func (c *Core) Status() int {
	c.sys.Lock()
	n := len(c.arena) - c.next
	c.sys.Unlock()

	return n
}

// Provider adapts the core to a pool provider
func (c *Core) Provider() Provider {
	return c.AllocI
}
