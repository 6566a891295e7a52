package memory

// Handle addresses a record inside a Pool. The zero Handle is nil.
type Handle uint32

// Nil is the zero Handle.
const Nil Handle = 0

// Pool is a fixed-capacity slab allocator for records of type T.
// When every slot is taken it grows by one more slab instead of
// failing. It is not safe for concurrent use.
type Pool[T any] struct {
	slabs    [][]T
	slabSize int
	free     []Handle
	inUse    int
	grows    int
}

// NewPool creates a pool whose slabs hold slabSize records each.
// The first slab is allocated eagerly.
func NewPool[T any](slabSize int) *Pool[T] {
	if slabSize <= 0 {
		slabSize = 1
	}
	p := &Pool[T]{
		slabSize: slabSize,
		free:     make([]Handle, 0, slabSize),
	}
	p.addSlab()
	return p
}

// Acquire takes a zeroed slot from the free list.
func (p *Pool[T]) Acquire() (Handle, *T) {
	if len(p.free) == 0 {
		p.addSlab()
		p.grows++
	}
	h := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.inUse++
	return h, p.Get(h)
}

// Get resolves a handle. It returns nil for Nil.
func (p *Pool[T]) Get(h Handle) *T {
	if h == Nil {
		return nil
	}
	i := int(h - 1)
	return &p.slabs[i/p.slabSize][i%p.slabSize]
}

// Release zeroes the slot and returns it to the free list. The caller
// must already have unlinked the record from every container.
func (p *Pool[T]) Release(h Handle) {
	if h == Nil {
		return
	}
	var zero T
	*p.Get(h) = zero
	p.free = append(p.free, h)
	p.inUse--
}

// Len reports the number of acquired records.
func (p *Pool[T]) Len() int { return p.inUse }

// Cap reports the number of slots across all slabs.
func (p *Pool[T]) Cap() int { return len(p.slabs) * p.slabSize }

// Grows reports how many times the pool had to allocate a new slab
// after construction.
func (p *Pool[T]) Grows() int { return p.grows }

func (p *Pool[T]) addSlab() {
	base := len(p.slabs) * p.slabSize
	p.slabs = append(p.slabs, make([]T, p.slabSize))
	// Push in reverse so the lowest handle is handed out first.
	for i := p.slabSize; i > 0; i-- {
		p.free = append(p.free, Handle(base+i))
	}
}
