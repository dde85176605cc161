package crdt

import (
	"sync"

	"github.com/google/uuid"
)

// Ordering описывает результат причинного сравнения двух векторных часов.
type Ordering int

const (
	// Less means this clock causally precedes the other
	Less Ordering = iota
	// Greater means this clock causally follows the other
	Greater
	// Concurrent means neither clock dominates the other
	// (including the case of two identical clocks)
	Concurrent
)

// String returns a human-readable name for the ordering
func (o Ordering) String() string {
	switch o {
	case Less:
		return "less"
	case Greater:
		return "greater"
	default:
		return "concurrent"
	}
}

// Pair представляет одну запись (узел, счетчик) в сериализованных часах.
// Часы всегда сериализуются как отсортированный по узлам список пар,
// чтобы логически равные часы сериализовались идентично.
type Pair struct {
	Node    string `json:"node"`
	Counter uint64 `json:"counter"`
}

// VectorClock представляет векторные часы: отображение идентификатора узла
// в монотонно возрастающий счетчик. Счетчики только растут, и узел
// увеличивает только собственный счетчик.
type VectorClock map[string]uint64

// New creates an empty vector clock
func New() VectorClock {
	return make(VectorClock)
}

// FromPairs rebuilds a clock from its serialized pair form
func FromPairs(pairs []Pair) VectorClock {
	vc := make(VectorClock, len(pairs))
	for _, p := range pairs {
		vc[p.Node] = p.Counter
	}
	return vc
}

// Bump increments the counter for the given node, defaulting missing
// entries to zero. Used when the local node produces a new event.
func (vc VectorClock) Bump(node string) {
	vc[node]++
}

// Merge returns a new clock whose counter for each node is the maximum
// of the two inputs. Neither input is modified.
func (vc VectorClock) Merge(other VectorClock) VectorClock {
	merged := make(VectorClock, len(vc)+len(other))
	for node, counter := range vc {
		merged[node] = counter
	}
	for node, counter := range other {
		if counter > merged[node] {
			merged[node] = counter
		}
	}
	return merged
}

// Compare computes the classic vector clock partial order over the union
// of both node sets:
//   - Greater if this clock has some counter strictly above other's and
//     other has none above this
//   - Less in the symmetric case
//   - Concurrent otherwise, including identical clocks
func (vc VectorClock) Compare(other VectorClock) Ordering {
	thisDominates := false
	otherDominates := false

	// Проходим по объединению множеств узлов
	for node, counter := range vc {
		if counter > other[node] {
			thisDominates = true
		}
	}
	for node, counter := range other {
		if counter > vc[node] {
			otherDominates = true
		}
	}

	switch {
	case thisDominates && !otherDominates:
		return Greater
	case otherDominates && !thisDominates:
		return Less
	default:
		return Concurrent
	}
}

// Dominates reports whether this clock strictly follows the other
func (vc VectorClock) Dominates(other VectorClock) bool {
	return vc.Compare(other) == Greater
}

// Equal reports whether both clocks hold the same counters.
// A missing entry is treated as zero.
func (vc VectorClock) Equal(other VectorClock) bool {
	for node, counter := range vc {
		if other[node] != counter {
			return false
		}
	}
	for node, counter := range other {
		if vc[node] != counter {
			return false
		}
	}
	return true
}

// Clone creates an independent copy of the clock
func (vc VectorClock) Clone() VectorClock {
	cloned := make(VectorClock, len(vc))
	for node, counter := range vc {
		cloned[node] = counter
	}
	return cloned
}

// Pairs serializes the clock to a node-sorted list of (node, counter)
// pairs. Two logically equal clocks always produce the same slice, which
// keeps storage keys and queue ordering deterministic.
func (vc VectorClock) Pairs() []Pair {
	pairs := make([]Pair, 0, len(vc))
	for node, counter := range vc {
		if counter == 0 {
			// Нулевые счетчики не сериализуем: отсутствие узла уже означает 0
			continue
		}
		pairs = append(pairs, Pair{Node: node, Counter: counter})
	}
	sortPairs(pairs)
	return pairs
}

// sortPairs сортирует пары по идентификатору узла (insertion sort:
// часов с большим числом узлов в этой системе не бывает)
func sortPairs(pairs []Pair) {
	for i := 1; i < len(pairs); i++ {
		for j := i; j > 0 && pairs[j].Node < pairs[j-1].Node; j-- {
			pairs[j], pairs[j-1] = pairs[j-1], pairs[j]
		}
	}
}

// Clock представляет потокобезопасную обертку над векторными часами
// одного узла. Узел увеличивает только собственный счетчик (Tick) и
// вливает чужие часы при получении удаленных событий (Observe).
type Clock struct {
	vc     VectorClock
	nodeID string
	mu     sync.Mutex
}

// NewClock creates a clock for a fresh node with a generated UUID node id
func NewClock() *Clock {
	return &Clock{
		vc:     New(),
		nodeID: uuid.New().String(),
	}
}

// NewClockWithNodeID creates a clock with a fixed node id.
// Used in tests and when restoring a persisted node identity.
func NewClockWithNodeID(nodeID string) *Clock {
	return &Clock{
		vc:     New(),
		nodeID: nodeID,
	}
}

// RestoreClock rebuilds a clock from persisted state
func RestoreClock(nodeID string, pairs []Pair) *Clock {
	return &Clock{
		vc:     FromPairs(pairs),
		nodeID: nodeID,
	}
}

// NodeID returns this node's identifier
func (c *Clock) NodeID() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.nodeID
}

// Tick bumps the local node's counter and returns the serialized
// snapshot suitable for attaching to a new outbound event.
func (c *Clock) Tick() []Pair {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.vc.Bump(c.nodeID)
	return c.vc.Pairs()
}

// Observe merges a remote clock into the local one.
// Counters never decrease.
func (c *Clock) Observe(pairs []Pair) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.vc = c.vc.Merge(FromPairs(pairs))
}

// Snapshot returns a copy of the current clock state without changing it
func (c *Clock) Snapshot() VectorClock {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.vc.Clone()
}
