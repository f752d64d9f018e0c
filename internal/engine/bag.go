package engine

import "math/rand/v2"

// Bag is the seven-piece randomizer: every aligned run of seven draws holds
// each kind exactly once.
type Bag struct {
	queue []Kind
	rng   *rand.Rand
}

func NewBag(rng *rand.Rand) *Bag {
	return &Bag{rng: rng}
}

func (b *Bag) refill() {
	cycle := make([]Kind, NumKinds)
	for i := range cycle {
		cycle[i] = Kind(i)
	}
	b.rng.Shuffle(len(cycle), func(i, j int) { cycle[i], cycle[j] = cycle[j], cycle[i] })
	b.queue = append(b.queue, cycle...)
}

// Draw pops the head of the queue, refilling first when empty.
func (b *Bag) Draw() Kind {
	if len(b.queue) == 0 {
		b.refill()
	}
	k := b.queue[0]
	b.queue = b.queue[1:]
	return k
}

// Peek reports the next kind Draw will return.
func (b *Bag) Peek() Kind {
	if len(b.queue) == 0 {
		b.refill()
	}
	return b.queue[0]
}
