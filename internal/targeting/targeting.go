// Package targeting keeps the attacker→victim graph for one match.
package targeting

import (
	"math/rand/v2"
	"slices"
)

// maxInbound is the number of attackers a player may carry before the
// allocator starts routing elsewhere.
const maxInbound = 2

// Graph maps each live player to the player their attacks are routed to. A
// player with no live alternative has no entry.
type Graph struct {
	alive   map[string]bool
	targets map[string]string
	rng     *rand.Rand
}

func NewGraph(rng *rand.Rand) *Graph {
	return &Graph{
		alive:   make(map[string]bool),
		targets: make(map[string]string),
		rng:     rng,
	}
}

// AddPlayer marks id as live without assigning a target.
func (g *Graph) AddPlayer(id string) { g.alive[id] = true }

func (g *Graph) IsAlive(id string) bool { return g.alive[id] }

// Alive returns the live players in sorted order.
func (g *Graph) Alive() []string {
	out := make([]string, 0, len(g.alive))
	for id := range g.alive {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Target returns the current target of id.
func (g *Graph) Target(id string) (string, bool) {
	t, ok := g.targets[id]
	return t, ok
}

// Snapshot copies the graph edges.
func (g *Graph) Snapshot() map[string]string {
	out := make(map[string]string, len(g.targets))
	for k, v := range g.targets {
		out[k] = v
	}
	return out
}

// Inbound counts attackers of id, ignoring the edge owned by exclude.
func (g *Graph) Inbound(id, exclude string) int {
	n := 0
	for from, to := range g.targets {
		if to == id && from != exclude {
			n++
		}
	}
	return n
}

func (g *Graph) candidates(forPlayer string, skip string) []string {
	out := make([]string, 0, len(g.alive))
	for _, id := range g.Alive() {
		if id != forPlayer && id != skip {
			out = append(out, id)
		}
	}
	return out
}

// BestTarget picks a target for forPlayer among the other live players,
// preferring anyone with fewer than two attackers and otherwise the least
// targeted. Ties are broken uniformly at random. It returns false when no
// candidate exists.
func (g *Graph) BestTarget(forPlayer string) (string, bool) {
	return g.pick(g.candidates(forPlayer, ""), forPlayer)
}

func (g *Graph) pick(cands []string, forPlayer string) (string, bool) {
	if len(cands) == 0 {
		return "", false
	}
	var open []string
	for _, c := range cands {
		if g.Inbound(c, forPlayer) < maxInbound {
			open = append(open, c)
		}
	}
	if len(open) == 0 {
		least := -1
		for _, c := range cands {
			n := g.Inbound(c, forPlayer)
			switch {
			case least < 0 || n < least:
				least = n
				open = []string{c}
			case n == least:
				open = append(open, c)
			}
		}
	}
	return open[g.rng.IntN(len(open))], true
}

// Assign computes and stores a target for id, clearing the edge when there
// is no candidate.
func (g *Graph) Assign(id string) (string, bool) {
	t, ok := g.BestTarget(id)
	g.set(id, t, ok)
	return t, ok
}

// AssignAll gives every live player a target, in sorted order.
func (g *Graph) AssignAll() map[string]string {
	for _, id := range g.Alive() {
		g.Assign(id)
	}
	return g.Snapshot()
}

// Switch moves id to a different target when one exists, otherwise keeps
// the allocator's choice among the remaining candidates.
func (g *Graph) Switch(id string) (string, bool) {
	cur, has := g.targets[id]
	cands := g.candidates(id, "")
	if has && len(cands) > 1 {
		cands = g.candidates(id, cur)
	}
	t, ok := g.pick(cands, id)
	g.set(id, t, ok)
	return t, ok
}

// Redirect re-rolls id's target uniformly at random, ignoring inbound load.
func (g *Graph) Redirect(id string) (string, bool) {
	cands := g.candidates(id, "")
	if len(cands) == 0 {
		g.set(id, "", false)
		return "", false
	}
	t := cands[g.rng.IntN(len(cands))]
	g.set(id, t, true)
	return t, true
}

// Remove drops a dead or departed player and reassigns everyone who was
// targeting them. It returns the new target of each reassigned player; an
// empty string means they are left without one.
func (g *Graph) Remove(id string) map[string]string {
	delete(g.alive, id)
	delete(g.targets, id)

	var orphans []string
	for from, to := range g.targets {
		if to == id {
			orphans = append(orphans, from)
		}
	}
	slices.Sort(orphans)
	for _, o := range orphans {
		delete(g.targets, o)
	}

	changed := make(map[string]string, len(orphans))
	for _, o := range orphans {
		t, _ := g.Assign(o)
		changed[o] = t
	}
	return changed
}

// Reset forgets every player and edge.
func (g *Graph) Reset() {
	clear(g.alive)
	clear(g.targets)
}

func (g *Graph) set(id, target string, ok bool) {
	if ok {
		g.targets[id] = target
		return
	}
	delete(g.targets, id)
}
