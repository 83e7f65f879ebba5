package rule

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/nmoreau/semidatalog/datalog/errs"
)

// depEdge records that a rule's head depends on a body relation, and
// whether that dependency passes through negation.
type depEdge struct {
	from, to Symbol
	negated  bool
}

// stratify computes the rule-index groups in dependency order. The
// predicate dependency graph is decomposed into strongly connected
// components with Tarjan's algorithm over gonum/graph/topo. Ordering
// of strata is computed independently with a plain Kahn's-algorithm
// topological sort over the SCC condensation, since gonum's
// TarjanSCC documents only which nodes share a component, not an
// order this caller can rely on across versions.
func stratify(p *Program) ([][]int, error) {
	var syms []Symbol
	seen := make(map[Symbol]bool)
	add := func(s Symbol) {
		if !seen[s] {
			seen[s] = true
			syms = append(syms, s)
		}
	}
	for sym := range p.Extensional {
		add(sym)
	}
	for _, r := range p.Rules {
		add(r.Head.Relation)
		for _, b := range r.Body {
			add(b.Relation)
		}
	}
	sort.Slice(syms, func(i, j int) bool { return syms[i] < syms[j] })

	id := make(map[Symbol]int64, len(syms))
	for i, s := range syms {
		id[s] = int64(i)
	}

	g := simple.NewDirectedGraph()
	for _, s := range syms {
		g.AddNode(simple.Node(id[s]))
	}

	var edges []depEdge
	for _, r := range p.Rules {
		for _, b := range r.Body {
			edges = append(edges, depEdge{from: b.Relation, to: r.Head.Relation, negated: b.Negated})
			from, to := id[b.Relation], id[r.Head.Relation]
			// A self edge adds nothing to the SCCs (a node is always in
			// its own component) and simple.DirectedGraph rejects it;
			// negated self edges are still checked below via edges.
			if from != to && !g.HasEdgeFromTo(from, to) {
				g.SetEdge(g.NewEdge(simple.Node(from), simple.Node(to)))
			}
		}
	}

	sccs := topo.TarjanSCC(g)

	sccOf := make(map[Symbol]int, len(syms))
	for idx, comp := range sccs {
		for _, n := range comp {
			sccOf[syms[int(n.ID())]] = idx
		}
	}

	for _, e := range edges {
		if e.negated && sccOf[e.from] == sccOf[e.to] {
			return nil, fmt.Errorf("%w: %q depends negatively on itself (through %q), which is not stratifiable",
				errs.ErrProgramInvalid, e.to, e.from)
		}
	}

	nSCC := len(sccs)
	adj := make([][]int, nSCC)
	indeg := make([]int, nSCC)
	edgeSeen := make(map[[2]int]bool)
	for _, e := range edges {
		from, to := sccOf[e.from], sccOf[e.to]
		if from == to {
			continue
		}
		key := [2]int{from, to}
		if edgeSeen[key] {
			continue
		}
		edgeSeen[key] = true
		adj[from] = append(adj[from], to)
		indeg[to]++
	}

	sccOrder := kahnTopoSort(adj, indeg, nSCC)

	strataRules := make([][]int, 0, len(sccOrder))
	for _, idx := range sccOrder {
		var ruleIdxs []int
		for i, r := range p.Rules {
			if sccOf[r.Head.Relation] == idx {
				ruleIdxs = append(ruleIdxs, i)
			}
		}
		if len(ruleIdxs) > 0 {
			strataRules = append(strataRules, ruleIdxs)
		}
	}
	return strataRules, nil
}

// kahnTopoSort returns a topological order of nodes [0,n), breaking
// ties by node index so stratum order is deterministic across runs.
func kahnTopoSort(adj [][]int, indeg []int, n int) []int {
	var ready []int
	for i := 0; i < n; i++ {
		if indeg[i] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]int, 0, n)
	for len(ready) > 0 {
		sort.Ints(ready)
		cur := ready[0]
		ready = ready[1:]
		order = append(order, cur)
		for _, next := range adj[cur] {
			indeg[next]--
			if indeg[next] == 0 {
				ready = append(ready, next)
			}
		}
	}
	return order
}
