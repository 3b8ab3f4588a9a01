package diff

import "golang.org/x/net/html"

// Hooks customise a reconciliation pass. All hooks are optional.
type Hooks struct {
	// Key returns the identity of a keyed node, or "" for ordinary nodes.
	// Keyed nodes are matched by key anywhere in the live tree; ordinary
	// nodes are matched by position among their siblings.
	Key func(n *Node) string

	// BeforeUpdate returns false to leave a matched live node exactly as it
	// is, attributes and children included.
	BeforeUpdate func(live, candidate *Node) bool

	// BeforeDiscard returns false to keep a live node the candidate no longer
	// contains.
	BeforeDiscard func(live *Node) bool

	// OnDiscard is called for every subtree root removed from the live tree.
	OnDiscard func(live *Node)
}

// Result counts what a pass did to the live tree.
type Result struct {
	Inserted  int // nodes created from the candidate
	Updated   int // nodes whose text or attributes changed
	Discarded int // subtrees removed
	Moved     int // keyed nodes attached to a different parent
	Kept      int // nodes held back by BeforeUpdate or BeforeDiscard
}

// Changed reports whether the live tree was mutated.
func (r Result) Changed() bool {
	return r.Inserted+r.Updated+r.Discarded+r.Moved > 0
}

// Reconciler morphs a live tree into the shape of a candidate tree while
// reusing as many live nodes as possible.
type Reconciler struct {
	hooks Hooks
}

// NewReconciler creates a reconciler with the given hooks.
func NewReconciler(hooks Hooks) *Reconciler {
	return &Reconciler{hooks: hooks}
}

type keyedEntry struct {
	node    *Node
	parent  *Node
	index   int
	claimed bool
}

type pass struct {
	hooks     Hooks
	root      *Node
	keyed     map[string]*keyedEntry
	order     []string
	discarded []*Node
	res       Result
}

// Reconcile diffs the children of live against the children of candidate
// and mutates live in place. The candidate tree is only read.
//
// Keyed live nodes are indexed up front so a key can be claimed wherever it
// reappears. A keyed node nobody claims is offered to BeforeDiscard once the
// whole tree has been walked; if it is kept it goes back under its original
// parent, or under the root when that parent is gone.
func (r *Reconciler) Reconcile(live, candidate *Node) Result {
	p := &pass{
		hooks: r.hooks,
		root:  live,
		keyed: make(map[string]*keyedEntry),
	}
	for _, c := range live.Children {
		p.index(c)
	}

	p.morphChildren(live, candidate)
	p.settleUnclaimed()

	if p.hooks.OnDiscard != nil {
		for _, n := range p.discarded {
			p.hooks.OnDiscard(n)
		}
	}
	return p.res
}

func (p *pass) key(n *Node) string {
	if p.hooks.Key == nil || n.Type != html.ElementNode {
		return ""
	}
	return p.hooks.Key(n)
}

// index records keyed nodes without descending into them; their contents
// belong to whoever owns the key.
func (p *pass) index(n *Node) {
	if k := p.key(n); k != "" {
		if _, dup := p.keyed[k]; !dup {
			p.keyed[k] = &keyedEntry{node: n, parent: n.Parent, index: n.IndexInParent()}
			p.order = append(p.order, k)
		}
		return
	}
	for _, c := range n.Children {
		p.index(c)
	}
}

func (p *pass) isIndexed(n *Node) bool {
	k := p.key(n)
	if k == "" {
		return false
	}
	e, ok := p.keyed[k]
	return ok && e.node == n
}

func (p *pass) morphChildren(liveParent, candParent *Node) {
	old := append([]*Node(nil), liveParent.Children...)
	used := make(map[*Node]bool, len(old))
	next := make([]*Node, 0, len(candParent.Children))
	cursor := 0

	for _, c := range candParent.Children {
		if k := p.key(c); k != "" {
			if e, ok := p.keyed[k]; ok && !e.claimed {
				e.claimed = true
				used[e.node] = true
				if e.node.Parent != liveParent {
					p.res.Moved++
				}
				p.morph(e.node, c)
				next = append(next, e.node)
				continue
			}
			next = append(next, p.create(c))
			continue
		}

		match := -1
		for i := cursor; i < len(old); i++ {
			o := old[i]
			if used[o] || p.key(o) != "" {
				continue
			}
			if compatible(o, c) {
				match = i
				break
			}
		}
		if match < 0 {
			next = append(next, p.create(c))
			continue
		}
		cursor = match + 1
		used[old[match]] = true
		p.morph(old[match], c)
		next = append(next, old[match])
	}

	var dropped []*Node
	for _, o := range old {
		if used[o] || o.Parent != liveParent || p.isIndexed(o) {
			continue
		}
		if p.hooks.BeforeDiscard != nil && !p.hooks.BeforeDiscard(o) {
			p.res.Kept++
			next = append(next, o)
			continue
		}
		dropped = append(dropped, o)
	}

	liveParent.SetChildren(next)
	for _, o := range dropped {
		p.res.Discarded++
		p.discarded = append(p.discarded, o)
	}
}

func (p *pass) morph(live, cand *Node) {
	if p.hooks.BeforeUpdate != nil && !p.hooks.BeforeUpdate(live, cand) {
		p.res.Kept++
		return
	}

	switch live.Type {
	case html.TextNode:
		if live.Data != cand.Data {
			live.Data = cand.Data
			p.res.Updated++
		}
	case html.ElementNode:
		if !attributesEqual(live.Attributes, cand.Attributes) {
			live.Attributes = make(map[string]string, len(cand.Attributes))
			for k, v := range cand.Attributes {
				live.Attributes[k] = v
			}
			p.res.Updated++
		}
		p.morphChildren(live, cand)
	}
}

func (p *pass) create(c *Node) *Node {
	p.res.Inserted++
	if c.Type == html.TextNode {
		return NewText(c.Data)
	}
	n := &Node{
		Type:       c.Type,
		Data:       c.Data,
		Attributes: make(map[string]string, len(c.Attributes)),
	}
	for k, v := range c.Attributes {
		n.Attributes[k] = v
	}
	// Children go through the normal path so keyed live nodes can be claimed
	// into freshly created containers.
	p.morphChildren(n, c)
	return n
}

func (p *pass) settleUnclaimed() {
	for _, k := range p.order {
		e := p.keyed[k]
		if e.claimed {
			continue
		}
		n := e.node
		if p.hooks.BeforeDiscard == nil || p.hooks.BeforeDiscard(n) {
			// Inside an already discarded subtree it stays where it is, but it
			// is still reported.
			if p.attached(n) {
				n.Detach()
			}
			p.res.Discarded++
			p.discarded = append(p.discarded, n)
			continue
		}

		p.res.Kept++
		if p.attached(n) {
			continue
		}
		parent := e.parent
		if parent == nil || !p.attached(parent) {
			parent = p.root
		}
		parent.InsertAt(e.index, n)
	}
}

func (p *pass) attached(n *Node) bool {
	return n.Root() == p.root
}

func compatible(live, cand *Node) bool {
	if live.Type != cand.Type {
		return false
	}
	return live.Type != html.ElementNode || live.Data == cand.Data
}
