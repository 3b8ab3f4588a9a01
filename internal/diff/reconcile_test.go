package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const keyAttr = "data-slot-id"

func mountKey(n *Node) string {
	return n.GetAttribute(keyAttr)
}

// ownerHooks veto updates and discards of every keyed node, the way the
// engine protects live widget mount points.
func ownerHooks(discarded *[]*Node) Hooks {
	return Hooks{
		Key: mountKey,
		BeforeUpdate: func(live, _ *Node) bool {
			return mountKey(live) == ""
		},
		BeforeDiscard: func(live *Node) bool {
			return mountKey(live) == ""
		},
		OnDiscard: func(live *Node) {
			if discarded != nil {
				*discarded = append(*discarded, live)
			}
		},
	}
}

func TestReconcileIntoEmpty(t *testing.T) {
	live := NewDocument()
	cand := mustParse(t, `<h1>Hello</h1><p>world</p>`)

	res := NewReconciler(Hooks{}).Reconcile(live, cand)

	assert.Equal(t, `<h1>Hello</h1><p>world</p>`, Render(live))
	assert.Equal(t, 4, res.Inserted)
	assert.True(t, res.Changed())
	assert.True(t, Equal(live, cand))
}

func TestReconcileIsIdempotent(t *testing.T) {
	live := NewDocument()
	cand := mustParse(t, `<div class="a"><h1>T</h1><div data-slot-id="k"></div></div>`)
	r := NewReconciler(ownerHooks(nil))

	r.Reconcile(live, cand)
	before := Render(live)

	res := r.Reconcile(live, cand)
	assert.False(t, res.Changed(), "second pass mutated the tree: %+v", res)
	assert.Equal(t, before, Render(live))
}

func TestReconcileUpdatesInPlace(t *testing.T) {
	live := mustParse(t, `<h1>Draft</h1><p class="a">x</p>`)
	h1, p := live.Children[0], live.Children[1]

	res := NewReconciler(Hooks{}).Reconcile(live, mustParse(t, `<h1>Final</h1><p class="b">x</p>`))

	require.Len(t, live.Children, 2)
	assert.Same(t, h1, live.Children[0])
	assert.Same(t, p, live.Children[1])
	assert.Equal(t, `<h1>Final</h1><p class="b">x</p>`, Render(live))
	assert.Equal(t, 2, res.Updated)
	assert.Zero(t, res.Inserted)
}

func TestReconcilePositionalSkip(t *testing.T) {
	live := mustParse(t, `<h1>a</h1><p>b</p>`)
	p := live.Children[1]

	res := NewReconciler(Hooks{}).Reconcile(live, mustParse(t, `<p>c</p>`))

	require.Len(t, live.Children, 1)
	assert.Same(t, p, live.Children[0])
	assert.Equal(t, `<p>c</p>`, Render(live))
	assert.Equal(t, 1, res.Discarded)
}

func TestReconcileVetoesMountPointUpdate(t *testing.T) {
	live := mustParse(t, `<div data-slot-id="k"><span>widget</span></div>`)
	mount := live.Children[0]

	res := NewReconciler(ownerHooks(nil)).Reconcile(live,
		mustParse(t, `<h2>Intro</h2><div data-slot-id="k" class="other"></div>`))

	assert.Equal(t, `<h2>Intro</h2><div data-slot-id="k"><span>widget</span></div>`, Render(live))
	assert.Same(t, mount, live.Children[1])
	assert.Equal(t, 1, res.Kept)
}

func TestReconcileMovesKeyedNode(t *testing.T) {
	live := mustParse(t, `<div data-slot-id="k"><span>widget</span></div>`)
	mount := live.Children[0]

	res := NewReconciler(ownerHooks(nil)).Reconcile(live,
		mustParse(t, `<section><div data-slot-id="k"></div></section>`))

	assert.Equal(t, `<section><div data-slot-id="k"><span>widget</span></div></section>`, Render(live))
	assert.Same(t, mount, live.Children[0].Children[0])
	assert.Equal(t, 1, res.Moved)
	assert.Zero(t, res.Discarded)
}

func TestReconcileKeepsVetoedMountPointMissingFromCandidate(t *testing.T) {
	live := mustParse(t, `<div data-slot-id="k"><span>widget</span></div>`)
	mount := live.Children[0]

	var discarded []*Node
	res := NewReconciler(ownerHooks(&discarded)).Reconcile(live, mustParse(t, `<p>only</p>`))

	assert.Equal(t, `<div data-slot-id="k"><span>widget</span></div><p>only</p>`, Render(live))
	assert.Same(t, mount, live.Children[0])
	assert.Empty(t, discarded)
	assert.Equal(t, 1, res.Kept)
}

func TestReconcileRestoresOrphanedMountPoint(t *testing.T) {
	live := mustParse(t, `<section><div data-slot-id="k">w</div></section>`)
	mount := live.Children[0].Children[0]

	var discarded []*Node
	NewReconciler(ownerHooks(&discarded)).Reconcile(live, mustParse(t, `<p>x</p>`))

	assert.Equal(t, `<div data-slot-id="k">w</div><p>x</p>`, Render(live))
	assert.Same(t, mount, live.Children[0])
	require.Len(t, discarded, 1)
	assert.Equal(t, "section", discarded[0].Data)
}

func TestReconcileDiscardsUnprotectedKeyedNode(t *testing.T) {
	live := mustParse(t, `<div data-slot-id="k">w</div><p>x</p>`)
	mount := live.Children[0]

	var discarded []*Node
	res := NewReconciler(Hooks{
		Key:       mountKey,
		OnDiscard: func(n *Node) { discarded = append(discarded, n) },
	}).Reconcile(live, mustParse(t, `<p>x</p>`))

	assert.Equal(t, `<p>x</p>`, Render(live))
	assert.Equal(t, []*Node{mount}, discarded)
	assert.Equal(t, 1, res.Discarded)
	assert.Nil(t, mount.Parent)
}

func TestReconcileDuplicateKeyCreatesSecondNode(t *testing.T) {
	live := mustParse(t, `<div data-slot-id="k">w</div>`)
	mount := live.Children[0]

	NewReconciler(ownerHooks(nil)).Reconcile(live,
		mustParse(t, `<div data-slot-id="k"></div><div data-slot-id="k"></div>`))

	require.Len(t, live.Children, 2)
	assert.Same(t, mount, live.Children[0])
	assert.Equal(t, `<div data-slot-id="k">w</div><div data-slot-id="k"></div>`, Render(live))
}

func TestReconcileStreamingAppend(t *testing.T) {
	live := NewDocument()
	r := NewReconciler(ownerHooks(nil))

	r.Reconcile(live, mustParse(t, `<h1>Top</h1><div data-slot-id="k"></div>`))
	mount := live.Children[1]
	mount.AppendChild(NewText("rendered"))

	res := r.Reconcile(live, mustParse(t, `<h1>Top</h1><div data-slot-id="k"></div><p>more</p>`))

	assert.Equal(t, `<h1>Top</h1><div data-slot-id="k">rendered</div><p>more</p>`, Render(live))
	assert.Same(t, mount, live.Children[1])
	assert.Equal(t, 2, res.Inserted)
	assert.Zero(t, res.Discarded)
}
