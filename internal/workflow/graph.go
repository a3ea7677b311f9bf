package workflow

import (
	"errors"
	"fmt"
	"strings"

	"batchflow/internal/batch"
	"batchflow/internal/batchmap"
	"batchflow/internal/stage"
	"batchflow/internal/store"
)

// NodeKind tags the variant of a graph node.
type NodeKind string

const (
	KindTask        NodeKind = "task"
	KindParallelMap NodeKind = "parallel_map"
	KindChoice      NodeKind = "choice"
	KindWait        NodeKind = "wait"
	KindTerminal    NodeKind = "terminal"
)

// Condition guards a Choice branch.
type Condition struct {
	Label string
	Test  func(batch.State) bool
}

// HasErrors matches when the error scan of collection finds a captured
// error. The quarantine gate runs the same scan.
func HasErrors(collection batch.Collection) Condition {
	return Condition{
		Label: fmt.Sprintf("%s has errors", collection),
		Test: func(state batch.State) bool {
			return batchmap.Scan(collection.Steps(state)).ErrorFound
		},
	}
}

// VerdictIs matches when the final step resolved to result.
func VerdictIs(result batch.Result) Condition {
	return Condition{
		Label: fmt.Sprintf("verdict is %s", result),
		Test: func(state batch.State) bool {
			return state.FinalStepResult == result
		},
	}
}

type route struct {
	cond Condition
	next string
}

// Node is one vertex of a built Graph. It is read-only.
type Node struct {
	name string
	kind NodeKind

	task       stage.FinalFunc
	collection batch.Collection
	chain      stage.Chain
	routes     []route
	otherwise  string
	outcome    store.Status
	next       string
}

// Name returns the node name.
func (n *Node) Name() string { return n.name }

// Kind returns the node variant.
func (n *Node) Kind() NodeKind { return n.kind }

// Next returns the successor of a Task, ParallelMap or Wait node.
func (n *Node) Next() string { return n.next }

// Collection returns the collection a ParallelMap or Wait node works on.
func (n *Node) Collection() batch.Collection { return n.collection }

// Outcome returns the run status a Terminal node assigns.
func (n *Node) Outcome() store.Status { return n.outcome }

// Successors lists every node reachable in one step.
func (n *Node) Successors() []string {
	switch n.kind {
	case KindChoice:
		out := make([]string, 0, len(n.routes)+1)
		for _, r := range n.routes {
			out = append(out, r.next)
		}
		if n.otherwise != "" {
			out = append(out, n.otherwise)
		}
		return out
	case KindTerminal:
		return nil
	default:
		if n.next == "" {
			return nil
		}
		return []string{n.next}
	}
}

func (n *Node) choose(state batch.State) (string, string) {
	for _, r := range n.routes {
		if r.cond.Test != nil && r.cond.Test(state) {
			return r.next, r.cond.Label
		}
	}
	return n.otherwise, "otherwise"
}

func (n *Node) clone() *Node {
	cp := *n
	cp.chain = append(stage.Chain(nil), n.chain...)
	cp.routes = append([]route(nil), n.routes...)
	return &cp
}

// Graph is an immutable, validated stage graph.
type Graph struct {
	start string
	order []string
	nodes map[string]*Node
}

// Start returns the entry node name.
func (g *Graph) Start() string { return g.start }

// Names lists node names in the order they were declared.
func (g *Graph) Names() []string { return append([]string(nil), g.order...) }

// Node looks up a node by name.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// NodeRef is a handle to a node declared on a Builder.
type NodeRef struct {
	name  string
	kind  NodeKind
	owner *Builder
}

// Name returns the referenced node name.
func (r NodeRef) Name() string { return r.name }

// Kind returns the referenced node variant.
func (r NodeRef) Kind() NodeKind { return r.kind }

// Builder assembles a Graph. It is not safe for concurrent use.
type Builder struct {
	nodes map[string]*Node
	order []string
	errs  []error
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{nodes: make(map[string]*Node)}
}

func (b *Builder) add(n *Node) NodeRef {
	n.name = strings.TrimSpace(n.name)
	switch {
	case n.name == "":
		b.errs = append(b.errs, fmt.Errorf("%s node: name is required", n.kind))
	case b.nodes[n.name] != nil:
		b.errs = append(b.errs, fmt.Errorf("duplicate node name %q", n.name))
	default:
		b.nodes[n.name] = n
		b.order = append(b.order, n.name)
	}
	return NodeRef{name: n.name, kind: n.kind, owner: b}
}

// Task declares a node that transforms the whole state.
func (b *Builder) Task(name string, fn stage.FinalFunc) NodeRef {
	if fn == nil {
		b.errs = append(b.errs, fmt.Errorf("task %q: function is required", name))
	}
	return b.add(&Node{name: name, kind: KindTask, task: fn})
}

// ParallelMap declares a node fanning chain out over collection.
func (b *Builder) ParallelMap(name string, collection batch.Collection, chain stage.Chain) NodeRef {
	if !collection.Valid() {
		b.errs = append(b.errs, fmt.Errorf("map %q: unknown collection %q", name, collection))
	}
	if len(chain) == 0 {
		b.errs = append(b.errs, fmt.Errorf("map %q: chain is empty", name))
	}
	return b.add(&Node{name: name, kind: KindParallelMap, collection: collection, chain: append(stage.Chain(nil), chain...)})
}

// Choice declares a routing node.
func (b *Builder) Choice(name string) NodeRef {
	return b.add(&Node{name: name, kind: KindChoice})
}

// Wait declares a quarantine gate over collection.
func (b *Builder) Wait(name string, collection batch.Collection) NodeRef {
	if !collection.Valid() {
		b.errs = append(b.errs, fmt.Errorf("wait %q: unknown collection %q", name, collection))
	}
	return b.add(&Node{name: name, kind: KindWait, collection: collection})
}

// Terminal declares an end node assigning outcome to the run.
func (b *Builder) Terminal(name string, outcome store.Status) NodeRef {
	if !outcome.IsTerminal() {
		b.errs = append(b.errs, fmt.Errorf("terminal %q: status %q is not terminal", name, outcome))
	}
	return b.add(&Node{name: name, kind: KindTerminal, outcome: outcome})
}

func (b *Builder) resolve(ref NodeRef) (*Node, bool) {
	if ref.owner != b {
		b.errs = append(b.errs, fmt.Errorf("node %q belongs to another builder", ref.name))
		return nil, false
	}
	n, ok := b.nodes[ref.name]
	return n, ok
}

// Then sets the successor of a Task, ParallelMap or Wait node.
func (b *Builder) Then(from, to NodeRef) {
	src, ok := b.resolve(from)
	if _, okTo := b.resolve(to); !ok || !okTo {
		return
	}
	switch src.kind {
	case KindTask, KindParallelMap, KindWait:
	default:
		b.errs = append(b.errs, fmt.Errorf("%s node %q cannot use Then", src.kind, src.name))
		return
	}
	if src.next != "" {
		b.errs = append(b.errs, fmt.Errorf("node %q already has a successor", src.name))
		return
	}
	src.next = to.name
}

// Branch adds a guarded route to a Choice node. Routes are tried in the
// order they are added.
func (b *Builder) Branch(choice NodeRef, cond Condition, to NodeRef) {
	src, ok := b.resolve(choice)
	if _, okTo := b.resolve(to); !ok || !okTo {
		return
	}
	if src.kind != KindChoice {
		b.errs = append(b.errs, fmt.Errorf("%s node %q cannot branch", src.kind, src.name))
		return
	}
	if cond.Test == nil {
		b.errs = append(b.errs, fmt.Errorf("choice %q: branch to %q has no condition", src.name, to.name))
		return
	}
	src.routes = append(src.routes, route{cond: cond, next: to.name})
}

// Otherwise sets the default route of a Choice node.
func (b *Builder) Otherwise(choice, to NodeRef) {
	src, ok := b.resolve(choice)
	if _, okTo := b.resolve(to); !ok || !okTo {
		return
	}
	if src.kind != KindChoice {
		b.errs = append(b.errs, fmt.Errorf("%s node %q cannot have a default route", src.kind, src.name))
		return
	}
	src.otherwise = to.name
}

// Build validates the declared nodes and returns an immutable graph.
func (b *Builder) Build(start NodeRef) (*Graph, error) {
	_, startOK := b.resolve(start)
	errs := append([]error(nil), b.errs...)
	if !startOK {
		errs = append(errs, fmt.Errorf("start node %q is not declared", start.name))
	}
	for _, name := range b.order {
		n := b.nodes[name]
		switch n.kind {
		case KindChoice:
			if n.otherwise == "" {
				errs = append(errs, fmt.Errorf("choice %q has no default route", name))
			}
		case KindTerminal:
		default:
			if n.next == "" {
				errs = append(errs, fmt.Errorf("%s node %q has no successor", n.kind, name))
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	g := &Graph{
		start: start.name,
		order: append([]string(nil), b.order...),
		nodes: make(map[string]*Node, len(b.nodes)),
	}
	for name, n := range b.nodes {
		g.nodes[name] = n.clone()
	}
	return g, nil
}
