// Package viz renders recall and traversal results as Mermaid flowchart
// text.
//
// Output is deterministic: nodes and edges are declared in BFS discovery
// order, so identical inputs always produce byte-identical diagrams.
package viz

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/memgraph-go/memgraph/pkg/storage"
	"github.com/memgraph-go/memgraph/pkg/traverse"
)

// Direction is the diagram layout direction.
type Direction string

const (
	TopDown   Direction = "TB"
	BottomUp  Direction = "BT"
	LeftRight Direction = "LR"
	RightLeft Direction = "RL"
)

// ContentFormat controls how node content is rendered into labels.
type ContentFormat struct {
	// MaxLength truncates content. Zero falls back to DefaultMaxLength.
	MaxLength int

	// TruncationSuffix is appended when content was truncated.
	TruncationSuffix string

	// IncludeTimestamp appends the node timestamp to the label.
	IncludeTimestamp bool

	// IncludeID prefixes the label with the node ID.
	IncludeID bool
}

// DefaultMaxLength is the label content cap when none is configured.
const DefaultMaxLength = 40

// DefaultTruncationSuffix marks truncated labels.
const DefaultTruncationSuffix = "..."

// Options parameterizes one rendering.
type Options struct {
	// Direction is the layout direction. Empty means TopDown.
	Direction Direction

	// Content controls node label formatting.
	Content ContentFormat

	// IncludeStrength annotates edge labels with strength.
	IncludeStrength bool

	// RelationshipTypes filters rendered edges. Empty means all types.
	RelationshipTypes []string

	// MinStrength filters rendered edges.
	MinStrength float64
}

func (o *Options) direction() (Direction, error) {
	switch o.Direction {
	case "":
		return TopDown, nil
	case TopDown, BottomUp, LeftRight, RightLeft:
		return o.Direction, nil
	default:
		return "", fmt.Errorf("viz: unknown direction %q: %w", o.Direction, storage.ErrInvalidArgument)
	}
}

func (o *Options) edgeVisible(e *storage.GraphEdge) bool {
	if e.Strength < o.MinStrength {
		return false
	}
	if len(o.RelationshipTypes) == 0 {
		return true
	}
	for _, t := range o.RelationshipTypes {
		if e.Type == t {
			return true
		}
	}
	return false
}

// RenderTraversal renders a traversal result. Multi-domain results are
// grouped into one subgraph block per domain, and followed domain
// pointers are drawn as dotted edges.
func RenderTraversal(res *traverse.Result, opts *Options) (string, error) {
	if opts == nil {
		opts = &Options{}
	}
	dir, err := opts.direction()
	if err != nil {
		return "", err
	}

	multiDomain := len(res.Groups) > 1
	var b strings.Builder
	fmt.Fprintf(&b, "graph %s\n", dir)

	for _, group := range res.Groups {
		indent := "    "
		if multiDomain {
			fmt.Fprintf(&b, "    subgraph %s\n", sanitizeIdent(group.Domain))
			indent = "        "
		}
		for _, entry := range group.Entries {
			id := nodeIdent(group.Domain, entry.Node.ID, multiDomain)
			fmt.Fprintf(&b, "%s%s[\"%s\"]\n", indent, id, nodeLabel(entry.Node, &opts.Content))
		}
		if multiDomain {
			b.WriteString("    end\n")
		}
	}

	visited := map[traverse.NodeRef]bool{}
	for _, ref := range res.Order {
		visited[ref] = true
	}

	// Edges in discovery order of their source node, deduplicated
	// against the incoming copy held by the target entry.
	drawn := map[string]bool{}
	for _, ref := range res.Order {
		entry := res.Entry(ref)
		if entry == nil {
			continue
		}
		for i := range entry.Outgoing {
			edge := entry.Outgoing[i]
			if !opts.edgeVisible(&edge) {
				continue
			}
			if !visited[traverse.NodeRef{Domain: ref.Domain, NodeID: edge.Target}] {
				continue
			}
			key := edgeKey(ref.Domain, &edge)
			if drawn[key] {
				continue
			}
			drawn[key] = true
			fmt.Fprintf(&b, "    %s -->|%s| %s\n",
				nodeIdent(ref.Domain, edge.Source, multiDomain),
				edgeLabel(&edge, opts.IncludeStrength),
				nodeIdent(ref.Domain, edge.Target, multiDomain))
		}
		for i := range entry.Incoming {
			edge := entry.Incoming[i]
			if !opts.edgeVisible(&edge) {
				continue
			}
			if !visited[traverse.NodeRef{Domain: ref.Domain, NodeID: edge.Source}] {
				continue
			}
			key := edgeKey(ref.Domain, &edge)
			if drawn[key] {
				continue
			}
			drawn[key] = true
			fmt.Fprintf(&b, "    %s -->|%s| %s\n",
				nodeIdent(ref.Domain, edge.Source, multiDomain),
				edgeLabel(&edge, opts.IncludeStrength),
				nodeIdent(ref.Domain, edge.Target, multiDomain))
		}
	}

	if multiDomain {
		renderPointerEdges(&b, res, visited)
	}

	return b.String(), nil
}

// edgeKey identifies one edge occurrence. Strength is part of the key
// so parallel edges of the same type but different strengths each
// render; only the outgoing/incoming copies of one edge collapse.
func edgeKey(domain string, edge *storage.GraphEdge) string {
	return fmt.Sprintf("%s\x00%s\x00%s\x00%s\x00%g", domain, edge.Source, edge.Target, edge.Type, edge.Strength)
}

// renderPointerEdges draws followed domain pointers as dotted edges.
func renderPointerEdges(b *strings.Builder, res *traverse.Result, visited map[traverse.NodeRef]bool) {
	for _, ref := range res.Order {
		entry := res.Entry(ref)
		if entry == nil {
			continue
		}
		for _, dref := range entry.Node.DomainRefs {
			target := traverse.NodeRef{Domain: dref.TargetDomain, NodeID: dref.TargetNodeID}
			if dref.TargetNodeID == "" {
				target.NodeID = entryPointOf(res, dref.TargetDomain)
			}
			if target.NodeID == "" || !visited[target] {
				continue
			}
			label := dref.Description
			if label == "" {
				label = "ref"
			}
			fmt.Fprintf(b, "    %s -.->|%s| %s\n",
				nodeIdent(ref.Domain, entry.Node.ID, true),
				escapeLabel(label),
				nodeIdent(target.Domain, target.NodeID, true))
		}
	}
}

// entryPointOf finds the node an entry-point reference resolved to: the
// first node discovered in the target domain.
func entryPointOf(res *traverse.Result, domain string) string {
	for _, ref := range res.Order {
		if ref.Domain == domain {
			return ref.NodeID
		}
	}
	return ""
}

// RenderGraph renders a flat node/edge set, such as a recall result.
// Nodes are declared in the given order; edges whose endpoints are both
// present follow, ordered by source, target, then type.
func RenderGraph(nodes []*storage.MemoryNode, edges []storage.GraphEdge, opts *Options) (string, error) {
	if opts == nil {
		opts = &Options{}
	}
	dir, err := opts.direction()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "graph %s\n", dir)

	present := make(map[string]bool, len(nodes))
	for _, node := range nodes {
		present[node.ID] = true
		fmt.Fprintf(&b, "    %s[\"%s\"]\n", sanitizeIdent(node.ID), nodeLabel(node, &opts.Content))
	}

	kept := make([]storage.GraphEdge, 0, len(edges))
	for i := range edges {
		if opts.edgeVisible(&edges[i]) && present[edges[i].Source] && present[edges[i].Target] {
			kept = append(kept, edges[i])
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Source != kept[j].Source {
			return kept[i].Source < kept[j].Source
		}
		if kept[i].Target != kept[j].Target {
			return kept[i].Target < kept[j].Target
		}
		return kept[i].Type < kept[j].Type
	})
	for i := range kept {
		fmt.Fprintf(&b, "    %s -->|%s| %s\n",
			sanitizeIdent(kept[i].Source), edgeLabel(&kept[i], opts.IncludeStrength), sanitizeIdent(kept[i].Target))
	}

	return b.String(), nil
}

func nodeLabel(node *storage.MemoryNode, format *ContentFormat) string {
	maxLen := format.MaxLength
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}
	suffix := format.TruncationSuffix
	if suffix == "" {
		suffix = DefaultTruncationSuffix
	}

	content := strings.Join(strings.Fields(node.Content), " ")
	if runes := []rune(content); len(runes) > maxLen {
		content = string(runes[:maxLen]) + suffix
	}

	var parts []string
	if format.IncludeID {
		parts = append(parts, node.ID)
	}
	parts = append(parts, content)
	if format.IncludeTimestamp {
		parts = append(parts, node.Timestamp.UTC().Format(time.RFC3339))
	}
	return escapeLabel(strings.Join(parts, " - "))
}

func edgeLabel(edge *storage.GraphEdge, includeStrength bool) string {
	if !includeStrength {
		return escapeLabel(edge.Type)
	}
	return escapeLabel(fmt.Sprintf("%s (%.2f)", edge.Type, edge.Strength))
}

var labelEscaper = strings.NewReplacer(
	`"`, "#quot;",
	"<", "#lt;",
	">", "#gt;",
	"[", "#91;",
	"]", "#93;",
	"{", "#123;",
	"}", "#125;",
	"|", "#124;",
)

func escapeLabel(s string) string {
	return labelEscaper.Replace(s)
}

// sanitizeIdent maps an arbitrary string onto the identifier charset
// Mermaid accepts for node names.
func sanitizeIdent(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

func nodeIdent(domain, nodeID string, multiDomain bool) string {
	if !multiDomain {
		return sanitizeIdent(nodeID)
	}
	return sanitizeIdent(domain + "__" + nodeID)
}
