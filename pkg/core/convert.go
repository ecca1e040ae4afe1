// Package core provides the main MemGraph session and domain graph management.
package core

import (
	"github.com/memgraph-go/memgraph/pkg/graph"
	"github.com/memgraph-go/memgraph/pkg/storage"
)

// fromStorageDomain converts a storage domain to the public type.
func fromStorageDomain(d *storage.Domain) *Domain {
	if d == nil {
		return nil
	}
	return &Domain{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Created:     d.Created,
		LastAccess:  d.LastAccess,
	}
}

// fromStorageNode converts a storage node to the public type, attaching
// the relationships visible from that node in the given graph. A nil
// graph yields a memory without relationships.
func fromStorageNode(g *graph.Graph, node *storage.MemoryNode) *Memory {
	if node == nil {
		return nil
	}
	memory := &Memory{
		ID:        node.ID,
		Content:   node.Content,
		Timestamp: node.Timestamp,
		Path:      node.Path,
		Tags:      append([]string(nil), node.Tags...),
	}
	for _, ref := range node.DomainRefs {
		memory.DomainRefs = append(memory.DomainRefs, fromStorageRef(ref))
	}

	if g == nil {
		return memory
	}
	incoming, outgoing := g.EdgesOf(node.ID, nil, 0)
	for _, e := range outgoing {
		memory.Relationships = append(memory.Relationships, Relationship{
			TargetID:  e.Target,
			Type:      e.Type,
			Strength:  e.Strength,
			Outgoing:  true,
			Timestamp: e.Timestamp,
		})
	}
	for _, e := range incoming {
		memory.Relationships = append(memory.Relationships, Relationship{
			TargetID:  e.Source,
			Type:      e.Type,
			Strength:  e.Strength,
			Outgoing:  false,
			Timestamp: e.Timestamp,
		})
	}
	return memory
}

func fromStorageRef(ref storage.DomainRef) DomainReference {
	return DomainReference{
		TargetDomain:  ref.TargetDomain,
		TargetNodeID:  ref.TargetNodeID,
		Description:   ref.Description,
		Bidirectional: ref.Bidirectional,
	}
}

func toStorageRef(ref DomainReference) storage.DomainRef {
	return storage.DomainRef{
		TargetDomain:  ref.TargetDomain,
		TargetNodeID:  ref.TargetNodeID,
		Description:   ref.Description,
		Bidirectional: ref.Bidirectional,
	}
}
