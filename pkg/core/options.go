// Package core provides the main MemGraph session and domain graph management.
package core

import "time"

// RelationshipSpec names an edge to create from a stored or edited
// memory to an existing memory in the same domain.
type RelationshipSpec struct {
	// TargetID is the existing memory the edge points at.
	TargetID string

	// Type is the relationship type, from the fixed vocabulary.
	Type string

	// Strength is the edge weight in [0,1].
	Strength float64
}

// StoreOption is a function type for configuring StoreMemory operations.
//
// Options are applied using the functional options pattern, allowing
// flexible configuration without requiring all parameters.
type StoreOption func(*StoreOptions)

// StoreOptions contains configuration options for StoreMemory operations.
type StoreOptions struct {
	// Path is the organizational path of the memory. Defaults to "/".
	Path string

	// Tags are the tags attached to the memory.
	Tags []string

	// Timestamp overrides the memory timestamp. Zero means now.
	Timestamp time.Time

	// Relationships are edges created from the new memory.
	Relationships []RelationshipSpec

	// DomainRefs are cross-domain pointers carried by the new memory.
	DomainRefs []DomainReference
}

// WithPath sets the organizational path for StoreMemory operations.
//
// Example:
//
//	memory, _ := session.StoreMemory(ctx, "content", core.WithPath("/design/parser"))
func WithPath(path string) StoreOption {
	return func(opts *StoreOptions) {
		opts.Path = path
	}
}

// WithTags sets the tags for StoreMemory operations.
//
// Example:
//
//	memory, _ := session.StoreMemory(ctx, "content", core.WithTags("parser", "decision"))
func WithTags(tags ...string) StoreOption {
	return func(opts *StoreOptions) {
		opts.Tags = append(opts.Tags, tags...)
	}
}

// WithTimestamp overrides the stored memory's timestamp.
func WithTimestamp(t time.Time) StoreOption {
	return func(opts *StoreOptions) {
		opts.Timestamp = t
	}
}

// WithRelationship adds an edge from the new memory to an existing one.
//
// Example:
//
//	memory, _ := session.StoreMemory(ctx, "content",
//	    core.WithRelationship(node1.ID, "relates_to", 0.7))
func WithRelationship(targetID, relType string, strength float64) StoreOption {
	return func(opts *StoreOptions) {
		opts.Relationships = append(opts.Relationships, RelationshipSpec{
			TargetID: targetID,
			Type:     relType,
			Strength: strength,
		})
	}
}

// WithDomainRef attaches a cross-domain pointer to the new memory.
// An empty nodeID points at the target domain's entry point.
//
// Example:
//
//	memory, _ := session.StoreMemory(ctx, "content",
//	    core.WithDomainRef("other-project", "", "background reading", false))
func WithDomainRef(targetDomain, nodeID, description string, bidirectional bool) StoreOption {
	return func(opts *StoreOptions) {
		opts.DomainRefs = append(opts.DomainRefs, DomainReference{
			TargetDomain:  targetDomain,
			TargetNodeID:  nodeID,
			Description:   description,
			Bidirectional: bidirectional,
		})
	}
}

func applyStoreOptions(opts []StoreOption) *StoreOptions {
	options := &StoreOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// EditOption is a function type for configuring EditMemory operations.
type EditOption func(*EditOptions)

// EditOptions contains configuration options for EditMemory operations.
// Nil pointer fields leave the corresponding attribute unchanged.
type EditOptions struct {
	// Content replaces the memory content.
	Content *string

	// Path replaces the memory path.
	Path *string

	// SetTags replaces the whole tag set.
	SetTags *[]string

	// AddTags and RemoveTags adjust the tag set.
	AddTags    []string
	RemoveTags []string

	// AddRelationships creates additional edges from the memory.
	AddRelationships []RelationshipSpec

	// RemoveRelationships deletes edges from the memory by target and type.
	RemoveRelationships []RelationshipSpec

	// AddDomainRefs attaches additional cross-domain pointers.
	AddDomainRefs []DomainReference

	// RemoveDomainRefs detaches pointers by target domain and node.
	RemoveDomainRefs []DomainReference
}

// SetContent replaces the memory content.
//
// Example:
//
//	memory, _ := session.EditMemory(ctx, id, core.SetContent("revised note"))
func SetContent(content string) EditOption {
	return func(opts *EditOptions) {
		opts.Content = &content
	}
}

// SetPath replaces the memory path.
func SetPath(path string) EditOption {
	return func(opts *EditOptions) {
		opts.Path = &path
	}
}

// SetTags replaces the memory's whole tag set.
func SetTags(tags ...string) EditOption {
	return func(opts *EditOptions) {
		opts.SetTags = &tags
	}
}

// AddTags adds tags to the memory, ignoring duplicates.
func AddTags(tags ...string) EditOption {
	return func(opts *EditOptions) {
		opts.AddTags = append(opts.AddTags, tags...)
	}
}

// RemoveTags removes tags from the memory. Absent tags are ignored.
func RemoveTags(tags ...string) EditOption {
	return func(opts *EditOptions) {
		opts.RemoveTags = append(opts.RemoveTags, tags...)
	}
}

// AddRelationship adds an edge from the memory to an existing one.
func AddRelationship(targetID, relType string, strength float64) EditOption {
	return func(opts *EditOptions) {
		opts.AddRelationships = append(opts.AddRelationships, RelationshipSpec{
			TargetID: targetID,
			Type:     relType,
			Strength: strength,
		})
	}
}

// RemoveRelationship deletes the edges from the memory to targetID with
// the given type. An empty type deletes regardless of type.
func RemoveRelationship(targetID, relType string) EditOption {
	return func(opts *EditOptions) {
		opts.RemoveRelationships = append(opts.RemoveRelationships, RelationshipSpec{
			TargetID: targetID,
			Type:     relType,
		})
	}
}

// AddDomainRef attaches a cross-domain pointer to the memory.
func AddDomainRef(targetDomain, nodeID, description string, bidirectional bool) EditOption {
	return func(opts *EditOptions) {
		opts.AddDomainRefs = append(opts.AddDomainRefs, DomainReference{
			TargetDomain:  targetDomain,
			TargetNodeID:  nodeID,
			Description:   description,
			Bidirectional: bidirectional,
		})
	}
}

// RemoveDomainRef detaches the pointers to the given domain and node.
func RemoveDomainRef(targetDomain, nodeID string) EditOption {
	return func(opts *EditOptions) {
		opts.RemoveDomainRefs = append(opts.RemoveDomainRefs, DomainReference{
			TargetDomain: targetDomain,
			TargetNodeID: nodeID,
		})
	}
}

func applyEditOptions(opts []EditOption) *EditOptions {
	options := &EditOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// ForgetOption is a function type for configuring ForgetMemory operations.
type ForgetOption func(*ForgetOptions)

// ForgetOptions contains configuration options for ForgetMemory operations.
type ForgetOptions struct {
	// Cascade scrubs cross-domain pointers elsewhere that target the
	// forgotten memory. Without cascade such pointers are reported as
	// dangling instead.
	Cascade bool
}

// WithCascade enables cross-domain pointer scrubbing for ForgetMemory.
//
// Example:
//
//	report, _ := session.ForgetMemory(ctx, id, core.WithCascade())
func WithCascade() ForgetOption {
	return func(opts *ForgetOptions) {
		opts.Cascade = true
	}
}

func applyForgetOptions(opts []ForgetOption) *ForgetOptions {
	options := &ForgetOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
