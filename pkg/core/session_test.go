package core_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memgraph "github.com/memgraph-go/memgraph/pkg/core"
	"github.com/memgraph-go/memgraph/pkg/recall"
	"github.com/memgraph-go/memgraph/pkg/storage"
	fileStore "github.com/memgraph-go/memgraph/pkg/storage/file"
	"github.com/memgraph-go/memgraph/pkg/traverse"
)

func setupSession(t *testing.T) *memgraph.Session {
	t.Helper()

	config := &memgraph.Config{
		Storage: memgraph.StorageConfig{
			Provider: "file",
			Config: map[string]interface{}{
				"data_dir": t.TempDir(),
			},
		},
	}
	session, err := memgraph.NewSession(config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func TestConfig_Validate(t *testing.T) {
	assert.Error(t, (&memgraph.Config{}).Validate())
	assert.Error(t, (&memgraph.Config{Storage: memgraph.StorageConfig{Provider: "redis"}}).Validate())
	assert.NoError(t, (&memgraph.Config{Storage: memgraph.StorageConfig{Provider: "file"}}).Validate())
}

func TestSession_DomainLifecycle(t *testing.T) {
	session := setupSession(t)
	ctx := context.Background()

	created, err := session.CreateDomain(ctx, "proj", "Project", "test project")
	require.NoError(t, err)
	assert.Equal(t, "proj", created.ID)
	assert.Equal(t, "proj", session.CurrentDomain(), "first domain becomes current")

	_, err = session.CreateDomain(ctx, "proj", "Again", "")
	assert.ErrorIs(t, err, memgraph.ErrConflict)

	_, err = session.CreateDomain(ctx, "", "No ID", "")
	assert.ErrorIs(t, err, memgraph.ErrInvalidArgument)

	_, err = session.CreateDomain(ctx, "other", "Other", "")
	require.NoError(t, err)
	assert.Equal(t, "proj", session.CurrentDomain(), "creating later domains does not switch")

	domains, err := session.ListDomains(ctx)
	require.NoError(t, err)
	require.Len(t, domains, 2)
	assert.Equal(t, "other", domains[0].ID)
	assert.Equal(t, "proj", domains[1].ID)

	selected, err := session.SelectDomain(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, "other", selected.ID)
	assert.Equal(t, "other", session.CurrentDomain())

	_, err = session.SelectDomain(ctx, "nope")
	assert.ErrorIs(t, err, memgraph.ErrNotFound)
	assert.Equal(t, "other", session.CurrentDomain(), "failed select keeps the old domain")
}

func TestSession_StoreAndRecallRecent(t *testing.T) {
	session := setupSession(t)
	ctx := context.Background()

	_, err := session.StoreMemory(ctx, "too early")
	assert.ErrorIs(t, err, memgraph.ErrNotFound, "no domain selected yet")

	_, err = session.CreateDomain(ctx, "proj", "Project", "")
	require.NoError(t, err)

	_, err = session.StoreMemory(ctx, "")
	assert.ErrorIs(t, err, memgraph.ErrInvalidArgument)

	older, err := session.StoreMemory(ctx, "older note")
	require.NoError(t, err)
	newest, err := session.StoreMemory(ctx, "newest note")
	require.NoError(t, err)
	assert.NotEqual(t, older.ID, newest.ID)

	result, err := session.RecallMemories(ctx, &recall.Request{
		Strategy: recall.StrategyRecent,
		MaxNodes: 1,
	})
	require.NoError(t, err)
	require.Len(t, result.Memories, 1)
	assert.Equal(t, newest.ID, result.Memories[0].ID)
}

// The end-to-end scenario: store two related memories under one path,
// recall them by path, and render the connecting edge in a diagram.
func TestSession_EndToEnd(t *testing.T) {
	session := setupSession(t)
	ctx := context.Background()

	_, err := session.CreateDomain(ctx, "proj", "Project", "")
	require.NoError(t, err)

	node1, err := session.StoreMemory(ctx, "A",
		memgraph.WithPath("/x"),
		memgraph.WithTags("t1"),
	)
	require.NoError(t, err)

	node2, err := session.StoreMemory(ctx, "B",
		memgraph.WithPath("/x"),
		memgraph.WithRelationship(node1.ID, "relates_to", 0.7),
	)
	require.NoError(t, err)
	require.Len(t, node2.Relationships, 1)
	assert.Equal(t, node1.ID, node2.Relationships[0].TargetID)
	assert.True(t, node2.Relationships[0].Outgoing)

	result, err := session.RecallMemories(ctx, &recall.Request{
		Strategy: recall.StrategyPath,
		Path:     "/x",
		MaxNodes: 10,
	})
	require.NoError(t, err)
	ids := make([]string, 0, 2)
	for _, m := range result.Memories {
		ids = append(ids, m.ID)
	}
	assert.ElementsMatch(t, []string{node1.ID, node2.ID}, ids)

	diagram, err := session.GenerateGraphDiagram(ctx, &memgraph.DiagramRequest{
		StartNodeID: node2.ID,
		MaxDepth:    1,
		Direction:   "LR",
	})
	require.NoError(t, err)
	assert.Contains(t, diagram, "graph LR")
	assert.Contains(t, diagram, node2.ID+" -->|relates_to (0.70)| "+node1.ID)
}

func TestSession_StoreMemory_Validation(t *testing.T) {
	session := setupSession(t)
	ctx := context.Background()

	_, err := session.CreateDomain(ctx, "proj", "Project", "")
	require.NoError(t, err)
	anchor, err := session.StoreMemory(ctx, "anchor")
	require.NoError(t, err)

	_, err = session.StoreMemory(ctx, "bad type",
		memgraph.WithRelationship(anchor.ID, "made_up", 0.5))
	assert.ErrorIs(t, err, memgraph.ErrInvalidArgument)

	_, err = session.StoreMemory(ctx, "bad strength",
		memgraph.WithRelationship(anchor.ID, "relates_to", 7))
	assert.ErrorIs(t, err, memgraph.ErrInvalidArgument)

	_, err = session.StoreMemory(ctx, "missing target",
		memgraph.WithRelationship("mem_ghost", "relates_to", 0.5))
	assert.ErrorIs(t, err, memgraph.ErrIntegrityViolation)

	_, err = session.StoreMemory(ctx, "missing domain",
		memgraph.WithDomainRef("ghost-domain", "", "", false))
	assert.ErrorIs(t, err, memgraph.ErrIntegrityViolation)

	// Failed stores must not leave partial state behind.
	result, err := session.RecallMemories(ctx, &recall.Request{Strategy: recall.StrategyRecent})
	require.NoError(t, err)
	assert.Len(t, result.Memories, 1)
}

func TestSession_EditMemory(t *testing.T) {
	session := setupSession(t)
	ctx := context.Background()

	_, err := session.CreateDomain(ctx, "proj", "Project", "")
	require.NoError(t, err)

	first, err := session.StoreMemory(ctx, "draft", memgraph.WithTags("t1", "t2"))
	require.NoError(t, err)
	second, err := session.StoreMemory(ctx, "other")
	require.NoError(t, err)

	edited, err := session.EditMemory(ctx, first.ID,
		memgraph.SetContent("final"),
		memgraph.SetPath("/done"),
		memgraph.AddTags("t3"),
		memgraph.RemoveTags("t1"),
		memgraph.AddRelationship(second.ID, "precedes", 0.4),
	)
	require.NoError(t, err)
	assert.Equal(t, "final", edited.Content)
	assert.Equal(t, "/done", edited.Path)
	assert.ElementsMatch(t, []string{"t2", "t3"}, edited.Tags)
	require.Len(t, edited.Relationships, 1)
	assert.Equal(t, "precedes", edited.Relationships[0].Type)

	removed, err := session.EditMemory(ctx, first.ID,
		memgraph.RemoveRelationship(second.ID, "precedes"))
	require.NoError(t, err)
	assert.Empty(t, removed.Relationships)

	_, err = session.EditMemory(ctx, "mem_ghost", memgraph.SetContent("x"))
	assert.ErrorIs(t, err, memgraph.ErrNotFound)
}

func TestSession_EditsSurviveDomainSwitch(t *testing.T) {
	session := setupSession(t)
	ctx := context.Background()

	_, err := session.CreateDomain(ctx, "proj", "Project", "")
	require.NoError(t, err)
	memory, err := session.StoreMemory(ctx, "before switch")
	require.NoError(t, err)

	_, err = session.CreateDomain(ctx, "other", "Other", "")
	require.NoError(t, err)
	_, err = session.SelectDomain(ctx, "other")
	require.NoError(t, err)
	_, err = session.SelectDomain(ctx, "proj")
	require.NoError(t, err)

	got, err := session.GetMemory(ctx, memory.ID)
	require.NoError(t, err)
	assert.Equal(t, "before switch", got.Content)
}

func TestSession_ForgetMemory(t *testing.T) {
	session := setupSession(t)
	ctx := context.Background()

	_, err := session.CreateDomain(ctx, "proj", "Project", "")
	require.NoError(t, err)
	target, err := session.StoreMemory(ctx, "target")
	require.NoError(t, err)
	_, err = session.StoreMemory(ctx, "linked",
		memgraph.WithRelationship(target.ID, "relates_to", 0.5))
	require.NoError(t, err)

	_, err = session.CreateDomain(ctx, "other", "Other", "")
	require.NoError(t, err)
	_, err = session.SelectDomain(ctx, "other")
	require.NoError(t, err)
	_, err = session.StoreMemory(ctx, "pointer",
		memgraph.WithDomainRef("proj", target.ID, "", false))
	require.NoError(t, err)

	_, err = session.SelectDomain(ctx, "proj")
	require.NoError(t, err)

	report, err := session.ForgetMemory(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.RemovedEdges, "edges cascade with the node")
	require.Len(t, report.DanglingRefs, 1, "cross-domain pointer reported, not followed")
	assert.Equal(t, "other", report.DanglingRefs[0].Domain)

	_, err = session.GetMemory(ctx, target.ID)
	assert.ErrorIs(t, err, memgraph.ErrNotFound)
}

func TestSession_ForgetMemory_Cascade(t *testing.T) {
	session := setupSession(t)
	ctx := context.Background()

	_, err := session.CreateDomain(ctx, "proj", "Project", "")
	require.NoError(t, err)
	target, err := session.StoreMemory(ctx, "target")
	require.NoError(t, err)

	_, err = session.CreateDomain(ctx, "other", "Other", "")
	require.NoError(t, err)
	_, err = session.SelectDomain(ctx, "other")
	require.NoError(t, err)
	pointer, err := session.StoreMemory(ctx, "pointer",
		memgraph.WithDomainRef("proj", target.ID, "", false))
	require.NoError(t, err)

	_, err = session.SelectDomain(ctx, "proj")
	require.NoError(t, err)

	report, err := session.ForgetMemory(ctx, target.ID, memgraph.WithCascade())
	require.NoError(t, err)
	assert.Equal(t, 1, report.ScrubbedRefs)
	assert.Empty(t, report.DanglingRefs)

	_, err = session.SelectDomain(ctx, "other")
	require.NoError(t, err)
	scrubbed, err := session.GetMemory(ctx, pointer.ID)
	require.NoError(t, err)
	assert.Empty(t, scrubbed.DomainRefs, "cascade scrubs the pointer")
}

func TestSession_SearchContent(t *testing.T) {
	session := setupSession(t)
	ctx := context.Background()

	_, err := session.CreateDomain(ctx, "proj", "Project", "")
	require.NoError(t, err)
	_, err = session.StoreMemory(ctx, "budget review", memgraph.WithTags("finance"))
	require.NoError(t, err)

	_, err = session.CreateDomain(ctx, "other", "Other", "")
	require.NoError(t, err)

	matches, err := session.SearchContent(ctx, "budget", nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "proj", matches[0].Domain)

	_, err = session.SearchContent(ctx, "", nil)
	assert.ErrorIs(t, err, memgraph.ErrInvalidArgument)
}

func TestSession_TraverseAcrossDomains(t *testing.T) {
	session := setupSession(t)
	ctx := context.Background()

	_, err := session.CreateDomain(ctx, "lib", "Library", "")
	require.NoError(t, err)
	libNote, err := session.StoreMemory(ctx, "library note")
	require.NoError(t, err)

	_, err = session.CreateDomain(ctx, "proj", "Project", "")
	require.NoError(t, err)
	_, err = session.SelectDomain(ctx, "proj")
	require.NoError(t, err)
	origin, err := session.StoreMemory(ctx, "origin",
		memgraph.WithDomainRef("lib", libNote.ID, "see also", false))
	require.NoError(t, err)

	result, err := session.TraverseMemories(ctx, &traverse.Options{
		StartNodeID:          origin.ID,
		MaxDepth:             1,
		FollowDomainPointers: true,
	})
	require.NoError(t, err)

	var domains []string
	for _, group := range result.Groups {
		domains = append(domains, group.Domain)
	}
	assert.Equal(t, []string{"proj", "lib"}, domains)
	assert.Equal(t, "proj", session.CurrentDomain(), "traversal never switches domains")
}

// flakyStore wraps a real backend and fails a configurable number of
// saves or loads, for exercising the switch failure paths.
type flakyStore struct {
	storage.Store
	failSaves int
	failLoads int
}

func (s *flakyStore) SaveMemories(ctx context.Context, domain string, nodes map[string]*storage.MemoryNode, edges []storage.GraphEdge) error {
	if s.failSaves > 0 {
		s.failSaves--
		return fmt.Errorf("SaveMemories: disk full: %w", storage.ErrStorageFailure)
	}
	return s.Store.SaveMemories(ctx, domain, nodes, edges)
}

func (s *flakyStore) GetMemories(ctx context.Context, domain string) (map[string]*storage.MemoryNode, []storage.GraphEdge, error) {
	if s.failLoads > 0 {
		s.failLoads--
		return nil, nil, fmt.Errorf("GetMemories: read error: %w", storage.ErrStorageFailure)
	}
	return s.Store.GetMemories(ctx, domain)
}

func setupFlakySession(t *testing.T) (*memgraph.Session, *flakyStore) {
	t.Helper()

	inner, err := fileStore.NewStore(&fileStore.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	store := &flakyStore{Store: inner}
	session, err := memgraph.NewSessionWithStore(nil, store)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session, store
}

func TestSession_SwitchPersistFailureKeepsCurrent(t *testing.T) {
	session, store := setupFlakySession(t)
	ctx := context.Background()

	_, err := session.CreateDomain(ctx, "proj", "Project", "")
	require.NoError(t, err)
	_, err = session.CreateDomain(ctx, "other", "Other", "")
	require.NoError(t, err)
	kept, err := session.StoreMemory(ctx, "keep me")
	require.NoError(t, err)

	store.failSaves = 1
	_, err = session.SelectDomain(ctx, "other")
	require.ErrorIs(t, err, memgraph.ErrStorageFailure)
	assert.Equal(t, "proj", session.CurrentDomain(), "failed persist aborts the switch")

	// The cached graph is untouched and keeps serving reads.
	result, err := session.RecallMemories(ctx, &recall.Request{Strategy: recall.StrategyRecent})
	require.NoError(t, err)
	require.Len(t, result.Memories, 1)
	assert.Equal(t, kept.ID, result.Memories[0].ID)
}

func TestSession_SwitchLoadFailureRetriedOnNextRead(t *testing.T) {
	session, store := setupFlakySession(t)
	ctx := context.Background()

	_, err := session.CreateDomain(ctx, "proj", "Project", "")
	require.NoError(t, err)
	_, err = session.CreateDomain(ctx, "other", "Other", "")
	require.NoError(t, err)

	_, err = session.SelectDomain(ctx, "other")
	require.NoError(t, err)
	target, err := session.StoreMemory(ctx, "target note")
	require.NoError(t, err)
	_, err = session.SelectDomain(ctx, "proj")
	require.NoError(t, err)

	store.failLoads = 1
	_, err = session.SelectDomain(ctx, "other")
	require.ErrorIs(t, err, memgraph.ErrStorageFailure)
	assert.Equal(t, "other", session.CurrentDomain(), "failed load leaves the session on the target")

	// The invalid cache is reloaded on the next read.
	result, err := session.RecallMemories(ctx, &recall.Request{Strategy: recall.StrategyRecent})
	require.NoError(t, err)
	require.Len(t, result.Memories, 1)
	assert.Equal(t, target.ID, result.Memories[0].ID)
}

func TestSession_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	config := &memgraph.Config{
		Storage: memgraph.StorageConfig{
			Provider: "file",
			Config:   map[string]interface{}{"data_dir": dir},
		},
	}
	ctx := context.Background()

	session, err := memgraph.NewSession(config)
	require.NoError(t, err)
	_, err = session.CreateDomain(ctx, "proj", "Project", "")
	require.NoError(t, err)
	memory, err := session.StoreMemory(ctx, "durable note")
	require.NoError(t, err)
	require.NoError(t, session.Close())

	reopened, err := memgraph.NewSession(config)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, "proj", reopened.CurrentDomain(), "persistence state survives restart")
	got, err := reopened.GetMemory(ctx, memory.ID)
	require.NoError(t, err)
	assert.Equal(t, "durable note", got.Content)
}
