// Package file provides the file-based storage backend.
//
// Data lives in a directory as plain JSON: domains.json holds the domain
// map, persistence.json the installation state, and memories/<domainId>.json
// the node map and edge set of each domain. The backend assumes a single
// writer process and serializes all reads and writes against one mutex;
// no external file locking is provided.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/memgraph-go/memgraph/pkg/storage"
)

const (
	domainsFile     = "domains.json"
	persistenceFile = "persistence.json"
	memoriesDir     = "memories"
)

// Store implements storage.Store on top of a JSON file layout.
type Store struct {
	// dir is the root data directory.
	dir string

	// mu serializes every operation; partial-write corruption is
	// prevented by writing a temp file and renaming over the target.
	mu sync.Mutex
}

// Config contains configuration for creating a file Store.
type Config struct {
	// DataDir is the root directory holding domains.json,
	// persistence.json, and memories/.
	DataDir string
}

// NewStore creates a new file-based store rooted at cfg.DataDir.
//
// The directory is created if it does not exist.
func NewStore(cfg *Config) (*Store, error) {
	if cfg == nil || cfg.DataDir == "" {
		return nil, fmt.Errorf("NewFileStore: data_dir required: %w", storage.ErrInvalidArgument)
	}
	if err := os.MkdirAll(filepath.Join(cfg.DataDir, memoriesDir), 0755); err != nil {
		return nil, fmt.Errorf("NewFileStore: %v: %w", err, storage.ErrStorageFailure)
	}
	return &Store{dir: cfg.DataDir}, nil
}

// memoryFile is the on-disk shape of memories/<domainId>.json.
type memoryFile struct {
	Nodes map[string]*storage.MemoryNode `json:"nodes"`
	Edges []storage.GraphEdge            `json:"edges"`
}

// Initialize creates the data layout if missing.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Join(s.dir, memoriesDir), 0755); err != nil {
		return fmt.Errorf("Initialize: %v: %w", err, storage.ErrStorageFailure)
	}
	if _, err := os.Stat(filepath.Join(s.dir, domainsFile)); os.IsNotExist(err) {
		if err := s.writeJSON(domainsFile, map[string]*storage.Domain{}); err != nil {
			return err
		}
	}
	return nil
}

// GetDomains returns all domains keyed by ID.
func (s *Store) GetDomains(ctx context.Context) (map[string]*storage.Domain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readDomains()
}

// SaveDomains replaces the domain map.
func (s *Store) SaveDomains(ctx context.Context, domains map[string]*storage.Domain) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(domainsFile, domains)
}

// CreateDomain persists a new domain.
// Returns storage.ErrConflict if the ID already exists.
func (s *Store) CreateDomain(ctx context.Context, domain *storage.Domain) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	domains, err := s.readDomains()
	if err != nil {
		return err
	}
	if _, ok := domains[domain.ID]; ok {
		return fmt.Errorf("CreateDomain: %q: %w", domain.ID, storage.ErrConflict)
	}
	domains[domain.ID] = domain
	return s.writeJSON(domainsFile, domains)
}

// GetPersistenceState returns the installation state, or a zero state if
// none has been saved yet.
func (s *Store) GetPersistenceState(ctx context.Context) (*storage.PersistenceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var state storage.PersistenceState
	err := s.readJSON(persistenceFile, &state)
	if os.IsNotExist(err) {
		return &storage.PersistenceState{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// SavePersistenceState replaces the installation state.
func (s *Store) SavePersistenceState(ctx context.Context, state *storage.PersistenceState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(persistenceFile, state)
}

// GetMemories returns the node map and edge set of one domain.
// A domain with no memory file yet yields an empty snapshot.
func (s *Store) GetMemories(ctx context.Context, domain string) (map[string]*storage.MemoryNode, []storage.GraphEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readMemories(domain)
}

// SaveMemories replaces the node map and edge set of one domain.
//
// The file is written to a temporary name and renamed into place, so a
// failed save leaves the previous snapshot intact.
func (s *Store) SaveMemories(ctx context.Context, domain string, nodes map[string]*storage.MemoryNode, edges []storage.GraphEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if nodes == nil {
		nodes = map[string]*storage.MemoryNode{}
	}
	if edges == nil {
		edges = []storage.GraphEdge{}
	}
	return s.writeJSON(memoryPath(domain), &memoryFile{Nodes: nodes, Edges: edges})
}

// SearchContent matches the query against node content, path, and tags.
//
// The file backend has no persistent index; it scans the relevant domain
// files and scores matches with the shared scorer, which keeps ranking
// identical to the relational backends.
func (s *Store) SearchContent(ctx context.Context, query string, opts *storage.SearchOptions) ([]*storage.SearchHit, error) {
	if opts == nil {
		opts = &storage.SearchOptions{}
	}
	mode := opts.Mode
	if mode == "" {
		mode = storage.MatchKeyword
	}

	terms := storage.Tokenize(query)
	if mode != storage.MatchRegex && len(terms) == 0 {
		return nil, fmt.Errorf("SearchContent: empty query: %w", storage.ErrInvalidArgument)
	}
	var re *regexp.Regexp
	if mode == storage.MatchRegex {
		compiled, err := storage.CompileQueryRegex(query)
		if err != nil {
			return nil, fmt.Errorf("SearchContent: %q: %w", query, err)
		}
		re = compiled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	domains, err := s.searchDomains(opts.Domain)
	if err != nil {
		return nil, err
	}

	var hits []*storage.SearchHit
	for _, domain := range domains {
		nodes, _, err := s.readMemories(domain)
		if err != nil {
			return nil, err
		}
		for _, node := range nodes {
			text := storage.IndexText(node)
			switch mode {
			case storage.MatchKeyword:
				if score := storage.ScoreContent(text, terms); score > 0 {
					hits = append(hits, &storage.SearchHit{Domain: domain, Node: node, Score: score})
				}
			case storage.MatchFuzzy:
				if storage.MatchFuzzyText(text, terms, storage.DefaultFuzzyDistance) {
					score := storage.ScoreContent(text, terms)
					if score == 0 {
						score = 0.1 // fuzzy-only match, no exact term hit
					}
					hits = append(hits, &storage.SearchHit{Domain: domain, Node: node, Score: score})
				}
			case storage.MatchRegex:
				if re.MatchString(text) {
					hits = append(hits, &storage.SearchHit{Domain: domain, Node: node, Score: 1})
				}
			default:
				return nil, fmt.Errorf("SearchContent: unknown mode %q: %w", mode, storage.ErrInvalidArgument)
			}
		}
	}

	return storage.SortHits(hits, opts.MaxResults), nil
}

// FindReferencesTo scans every domain file for references at the node.
func (s *Store) FindReferencesTo(ctx context.Context, domain, nodeID string) ([]storage.RefLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owners, err := s.searchDomains("")
	if err != nil {
		return nil, err
	}

	var refs []storage.RefLocation
	for _, owner := range owners {
		nodes, _, err := s.readMemories(owner)
		if err != nil {
			return nil, err
		}
		for _, node := range nodes {
			for _, ref := range node.DomainRefs {
				// Entry-point refs (no target node) re-resolve and are
				// never dangling, so only explicit node refs match.
				if ref.TargetDomain != domain || ref.TargetNodeID != nodeID {
					continue
				}
				refs = append(refs, storage.RefLocation{Domain: owner, NodeID: node.ID, Ref: ref})
			}
		}
	}
	return refs, nil
}

// Close is a no-op for the file backend.
func (s *Store) Close() error {
	return nil
}

// searchDomains lists the domains to scan: the one requested, or every
// domain that has a memory file.
func (s *Store) searchDomains(only string) ([]string, error) {
	if only != "" {
		return []string{only}, nil
	}

	entries, err := os.ReadDir(filepath.Join(s.dir, memoriesDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("searchDomains: %v: %w", err, storage.ErrStorageFailure)
	}

	var domains []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		domains = append(domains, strings.TrimSuffix(name, ".json"))
	}
	return domains, nil
}

func (s *Store) readDomains() (map[string]*storage.Domain, error) {
	domains := map[string]*storage.Domain{}
	err := s.readJSON(domainsFile, &domains)
	if os.IsNotExist(err) {
		return domains, nil
	}
	if err != nil {
		return nil, err
	}
	return domains, nil
}

func (s *Store) readMemories(domain string) (map[string]*storage.MemoryNode, []storage.GraphEdge, error) {
	var mf memoryFile
	err := s.readJSON(memoryPath(domain), &mf)
	if os.IsNotExist(err) {
		return map[string]*storage.MemoryNode{}, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if mf.Nodes == nil {
		mf.Nodes = map[string]*storage.MemoryNode{}
	}
	return mf.Nodes, mf.Edges, nil
}

// readJSON decodes one file. Missing files surface as os.IsNotExist so
// callers can substitute defaults.
func (s *Store) readJSON(name string, v interface{}) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return err
		}
		return fmt.Errorf("readJSON %s: %v: %w", name, err, storage.ErrStorageFailure)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("readJSON %s: %v: %w", name, err, storage.ErrStorageFailure)
	}
	return nil
}

// writeJSON writes a temp file in the target directory and renames it
// over the destination, so readers never observe a partial write.
func (s *Store) writeJSON(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("writeJSON %s: %v: %w", name, err, storage.ErrStorageFailure)
	}

	target := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(name)+".tmp*")
	if err != nil {
		return fmt.Errorf("writeJSON %s: %v: %w", name, err, storage.ErrStorageFailure)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writeJSON %s: %v: %w", name, err, storage.ErrStorageFailure)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("writeJSON %s: %v: %w", name, err, storage.ErrStorageFailure)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("writeJSON %s: %v: %w", name, err, storage.ErrStorageFailure)
	}
	return nil
}

func memoryPath(domain string) string {
	return filepath.Join(memoriesDir, domain+".json")
}
