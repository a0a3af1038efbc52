package fs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LinkRecord is a saved bookmark as stored on disk. Only Owner matters
// to identity migration; everything else is carried through untouched.
type LinkRecord struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	URL       string    `json:"url"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LinkStore stores links as JSON files under dir/links and rewrites
// their owner references during identity migration.
type LinkStore struct {
	Dir string

	mu sync.Mutex
}

func NewLinkStore(dir string) *LinkStore {
	return &LinkStore{Dir: dir}
}

func (s *LinkStore) linkPath(id string) string {
	return filepath.Join(s.Dir, "links", filepath.Base(id)+".json")
}

func (s *LinkStore) SaveLink(ctx context.Context, link *LinkRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	link.UpdatedAt = time.Now()
	if link.CreatedAt.IsZero() {
		link.CreatedAt = link.UpdatedAt
	}

	path := s.linkPath(link.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(link, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomicFile(path, data)
}

// RewriteOwner replaces every link owner equal to oldOwner with newOwner
// and returns the number of links rewritten.
func (s *LinkStore) RewriteOwner(ctx context.Context, oldOwner, newOwner string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.Dir, "links")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	rewritten := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var link LinkRecord
		if err := json.Unmarshal(data, &link); err != nil {
			continue
		}
		if link.Owner != oldOwner {
			continue
		}

		link.Owner = newOwner
		link.UpdatedAt = time.Now()
		out, err := json.MarshalIndent(&link, "", "  ")
		if err != nil {
			return rewritten, err
		}
		if err := writeAtomicFile(path, out); err != nil {
			return rewritten, err
		}
		rewritten++
	}
	return rewritten, nil
}

// LinksByOwner returns the links owned by owner, for tests and tooling.
func (s *LinkStore) LinksByOwner(ctx context.Context, owner string) ([]*LinkRecord, error) {
	dir := filepath.Join(s.Dir, "links")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var links []*LinkRecord
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		var link LinkRecord
		if err := json.Unmarshal(data, &link); err != nil {
			continue
		}
		if link.Owner == owner {
			links = append(links, &link)
		}
	}
	return links, nil
}
