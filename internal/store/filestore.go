package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/RahulSGosavi/KABS-Annotation-AI/internal/annotation"
)

// FileStore is the embedded provider: one JSON file per record under a root
// directory. Writes go through a temp file and rename so a crash never
// leaves a torn document. Suitable for the single-user deployments the
// editor targets.
type FileStore struct {
	root   string
	logger *zap.Logger

	// Serializes multi-file operations (email index + user record).
	mu sync.Mutex
}

// NewFileStore creates the directory layout under root.
func NewFileStore(root string, logger *zap.Logger) (*FileStore, error) {
	if root == "" {
		return nil, fmt.Errorf("filestore: root path is required")
	}
	for _, dir := range []string{"users", "users_by_email", "sessions", "projects", "annotations"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o700); err != nil {
			return nil, fmt.Errorf("filestore: create %s: %w", dir, err)
		}
	}
	return &FileStore{root: root, logger: logger}, nil
}

// writeJSON atomically writes v as JSON to path.
func (f *FileStore) writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("filestore: marshal: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("filestore: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("filestore: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("filestore: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filestore: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("filestore: rename: %w", err)
	}
	return nil
}

// readJSON reads path into v, mapping missing files to ErrNotFound.
func (f *FileStore) readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("filestore: read: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("filestore: decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (f *FileStore) remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("filestore: remove: %w", err)
	}
	return nil
}

// emailKey makes an email filename-safe.
func emailKey(email string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strings.ToLower(email)))
}

func (f *FileStore) userPath(id string) string {
	return filepath.Join(f.root, "users", id+".json")
}

func (f *FileStore) emailIndexPath(email string) string {
	return filepath.Join(f.root, "users_by_email", emailKey(email)+".json")
}

func (f *FileStore) sessionPath(token string) string {
	// Tokens are client-supplied; encode them so they can never traverse
	// out of the sessions directory.
	key := base64.RawURLEncoding.EncodeToString([]byte(token))
	return filepath.Join(f.root, "sessions", key+".json")
}

func (f *FileStore) projectPath(id string) string {
	return filepath.Join(f.root, "projects", id+".json")
}

func (f *FileStore) annotationPath(projectID string, page int) string {
	return filepath.Join(f.root, "annotations", fmt.Sprintf("%s_p%04d.json", projectID, page))
}

func (f *FileStore) CreateUser(ctx context.Context, u *User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := os.Stat(f.emailIndexPath(u.Email)); err == nil {
		return ErrConflict
	}
	if err := f.writeJSON(f.userPath(u.ID), u); err != nil {
		return err
	}
	idx := struct {
		UserID string `json:"user_id"`
	}{UserID: u.ID}
	if err := f.writeJSON(f.emailIndexPath(u.Email), idx); err != nil {
		return err
	}
	f.logger.Debug("created user", zap.String("user_id", u.ID))
	return nil
}

func (f *FileStore) UserByEmail(ctx context.Context, email string) (*User, error) {
	var idx struct {
		UserID string `json:"user_id"`
	}
	if err := f.readJSON(f.emailIndexPath(email), &idx); err != nil {
		return nil, err
	}
	return f.UserByID(ctx, idx.UserID)
}

func (f *FileStore) UserByID(ctx context.Context, id string) (*User, error) {
	var u User
	if err := f.readJSON(f.userPath(id), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (f *FileStore) PutSession(ctx context.Context, s *Session) error {
	return f.writeJSON(f.sessionPath(s.Token), s)
}

func (f *FileStore) Session(ctx context.Context, token string) (*Session, error) {
	var s Session
	if err := f.readJSON(f.sessionPath(token), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (f *FileStore) DeleteSession(ctx context.Context, token string) error {
	return f.remove(f.sessionPath(token))
}

func (f *FileStore) PutProject(ctx context.Context, p *Project) error {
	return f.writeJSON(f.projectPath(p.ID), p)
}

func (f *FileStore) Project(ctx context.Context, id string) (*Project, error) {
	var p Project
	if err := f.readJSON(f.projectPath(id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (f *FileStore) ProjectsByOwner(ctx context.Context, ownerID string) ([]*Project, error) {
	entries, err := os.ReadDir(filepath.Join(f.root, "projects"))
	if err != nil {
		return nil, fmt.Errorf("filestore: list projects: %w", err)
	}
	var out []*Project
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		var p Project
		if err := f.readJSON(filepath.Join(f.root, "projects", e.Name()), &p); err != nil {
			f.logger.Warn("skipping unreadable project file",
				zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		if p.OwnerID == ownerID {
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (f *FileStore) DeleteProject(ctx context.Context, id string) error {
	return f.remove(f.projectPath(id))
}

func (f *FileStore) PutPageAnnotations(ctx context.Context, doc *annotation.PageAnnotations) error {
	return f.writeJSON(f.annotationPath(doc.ProjectID, doc.Page), doc)
}

func (f *FileStore) PageAnnotations(ctx context.Context, projectID string, page int) (*annotation.PageAnnotations, error) {
	var doc annotation.PageAnnotations
	if err := f.readJSON(f.annotationPath(projectID, page), &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (f *FileStore) DeletePageAnnotations(ctx context.Context, projectID string, page int) error {
	return f.remove(f.annotationPath(projectID, page))
}

func (f *FileStore) DeleteProjectAnnotations(ctx context.Context, projectID string) error {
	dir := filepath.Join(f.root, "annotations")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("filestore: list annotations: %w", err)
	}
	prefix := projectID + "_p"
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) {
			if err := f.remove(filepath.Join(dir, e.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *FileStore) Close() error { return nil }
