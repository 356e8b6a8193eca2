package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"
	"go.uber.org/zap"

	"github.com/RahulSGosavi/KABS-Annotation-AI/internal/annotation"
)

// CouchbaseConfig holds connection and keyspace details for the couchbase
// provider.
type CouchbaseConfig struct {
	ConnectionString string        `koanf:"connection_string"`
	Username         string        `koanf:"username"`
	Password         string        `koanf:"password"`
	Bucket           string        `koanf:"bucket"`
	Scope            string        `koanf:"scope"`
	Collection       string        `koanf:"collection"`
	ConnectTimeout   time.Duration `koanf:"connect_timeout"`
	OperationTimeout time.Duration `koanf:"operation_timeout"`
}

// CouchbaseStore persists records as JSON documents in one collection,
// keyed by record type. Page annotation blobs map 1:1 onto KV documents,
// which keeps each save a single atomic upsert.
type CouchbaseStore struct {
	cluster    *gocb.Cluster
	collection *gocb.Collection
	cfg        CouchbaseConfig
	logger     *zap.Logger
}

// NewCouchbaseStore connects to the cluster and waits for the bucket to be
// ready.
func NewCouchbaseStore(cfg CouchbaseConfig, logger *zap.Logger) (*CouchbaseStore, error) {
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("couchbase: connection string is required")
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.OperationTimeout == 0 {
		cfg.OperationTimeout = 5 * time.Second
	}
	if cfg.Scope == "" {
		cfg.Scope = "_default"
	}
	if cfg.Collection == "" {
		cfg.Collection = "_default"
	}

	cluster, err := gocb.Connect(cfg.ConnectionString, gocb.ClusterOptions{
		Authenticator: gocb.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		},
		TimeoutsConfig: gocb.TimeoutsConfig{
			ConnectTimeout: cfg.ConnectTimeout,
			KVTimeout:      cfg.OperationTimeout,
			QueryTimeout:   cfg.OperationTimeout,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("couchbase: connect: %w", err)
	}

	bucket := cluster.Bucket(cfg.Bucket)
	if err := bucket.WaitUntilReady(cfg.ConnectTimeout, nil); err != nil {
		return nil, fmt.Errorf("couchbase: bucket %s not ready: %w", cfg.Bucket, err)
	}

	s := &CouchbaseStore{
		cluster:    cluster,
		collection: bucket.Scope(cfg.Scope).Collection(cfg.Collection),
		cfg:        cfg,
		logger:     logger,
	}
	logger.Info("connected to couchbase",
		zap.String("bucket", cfg.Bucket),
		zap.String("scope", cfg.Scope),
		zap.String("collection", cfg.Collection))
	return s, nil
}

// Document keys, one namespace per record type.

func userKey(id string) string { return "user::" + id }

func emailIdxKey(email string) string { return "useremail::" + emailKey(email) }

func sessionKey(token string) string { return "session::" + token }

func projectKey(id string) string { return "project::" + id }

func annotKey(pid string, pg int) string { return fmt.Sprintf("annot::%s::%d", pid, pg) }

// mapErr converts gocb sentinel errors to store sentinels.
func mapErr(err error) error {
	if errors.Is(err, gocb.ErrDocumentNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gocb.ErrDocumentExists) {
		return ErrConflict
	}
	return err
}

func (s *CouchbaseStore) get(key string, v any) error {
	res, err := s.collection.Get(key, &gocb.GetOptions{Timeout: s.cfg.OperationTimeout})
	if err != nil {
		return mapErr(err)
	}
	return res.Content(v)
}

func (s *CouchbaseStore) upsert(key string, v any) error {
	_, err := s.collection.Upsert(key, v, &gocb.UpsertOptions{Timeout: s.cfg.OperationTimeout})
	return mapErr(err)
}

func (s *CouchbaseStore) removeKey(key string) error {
	_, err := s.collection.Remove(key, &gocb.RemoveOptions{Timeout: s.cfg.OperationTimeout})
	if err != nil && !errors.Is(err, gocb.ErrDocumentNotFound) {
		return err
	}
	return nil
}

func (s *CouchbaseStore) CreateUser(ctx context.Context, u *User) error {
	// Insert the email index first; it is the uniqueness guard.
	idx := map[string]string{"user_id": u.ID}
	_, err := s.collection.Insert(emailIdxKey(u.Email), idx,
		&gocb.InsertOptions{Timeout: s.cfg.OperationTimeout})
	if err != nil {
		return mapErr(err)
	}
	if err := s.upsert(userKey(u.ID), u); err != nil {
		// Roll back the index so the email is usable again.
		_ = s.removeKey(emailIdxKey(u.Email))
		return err
	}
	return nil
}

func (s *CouchbaseStore) UserByEmail(ctx context.Context, email string) (*User, error) {
	var idx struct {
		UserID string `json:"user_id"`
	}
	if err := s.get(emailIdxKey(email), &idx); err != nil {
		return nil, err
	}
	return s.UserByID(ctx, idx.UserID)
}

func (s *CouchbaseStore) UserByID(ctx context.Context, id string) (*User, error) {
	var u User
	if err := s.get(userKey(id), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *CouchbaseStore) PutSession(ctx context.Context, sess *Session) error {
	return s.upsert(sessionKey(sess.Token), sess)
}

func (s *CouchbaseStore) Session(ctx context.Context, token string) (*Session, error) {
	var sess Session
	if err := s.get(sessionKey(token), &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *CouchbaseStore) DeleteSession(ctx context.Context, token string) error {
	return s.removeKey(sessionKey(token))
}

func (s *CouchbaseStore) PutProject(ctx context.Context, p *Project) error {
	return s.upsert(projectKey(p.ID), p)
}

func (s *CouchbaseStore) Project(ctx context.Context, id string) (*Project, error) {
	var p Project
	if err := s.get(projectKey(id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *CouchbaseStore) ProjectsByOwner(ctx context.Context, ownerID string) ([]*Project, error) {
	q := fmt.Sprintf(
		"SELECT p.* FROM %s AS p WHERE META(p).id LIKE 'project::%%' AND p.owner_id = $owner ORDER BY p.created_at DESC",
		s.qualifiedKeyspace())
	result, err := s.cluster.Query(q, &gocb.QueryOptions{
		NamedParameters: map[string]interface{}{"owner": ownerID},
		Timeout:         s.cfg.OperationTimeout,
		Context:         ctx,
	})
	if err != nil {
		return nil, fmt.Errorf("couchbase: projects query: %w", err)
	}
	defer result.Close()

	var out []*Project
	for result.Next() {
		var p Project
		if err := result.Row(&p); err != nil {
			s.logger.Warn("skipping undecodable project row", zap.Error(err))
			continue
		}
		out = append(out, &p)
	}
	return out, result.Err()
}

func (s *CouchbaseStore) DeleteProject(ctx context.Context, id string) error {
	return s.removeKey(projectKey(id))
}

func (s *CouchbaseStore) PutPageAnnotations(ctx context.Context, doc *annotation.PageAnnotations) error {
	return s.upsert(annotKey(doc.ProjectID, doc.Page), doc)
}

func (s *CouchbaseStore) PageAnnotations(ctx context.Context, projectID string, page int) (*annotation.PageAnnotations, error) {
	var doc annotation.PageAnnotations
	if err := s.get(annotKey(projectID, page), &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *CouchbaseStore) DeletePageAnnotations(ctx context.Context, projectID string, page int) error {
	return s.removeKey(annotKey(projectID, page))
}

func (s *CouchbaseStore) DeleteProjectAnnotations(ctx context.Context, projectID string) error {
	q := fmt.Sprintf(
		"DELETE FROM %s AS a WHERE META(a).id LIKE $prefix",
		s.qualifiedKeyspace())
	result, err := s.cluster.Query(q, &gocb.QueryOptions{
		NamedParameters: map[string]interface{}{"prefix": "annot::" + projectID + "::%"},
		Timeout:         s.cfg.OperationTimeout,
		Context:         ctx,
	})
	if err != nil {
		return fmt.Errorf("couchbase: delete annotations: %w", err)
	}
	return result.Close()
}

// qualifiedKeyspace returns `bucket`.`scope`.`collection` for SQL++.
func (s *CouchbaseStore) qualifiedKeyspace() string {
	return fmt.Sprintf("`%s`.`%s`.`%s`", s.cfg.Bucket, s.cfg.Scope, s.cfg.Collection)
}

func (s *CouchbaseStore) Close() error {
	return s.cluster.Close(nil)
}
