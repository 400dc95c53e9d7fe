package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/collabtext/collabtext/internal/document"
	"github.com/collabtext/collabtext/internal/document/repository"
	"github.com/collabtext/collabtext/internal/models"
	"github.com/collabtext/collabtext/internal/relay"
	"github.com/collabtext/collabtext/internal/storage"
	"github.com/collabtext/collabtext/internal/users"
	"github.com/collabtext/collabtext/pkg/logger"
	"github.com/collabtext/collabtext/pkg/metrics"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidName  = errors.New("document name must not be empty")
)

// Service defines the document business operations used by the REST handler and the gateway.
type Service interface {
	Create(ctx context.Context, name string, creatorID int64) (*document.Document, error)
	Get(ctx context.Context, id int64) (*document.Update, error)
	List(ctx context.Context) ([]*document.Document, error)
	UpdateContent(ctx context.Context, upd document.Update) (*document.Update, error)
	Rename(ctx context.Context, req document.RenameRequest) error
	Delete(ctx context.Context, id int64) (*document.Document, error)
	Download(ctx context.Context, id int64) ([]byte, error)
}

// UserLookup resolves creators. *users.Service satisfies it.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type documentService struct {
	repo   repository.Repository
	bodies storage.BodyStore
	users  UserLookup
	pub    relay.Publisher
}

// New wires a Service. Records and bodies are written in two steps without a
// shared transaction; a failure in between is returned as-is.
func New(repo repository.Repository, bodies storage.BodyStore, u UserLookup, pub relay.Publisher) Service {
	return &documentService{repo: repo, bodies: bodies, users: u, pub: pub}
}

func observe(op string, err error) {
	metrics.DocumentOps.WithLabelValues(op, metrics.Result(err)).Inc()
}

func (s *documentService) getRecord(ctx context.Context, id int64) (*document.Document, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("document %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return d, nil
}

func (s *documentService) creator(ctx context.Context, id int64) (*models.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, fmt.Errorf("user %d: %w", id, ErrUserNotFound)
		}
		return nil, err
	}
	return u, nil
}

// creatorName tolerates a creator that vanished; the snapshot then carries "".
func (s *documentService) creatorName(ctx context.Context, id int64) string {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		logger.Warnf("document: creator %d lookup: %v", id, err)
		return ""
	}
	return u.Username
}

func (s *documentService) publish(ctx context.Context, topic string, payload any) {
	if err := s.pub.Publish(ctx, topic, payload); err != nil {
		logger.Errorf("document: publish %s: %v", topic, err)
	}
}

func (s *documentService) Create(ctx context.Context, name string, creatorID int64) (d *document.Document, err error) {
	defer func() { observe("create", err) }()

	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidName
	}
	u, err := s.creator(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	d = &document.Document{Name: name, CreatorID: u.ID}
	if _, err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}
	if err := s.bodies.Save(ctx, d.ID, ""); err != nil {
		return nil, fmt.Errorf("save document content: %w", err)
	}
	d.Creator = u

	logger.WithFields(logger.Fields{"doc": d.ID, "user": u.Username}).Infof("document created")
	s.publish(ctx, document.TopicNew, d)
	return d, nil
}

func (s *documentService) Get(ctx context.Context, id int64) (upd *document.Update, err error) {
	defer func() { observe("get", err) }()

	d, err := s.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	content, err := s.bodies.Load(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("document %d body: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &document.Update{ID: d.ID, Name: d.Name, Content: content, Creator: s.creatorName(ctx, d.CreatorID)}, nil
}

func (s *documentService) List(ctx context.Context) (out []*document.Document, err error) {
	defer func() { observe("list", err) }()

	out, err = s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]*models.User)
	for _, d := range out {
		u, ok := seen[d.CreatorID]
		if !ok {
			u, err = s.users.GetByID(ctx, d.CreatorID)
			if err != nil && !errors.Is(err, users.ErrNotFound) {
				return nil, err
			}
			seen[d.CreatorID] = u
		}
		d.Creator = u
	}
	return out, nil
}

func (s *documentService) UpdateContent(ctx context.Context, in document.Update) (upd *document.Update, err error) {
	defer func() { observe("update", err) }()

	d, err := s.getRecord(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if err := s.bodies.Save(ctx, d.ID, in.Content); err != nil {
		return nil, fmt.Errorf("save document content: %w", err)
	}
	upd = &document.Update{ID: d.ID, Name: d.Name, Content: in.Content, Creator: s.creatorName(ctx, d.CreatorID)}
	s.publish(ctx, document.UpdatesTopic(d.ID), upd)
	return upd, nil
}

func (s *documentService) Rename(ctx context.Context, req document.RenameRequest) (err error) {
	defer func() { observe("rename", err) }()

	if strings.TrimSpace(req.NewName) == "" {
		return ErrInvalidName
	}
	if err := s.repo.Rename(ctx, req.ID, req.NewName); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("document %d: %w", req.ID, ErrNotFound)
		}
		return err
	}
	s.publish(ctx, document.TopicRename, req)
	return nil
}

func (s *documentService) Delete(ctx context.Context, id int64) (d *document.Document, err error) {
	defer func() { observe("delete", err) }()

	d, err = s.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.bodies.Delete(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("delete document content: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("document %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	if u, uerr := s.users.GetByID(ctx, d.CreatorID); uerr == nil {
		d.Creator = u
	}

	logger.WithFields(logger.Fields{"doc": id}).Infof("document deleted")
	s.publish(ctx, document.TopicDelete, d)
	return d, nil
}

func (s *documentService) Download(ctx context.Context, id int64) (b []byte, err error) {
	defer func() { observe("download", err) }()

	if _, err := s.getRecord(ctx, id); err != nil {
		return nil, err
	}
	content, err := s.bodies.Load(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("document %d body: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return []byte(content), nil
}
