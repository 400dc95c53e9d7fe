package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/collabtext/collabtext/internal/document"
	"github.com/collabtext/collabtext/internal/document/repository"
	"github.com/collabtext/collabtext/internal/relay"
	"github.com/collabtext/collabtext/internal/storage"
	"github.com/collabtext/collabtext/internal/users"
)

type fixture struct {
	svc    Service
	broker *relay.Broker
	users  *users.Service
	bodies *storage.FileStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	bodies, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	us := users.NewService(users.NewMemoryUserRepository()).WithCost(bcrypt.MinCost)
	b := relay.NewBroker(16)
	return &fixture{
		svc:    New(repository.NewMemoryRepo(), bodies, us, b),
		broker: b,
		users:  us,
		bodies: bodies,
	}
}

func next(t *testing.T, s *relay.Subscription, v any) {
	t.Helper()
	select {
	case m := <-s.C():
		require.NoError(t, json.Unmarshal(m.Payload, v))
	case <-time.After(time.Second):
		t.Fatalf("no message on %s", s.Topic())
	}
}

func TestDocumentLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice, err := f.users.Register(ctx, "alice", "pw")
	require.NoError(t, err)

	newSub := f.broker.Subscribe(document.TopicNew)
	defer newSub.Close()

	d, err := f.svc.Create(ctx, "Notes", alice.ID)
	require.NoError(t, err)
	require.NotZero(t, d.ID)
	require.Equal(t, "alice", d.Creator.Username)

	var created map[string]any
	next(t, newSub, &created)
	require.Equal(t, "Notes", created["name"])

	got, err := f.svc.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, "", got.Content)

	updSub := f.broker.Subscribe(document.UpdatesTopic(d.ID))
	defer updSub.Close()

	upd, err := f.svc.UpdateContent(ctx, document.Update{ID: d.ID, Content: "Hello"})
	require.NoError(t, err)
	require.Equal(t, document.Update{ID: d.ID, Name: "Notes", Content: "Hello", Creator: "alice"}, *upd)

	var published document.Update
	next(t, updSub, &published)
	require.Equal(t, *upd, published)

	got, err = f.svc.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, document.Update{ID: d.ID, Name: "Notes", Content: "Hello", Creator: "alice"}, *got)

	renameSub := f.broker.Subscribe(document.TopicRename)
	defer renameSub.Close()
	require.NoError(t, f.svc.Rename(ctx, document.RenameRequest{ID: d.ID, NewName: "Notes2"}))
	var renamed document.RenameRequest
	next(t, renameSub, &renamed)
	require.Equal(t, "Notes2", renamed.NewName)

	got, err = f.svc.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, "Notes2", got.Name)
	require.Equal(t, "Hello", got.Content)

	b, err := f.svc.Download(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, "Hello", string(b))

	delSub := f.broker.Subscribe(document.TopicDelete)
	defer delSub.Close()
	deleted, err := f.svc.Delete(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, d.ID, deleted.ID)
	var delEvt map[string]any
	next(t, delSub, &delEvt)
	require.Equal(t, float64(d.ID), delEvt["id"])

	_, err = f.svc.Get(ctx, d.ID)
	require.ErrorIs(t, err, ErrNotFound)
	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestCreate_UnknownCreator(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), "Notes", 42)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestCreate_EmptyName(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), "  ", 1)
	require.ErrorIs(t, err, ErrInvalidName)
}

func TestNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Get(ctx, 99)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.UpdateContent(ctx, document.Update{ID: 99, Content: "x"})
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, f.svc.Rename(ctx, document.RenameRequest{ID: 99, NewName: "x"}), ErrNotFound)
	_, err = f.svc.Delete(ctx, 99)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Download(ctx, 99)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGet_MissingBodyIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, err := f.users.Register(ctx, "alice", "pw")
	require.NoError(t, err)
	d, err := f.svc.Create(ctx, "Notes", alice.ID)
	require.NoError(t, err)

	require.NoError(t, f.bodies.Delete(ctx, d.ID))
	_, err = f.svc.Get(ctx, d.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestList_PopulatesCreators(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, err := f.users.Register(ctx, "alice", "pw")
	require.NoError(t, err)
	bob, err := f.users.Register(ctx, "bob", "pw")
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, "A", alice.ID)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, "B", bob.ID)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, "C", alice.ID)
	require.NoError(t, err)

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, "bob", list[1].Creator.Username)
	require.Equal(t, "alice", list[2].Creator.Username)
}

type failingBodies struct{ storage.BodyStore }

func (failingBodies) Save(ctx context.Context, id int64, content string) error {
	return errors.New("disk full")
}

func TestUpdateContent_SaveErrorWrapped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, err := f.users.Register(ctx, "alice", "pw")
	require.NoError(t, err)
	d, err := f.svc.Create(ctx, "Notes", alice.ID)
	require.NoError(t, err)

	repo := repository.NewMemoryRepo()
	_, err = repo.Create(ctx, &document.Document{Name: "Notes", CreatorID: alice.ID})
	require.NoError(t, err)
	svc := New(repo, failingBodies{f.bodies}, f.users, f.broker)

	_, err = svc.UpdateContent(ctx, document.Update{ID: d.ID, Content: "x"})
	require.ErrorContains(t, err, "save document content: disk full")
}
