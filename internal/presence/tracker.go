// Package presence tracks which users are viewing which document.
//
// A single goroutine (Run) owns the document -> usernames map; every other
// goroutine talks to it through Add, Remove and ActiveUsers, which send a
// command and wait for the reply. Each change publishes the full resulting
// set to /topic/activeUsers/<id>.
//
// Nothing is persisted: after a restart all sets start empty and are only
// rebuilt by new connect signals. Sets that drop to empty are kept.
package presence

import (
	"context"
	"errors"
	"sort"

	"github.com/collabtext/collabtext/internal/document"
	"github.com/collabtext/collabtext/internal/relay"
	"github.com/collabtext/collabtext/pkg/logger"
	"github.com/collabtext/collabtext/pkg/metrics"
)

var ErrStopped = errors.New("presence tracker stopped")

type op int

const (
	opAdd op = iota
	opRemove
	opList
)

type command struct {
	op    op
	doc   int64
	user  string
	reply chan []string
}

type Tracker struct {
	cmds chan command
	done chan struct{}
	pub  relay.Publisher
}

func NewTracker(pub relay.Publisher) *Tracker {
	return &Tracker{
		cmds: make(chan command),
		done: make(chan struct{}),
		pub:  pub,
	}
}

// Run processes commands until ctx is cancelled. Call it exactly once.
func (t *Tracker) Run(ctx context.Context) {
	defer close(t.done)
	sets := make(map[int64]map[string]struct{})
	total := 0

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-t.cmds:
			set := sets[cmd.doc]
			switch cmd.op {
			case opAdd:
				if set == nil {
					set = make(map[string]struct{})
					sets[cmd.doc] = set
				}
				if _, ok := set[cmd.user]; !ok {
					set[cmd.user] = struct{}{}
					total++
				}
			case opRemove:
				if _, ok := set[cmd.user]; ok {
					delete(set, cmd.user)
					total--
				}
			}
			snap := snapshot(set)
			cmd.reply <- snap

			if cmd.op != opList {
				metrics.PresenceDocuments.Set(float64(len(sets)))
				metrics.PresenceUsers.Set(float64(total))
				if err := t.pub.Publish(ctx, document.ActiveUsersTopic(cmd.doc), snap); err != nil {
					logger.Errorf("presence: publish active users for %d: %v", cmd.doc, err)
				}
			}
		}
	}
}

func snapshot(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for u := range set {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

func (t *Tracker) do(ctx context.Context, cmd command) ([]string, error) {
	cmd.reply = make(chan []string, 1)
	select {
	case t.cmds <- cmd:
	case <-t.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	// Run always replies once it has taken the command
	return <-cmd.reply, nil
}

// Add records username as active on the document. Idempotent.
func (t *Tracker) Add(ctx context.Context, documentID int64, username string) ([]string, error) {
	return t.do(ctx, command{op: opAdd, doc: documentID, user: username})
}

// Remove drops username from the document's set. Removing an absent user is a no-op
// that still publishes the current set.
func (t *Tracker) Remove(ctx context.Context, documentID int64, username string) ([]string, error) {
	return t.do(ctx, command{op: opRemove, doc: documentID, user: username})
}

// ActiveUsers returns the document's current set, sorted.
func (t *Tracker) ActiveUsers(ctx context.Context, documentID int64) ([]string, error) {
	return t.do(ctx, command{op: opList, doc: documentID})
}
