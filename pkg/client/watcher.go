package client

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dimitrije/raidroom-api/pkg/clock"
	"github.com/dimitrije/raidroom-api/pkg/dto"
	"github.com/google/uuid"
)

const DefaultPollInterval = 3 * time.Second

// Watcher keeps a View of one room converged with the server by polling it,
// and routes the caller's mutations through the same View.
type Watcher struct {
	client   *Client
	roomID   uuid.UUID
	view     *View
	interval time.Duration
	repoll   chan struct{}
	onUpdate func(*dto.RoomSnapshotResponse)
	onError  func(error)
}

type WatcherOption func(*Watcher)

func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// OnUpdate is called with every snapshot the View accepts.
func OnUpdate(fn func(*dto.RoomSnapshotResponse)) WatcherOption {
	return func(w *Watcher) {
		w.onUpdate = fn
	}
}

// OnError is called with every failed poll.
func OnError(fn func(error)) WatcherOption {
	return func(w *Watcher) {
		w.onError = fn
	}
}

func NewWatcher(c *Client, roomID, userID uuid.UUID, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		client:   c,
		roomID:   roomID,
		view:     NewView(userID),
		interval: DefaultPollInterval,
		repoll:   make(chan struct{}, 1),
		onUpdate: func(*dto.RoomSnapshotResponse) {},
		onError:  func(error) {},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Watcher) View() *View {
	return w.view
}

// Poll fetches the room once and applies the result.
func (w *Watcher) Poll(ctx context.Context) error {
	s, err := w.client.GetRoom(ctx, w.roomID)
	if err != nil {
		return err
	}
	w.accept(s, false)
	return nil
}

// Run polls until ctx is done. Failed polls are retried with backoff up to
// the regular interval; an authentication failure stops the loop.
func (w *Watcher) Run(ctx context.Context) error {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = 250 * time.Millisecond
	retry.MaxInterval = w.interval
	retry.MaxElapsedTime = 0

	for {
		delay := w.interval
		if err := w.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.onError(err)
			if errors.Is(err, ErrUnauthorized) {
				return err
			}
			delay = retry.NextBackOff()
		} else {
			retry.Reset()
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-w.repoll:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// Tick calls fn with the locally recomputed countdown on every tick of src,
// until ctx is done or src stops.
func (w *Watcher) Tick(ctx context.Context, src *clock.Source, fn func(clock.Countdown)) {
	ticks, cancel := src.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case now, ok := <-ticks:
			if !ok {
				return
			}
			if cd, ok := w.view.Countdown(now); ok {
				fn(cd)
			}
		}
	}
}

// SetReady shows the new flag immediately and rolls back to the last
// confirmed snapshot if the server rejects it or never answers.
func (w *Watcher) SetReady(ctx context.Context, ready bool) error {
	speculated := w.view.SpeculateReady(ready)
	s, err := w.client.SetReady(ctx, w.roomID, ready, nil)
	if err != nil {
		if speculated {
			w.view.Rollback()
		}
		w.requestRepoll()
		return err
	}
	w.accept(s, true)
	return nil
}

func (w *Watcher) Join(ctx context.Context) error {
	return w.mutate(ctx, w.client.Join)
}

func (w *Watcher) Leave(ctx context.Context) error {
	return w.mutate(ctx, w.client.Leave)
}

func (w *Watcher) Invite(ctx context.Context) error {
	return w.mutate(ctx, w.client.Invite)
}

func (w *Watcher) Cancel(ctx context.Context) error {
	return w.mutate(ctx, w.client.Cancel)
}

func (w *Watcher) Close(ctx context.Context) error {
	return w.mutate(ctx, w.client.Close)
}

func (w *Watcher) Review(ctx context.Context, req dto.ReviewRequest) error {
	return w.mutate(ctx, func(ctx context.Context, roomID uuid.UUID) (*dto.RoomSnapshotResponse, error) {
		return w.client.Review(ctx, roomID, req)
	})
}

// mutate applies the server's answer, or on any failure asks the poll loop
// for an immediate refresh so the View reflects whatever actually happened.
func (w *Watcher) mutate(ctx context.Context, call func(context.Context, uuid.UUID) (*dto.RoomSnapshotResponse, error)) error {
	s, err := call(ctx, w.roomID)
	if err != nil {
		w.requestRepoll()
		return err
	}
	w.accept(s, false)
	return nil
}

func (w *Watcher) accept(s *dto.RoomSnapshotResponse, commit bool) {
	var applied bool
	if commit {
		applied = w.view.Commit(s)
	} else {
		applied = w.view.Apply(s)
	}
	if applied {
		w.onUpdate(w.view.Snapshot())
	}
}

func (w *Watcher) requestRepoll() {
	select {
	case w.repoll <- struct{}{}:
	default:
	}
}
