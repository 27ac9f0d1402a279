package presence

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// CardListener is called with every new frame of a card. Listeners run on
// the reconciler's goroutines and must not mount, switch or unmount the card.
type CardListener func(frame Frame)

type PanicHandler func(card *Card, r any)

type CardOption func(*Card)

func WithCardClock(clock Clock) CardOption {
	return func(card *Card) {
		card.clock = clock
	}
}

func WithCardTickInterval(interval time.Duration) CardOption {
	return func(card *Card) {
		card.tickInterval = interval
	}
}

func WithPanicHandler(panicHandler PanicHandler) CardOption {
	return func(card *Card) {
		card.panicHandler = panicHandler
	}
}

// Card binds a subscriber to a reconciler for the user currently displayed
// and fans projected frames out to its listeners.
type Card struct {
	logger *slog.Logger

	subscriber Subscriber
	display    *DisplayConfig

	clock        Clock
	tickInterval time.Duration
	panicHandler PanicHandler

	// lifecycleMu serialises Mount, SwitchUser and Unmount.
	lifecycleMu  sync.Mutex
	userID       string
	reconciler   *atomic.Pointer[Reconciler]
	subscription Subscription

	Status *atomic.Int32

	listenersMu    sync.RWMutex
	listeners      map[uint64]CardListener
	nextListenerID uint64
}

func NewCard(logger *slog.Logger, subscriber Subscriber, display *DisplayConfig, opts ...CardOption) *Card {
	if display == nil {
		display = NewDisplayConfig()
	}

	card := &Card{
		logger: logger,

		subscriber: subscriber,
		display:    display,

		clock:        SystemClock{},
		tickInterval: DefaultTickInterval,

		reconciler: &atomic.Pointer[Reconciler]{},

		Status: &atomic.Int32{},

		listeners: make(map[uint64]CardListener),
	}

	for _, opt := range opts {
		opt(card)
	}

	return card
}

func (card *Card) SetStatus(status CardStatus) {
	card.Status.Store(int32(status))

	userID := card.userID
	UpdateCardStatus(userID, status)

	card.logger.Info("Card status updated", "status", status.String(), "user_id", userID)
}

func (card *Card) CardStatus() CardStatus {
	return CardStatus(card.Status.Load())
}

func (card *Card) Display() *DisplayConfig {
	return card.display
}

// UserID returns the user currently displayed, or an empty string.
func (card *Card) UserID() string {
	if reconciler := card.reconciler.Load(); reconciler != nil {
		return reconciler.UserID()
	}

	return ""
}

// Mount subscribes the card to a user. Mounting the user already displayed
// is a no-op; mounting another user behaves like SwitchUser.
func (card *Card) Mount(ctx context.Context, userID string) error {
	card.lifecycleMu.Lock()
	defer card.lifecycleMu.Unlock()

	if userID == "" {
		return ErrMissingUserID
	}

	if card.CardStatus() == CardStatusStopped {
		return ErrCardStopped
	}

	if card.userID == userID && card.reconciler.Load() != nil {
		return nil
	}

	card.detachLocked()

	return card.attachLocked(ctx, userID)
}

// SwitchUser tears down the current user's reconciler and subscription
// before subscribing to the new user, so nothing from the old user reaches
// the listeners afterwards.
func (card *Card) SwitchUser(ctx context.Context, userID string) error {
	card.lifecycleMu.Lock()
	defer card.lifecycleMu.Unlock()

	if userID == "" {
		return ErrMissingUserID
	}

	if card.CardStatus() == CardStatusStopped {
		return ErrCardStopped
	}

	card.logger.Info("Switching user", "from", card.userID, "to", userID)

	card.detachLocked()

	return card.attachLocked(ctx, userID)
}

// Unmount stops the card. It cannot be mounted again.
func (card *Card) Unmount() {
	card.lifecycleMu.Lock()
	defer card.lifecycleMu.Unlock()

	if card.CardStatus() == CardStatusStopped {
		return
	}

	card.SetStatus(CardStatusStopping)
	card.detachLocked()
	card.SetStatus(CardStatusStopped)
}

// View returns the current view, or a Loading view when nothing is mounted.
func (card *Card) View() View {
	if reconciler := card.reconciler.Load(); reconciler != nil {
		return reconciler.View()
	}

	return View{
		Now:      card.clock.Now(),
		Playback: InitialPlaybackProgress(),
		State:    ReconcilerStateLoading,
	}
}

func (card *Card) Frame() Frame {
	return Render(card.View(), card.display)
}

func (card *Card) Sections() []Section {
	return Project(card.View(), card.display)
}

// AddListener registers a listener and returns a function that removes it.
func (card *Card) AddListener(listener CardListener) (remove func()) {
	card.listenersMu.Lock()
	card.nextListenerID++
	id := card.nextListenerID
	card.listeners[id] = listener
	card.listenersMu.Unlock()

	return func() {
		card.listenersMu.Lock()
		delete(card.listeners, id)
		card.listenersMu.Unlock()
	}
}

func (card *Card) attachLocked(ctx context.Context, userID string) error {
	card.userID = userID
	card.SetStatus(CardStatusSubscribing)

	var reconciler *Reconciler

	reconciler = NewReconciler(card.logger, userID,
		WithClock(card.clock),
		WithTickInterval(card.tickInterval),
		WithUpdateHandler(func(view View) {
			card.onUpdate(reconciler, view)
		}),
	)

	card.reconciler.Store(reconciler)

	subscription, err := card.subscriber.Subscribe(ctx, userID, func(snapshot *Snapshot) {
		defer card.recoverPanic()

		reconciler.Apply(snapshot)
	})
	if err != nil {
		card.reconciler.Store(nil)
		reconciler.Stop()

		card.SetStatus(CardStatusFailed)

		return fmt.Errorf("failed to subscribe to %s: %w", userID, err)
	}

	card.subscription = subscription
	card.SetStatus(CardStatusSubscribed)

	card.broadcast(Render(reconciler.View(), card.display))

	return nil
}

func (card *Card) detachLocked() {
	if card.subscription != nil {
		card.subscription.Unsubscribe()
		card.subscription = nil
	}

	if reconciler := card.reconciler.Swap(nil); reconciler != nil {
		reconciler.Stop()
	}
}

func (card *Card) onUpdate(reconciler *Reconciler, view View) {
	defer card.recoverPanic()

	// Drop updates from a reconciler that has been switched away from.
	if card.reconciler.Load() != reconciler {
		return
	}

	card.broadcast(Render(view, card.display))
}

func (card *Card) broadcast(frame Frame) {
	card.listenersMu.RLock()
	listeners := make([]CardListener, 0, len(card.listeners))

	for _, listener := range card.listeners {
		listeners = append(listeners, listener)
	}
	card.listenersMu.RUnlock()

	for _, listener := range listeners {
		listener(frame)
	}
}

func (card *Card) recoverPanic() {
	if r := recover(); r != nil {
		card.logger.Error("Recovered from panic", "panic", r)

		if card.panicHandler != nil {
			card.panicHandler(card, r)
		}
	}
}
