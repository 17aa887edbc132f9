// Package bot is the composition root: it owns the global path, the
// middleware registry, dialogues, the user directory, the message bus,
// and the configured adapters, and exposes the receive/serve/dispatch
// entries the adapters call into.
package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mullbot/mull/pkg/adapter"
	"github.com/mullbot/mull/pkg/bus"
	"github.com/mullbot/mull/pkg/chat"
	"github.com/mullbot/mull/pkg/config"
	"github.com/mullbot/mull/pkg/events"
	"github.com/mullbot/mull/pkg/logger"
	"github.com/mullbot/mull/pkg/nlu"
	"github.com/mullbot/mull/pkg/thought"
)

// Bot assembles the runtime. Configure before Start; branch and
// middleware registration from callbacks during a receive is permitted
// but not atomic across stages.
type Bot struct {
	cfg config.Config

	// Path is the global branch set processed outside dialogues.
	Path *thought.Path

	// Middlewares holds the named stage pipelines.
	Middlewares *thought.Registry

	// Dialogues is the per-audience path registry.
	Dialogues *thought.Dialogues

	// Directory deduplicates users and rooms.
	Directory *chat.Directory

	// Emitter dispatches runtime events.
	Emitter *events.Emitter

	// Bus fans traffic out to taps (webhook, analytics).
	Bus *bus.MessageBus

	messages adapter.Message
	storage  adapter.Storage
	language adapter.NLU

	brain   map[string]interface{}
	brainMu sync.RWMutex

	cancelSave context.CancelFunc
	saveWG     sync.WaitGroup
}

// New creates a bot from configuration and applies the log level.
func New(cfg config.Config) *Bot {
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	b := &Bot{
		cfg:         cfg,
		Path:        thought.NewPath(),
		Middlewares: thought.NewRegistry(),
		Dialogues:   thought.NewDialogues(),
		Directory:   chat.NewDirectory(),
		Emitter:     events.NewEmitter(),
		Bus:         bus.New(),
		brain:       make(map[string]interface{}),
	}
	// Runtime events and dispatched envelopes flow onto the bus for taps.
	b.Emitter.OnAll(func(ev events.Event) {
		b.Bus.PublishEvent(ev)
	})
	b.Emitter.On(events.EnvelopeDispatched, func(ev events.Event) {
		if envelope, ok := ev.Data.(*chat.Envelope); ok {
			b.Bus.PublishOutbound(envelope)
		}
	})
	return b
}

// Config returns the bot configuration.
func (b *Bot) Config() config.Config { return b.cfg }

// UseMessages installs the message adapter.
func (b *Bot) UseMessages(a adapter.Message) { b.messages = a }

// UseStorage installs the storage adapter.
func (b *Bot) UseStorage(a adapter.Storage) { b.storage = a }

// UseNLU installs the language-understanding adapter.
func (b *Bot) UseNLU(a adapter.NLU) { b.language = a }

func (b *Bot) deps() thought.Deps {
	return thought.Deps{
		Name:         b.cfg.Name,
		Messages:     b.messages,
		Storage:      b.storage,
		NLU:          b.language,
		Emitter:      b.Emitter,
		Registry:     b.Middlewares,
		Dialogues:    b.Dialogues,
		Directory:    b.Directory,
		GlobalPath:   b.Path,
		NLUMinLength: b.cfg.NLUMinLength,
	}
}

// ---------------------------------------------------------------------------
// Pipeline entries
// ---------------------------------------------------------------------------

// Receive runs the receive sequence for an inbound message. An optional
// path overrides the global and dialogue paths.
func (b *Bot) Receive(ctx context.Context, msg chat.Message, paths ...*thought.Path) (*thought.State, error) {
	b.Emitter.Emit(events.New(events.MessageReceived, b.cfg.Name, msg))
	b.Bus.PublishInbound(msg)
	return b.run(ctx, thought.NewState(msg), thought.SequenceReceive, paths)
}

// Serve runs the serve sequence for a server message.
func (b *Bot) Serve(ctx context.Context, msg chat.Message, paths ...*thought.Path) (*thought.State, error) {
	b.Emitter.Emit(events.New(events.MessageReceived, b.cfg.Name, msg))
	b.Bus.PublishInbound(msg)
	return b.run(ctx, thought.NewState(msg), thought.SequenceServe, paths)
}

// Dispatch runs the dispatch sequence for an unprompted outbound envelope.
func (b *Bot) Dispatch(ctx context.Context, envelope *chat.Envelope) (*thought.State, error) {
	return b.run(ctx, thought.NewDispatchState(envelope), thought.SequenceDispatch, nil)
}

// Respond runs the respond sequence on an existing state.
func (b *Bot) Respond(ctx context.Context, st *thought.State) error {
	tt, err := thought.NewThoughts(b.deps(), st, nil)
	if err != nil {
		return err
	}
	return tt.Start(ctx, thought.SequenceRespond)
}

func (b *Bot) run(ctx context.Context, st *thought.State, sequence string, paths []*thought.Path) (*thought.State, error) {
	var path *thought.Path
	if len(paths) > 0 {
		path = paths[0]
	}
	tt, err := thought.NewThoughts(b.deps(), st, path)
	if err != nil {
		return st, err
	}
	if err := tt.Start(ctx, sequence); err != nil {
		return st, err
	}
	return st, nil
}

// ---------------------------------------------------------------------------
// Registration helpers — the user-facing surface
// ---------------------------------------------------------------------------

// Middleware registers a piece on a named stage pipeline.
func (b *Bot) Middleware(stage string, p thought.Piece) error {
	return b.Middlewares.Register(stage, p)
}

// Text installs a global regex listen branch.
func (b *Bot) Text(pattern string, cb thought.Callback, opts ...thought.BranchOption) (*thought.Branch, error) {
	return b.Path.Text(pattern, cb, opts...)
}

// Capture installs a global listen branch extracting after/before fragments.
func (b *Bot) Capture(after, before string, cb thought.Callback, opts ...thought.BranchOption) *thought.Branch {
	return b.Path.Capture(after, before, cb, opts...)
}

// Custom installs a global listen branch with a user predicate.
func (b *Bot) Custom(fn thought.CustomMatcher, cb thought.Callback, opts ...thought.BranchOption) *thought.Branch {
	return b.Path.Custom(fn, cb, opts...)
}

// NLU installs a global understand branch.
func (b *Bot) NLU(section string, c nlu.Criteria, cb thought.Callback, opts ...thought.BranchOption) *thought.Branch {
	return b.Path.NLU(section, c, cb, opts...)
}

// Server installs a global serve branch.
func (b *Bot) Server(data map[string]interface{}, cb thought.Callback, opts ...thought.BranchOption) *thought.Branch {
	return b.Path.Server(data, cb, opts...)
}

// CatchAll installs a global act branch.
func (b *Bot) CatchAll(cb thought.Callback, opts ...thought.BranchOption) *thought.Branch {
	return b.Path.CatchAll(cb, opts...)
}

// Dialogue opens (or rejoins) a dialogue for the state's audience. The
// opened event fires only when a dialogue is newly created.
func (b *Bot) Dialogue(scope thought.Scope, st *thought.State) *thought.Dialogue {
	d, created := b.Dialogues.Open(scope, st)
	if created {
		b.Emitter.Emit(events.New(events.DialogueOpened, b.cfg.Name, st))
	}
	return d
}

// ---------------------------------------------------------------------------
// Brain — key/value memory persisted under the reserved "memory" sub
// ---------------------------------------------------------------------------

// Set stores a brain value.
func (b *Bot) Set(key string, value interface{}) {
	b.brainMu.Lock()
	defer b.brainMu.Unlock()
	b.brain[key] = value
}

// Get retrieves a brain value.
func (b *Bot) Get(key string) (interface{}, bool) {
	b.brainMu.RLock()
	defer b.brainMu.RUnlock()
	v, ok := b.brain[key]
	return v, ok
}

// Unset removes a brain value.
func (b *Bot) Unset(key string) {
	b.brainMu.Lock()
	defer b.brainMu.Unlock()
	delete(b.brain, key)
}

// SaveMemory persists the brain and the user directory.
func (b *Bot) SaveMemory() error {
	if b.storage == nil {
		return fmt.Errorf("save memory: %w", adapter.ErrAdapterMissing)
	}
	b.brainMu.RLock()
	snapshot := make(map[string]interface{}, len(b.brain))
	for k, v := range b.brain {
		snapshot[k] = v
	}
	b.brainMu.RUnlock()

	data := map[string]interface{}{
		"users": b.Directory.Users(),
		"brain": snapshot,
	}
	if err := b.storage.SaveMemory(data); err != nil {
		return fmt.Errorf("save memory: %w", err)
	}
	b.Emitter.Emit(events.New(events.BotSaved, b.cfg.Name, nil))
	return nil
}

// LoadMemory rehydrates the brain and the user directory from storage.
func (b *Bot) LoadMemory() error {
	if b.storage == nil {
		return fmt.Errorf("load memory: %w", adapter.ErrAdapterMissing)
	}
	data, err := b.storage.LoadMemory()
	if err != nil {
		return fmt.Errorf("load memory: %w", err)
	}
	if raw, ok := data["users"]; ok {
		users, err := rehydrateUsers(raw)
		if err != nil {
			logger.WarnCF("bot", "discarding unreadable users memory", map[string]interface{}{"error": err.Error()})
		} else {
			b.Directory.LoadUsers(users)
		}
	}
	if raw, ok := data["brain"].(map[string]interface{}); ok {
		b.brainMu.Lock()
		for k, v := range raw {
			b.brain[k] = v
		}
		b.brainMu.Unlock()
	}
	return nil
}

// rehydrateUsers converts a persisted users sub back into user records,
// whatever map shape the storage backend returned.
func rehydrateUsers(raw interface{}) (map[string]*chat.User, error) {
	if users, ok := raw.(map[string]*chat.User); ok {
		return users, nil
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	users := make(map[string]*chat.User)
	if err := json.Unmarshal(encoded, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Start brings up storage, loads memory, starts the message adapter, and
// begins auto-saving when configured.
func (b *Bot) Start(ctx context.Context) error {
	logger.InfoCF("bot", "starting", map[string]interface{}{"name": b.cfg.Name})

	if b.storage != nil {
		if err := b.storage.Start(ctx); err != nil {
			return fmt.Errorf("start storage adapter: %w", err)
		}
		if err := b.LoadMemory(); err != nil {
			logger.WarnCF("bot", "memory load failed", map[string]interface{}{"error": err.Error()})
		}
	}
	if b.messages != nil {
		if err := b.messages.Start(ctx); err != nil {
			return fmt.Errorf("start message adapter: %w", err)
		}
	}

	if b.cfg.AutoSave && b.storage != nil {
		interval := time.Duration(b.cfg.AutoSaveSeconds) * time.Second
		if interval <= 0 {
			interval = 5 * time.Second
		}
		saveCtx, cancel := context.WithCancel(context.Background())
		b.cancelSave = cancel
		b.saveWG.Add(1)
		go b.autoSave(saveCtx, interval)
	}

	b.Emitter.Emit(events.New(events.BotStarted, b.cfg.Name, nil))
	return nil
}

func (b *Bot) autoSave(ctx context.Context, interval time.Duration) {
	defer b.saveWG.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := b.SaveMemory(); err != nil {
				logger.ErrorCF("bot", "auto-save failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

// Shutdown stops adapters, persists memory, and closes the bus.
func (b *Bot) Shutdown(ctx context.Context) error {
	if b.cancelSave != nil {
		b.cancelSave()
		b.saveWG.Wait()
	}
	if b.messages != nil {
		if err := b.messages.Shutdown(ctx); err != nil {
			logger.ErrorCF("bot", "message adapter shutdown failed", map[string]interface{}{"error": err.Error()})
		}
	}
	if b.storage != nil {
		if err := b.SaveMemory(); err != nil {
			logger.ErrorCF("bot", "final save failed", map[string]interface{}{"error": err.Error()})
		}
		if err := b.storage.Shutdown(ctx); err != nil {
			logger.ErrorCF("bot", "storage adapter shutdown failed", map[string]interface{}{"error": err.Error()})
		}
	}
	b.Emitter.Emit(events.New(events.BotStopped, b.cfg.Name, nil))
	b.Bus.Close()
	logger.InfoC("bot", "stopped")
	return nil
}
