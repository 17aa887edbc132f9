package thought

import (
	"fmt"
	"sync"
)

// ---------------------------------------------------------------------------
// Middleware — ordered pre/post pipeline around a piece of work
// ---------------------------------------------------------------------------

// Piece is one middleware element. It must either call next (continue) or
// done (complete early, skipping remaining pieces and the terminal), or
// return an error, which unwinds the pipeline to the caller.
type Piece func(s *State, next func(), done func()) error

// Terminal is the work a middleware pipeline wraps. It runs only when
// every piece called next.
type Terminal func(s *State) error

// Middleware is a named, insertion-ordered sequence of pieces. It is
// reentrant across concurrent states but not within one state.
type Middleware struct {
	name  string
	mu    sync.RWMutex
	stack []Piece
}

// NewMiddleware creates an empty named pipeline.
func NewMiddleware(name string) *Middleware {
	return &Middleware{name: name}
}

// Name returns the pipeline's registry name.
func (m *Middleware) Name() string { return m.name }

// Register appends a piece. Execution order is registration order.
func (m *Middleware) Register(p Piece) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stack = append(m.stack, p)
}

// Len returns the number of registered pieces.
func (m *Middleware) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.stack)
}

// Execute runs the chain as an onion: a piece's next invokes the rest of
// the chain and then the terminal, so code after next unwinds in reverse
// registration order once the terminal returns. Execute reports true only
// when every piece called next and the terminal ran without error. A
// piece calling done, or declining to call either, short-circuits: the
// downstream pieces and the terminal are not invoked and Execute returns
// false with a nil error. A piece or terminal error aborts with that
// error.
func (m *Middleware) Execute(s *State, terminal Terminal) (bool, error) {
	m.mu.RLock()
	stack := make([]Piece, len(m.stack))
	copy(stack, m.stack)
	m.mu.RUnlock()

	var terminated, completed bool
	var run func(i int) error
	run = func(i int) error {
		if i == len(stack) {
			if terminal != nil {
				if err := terminal(s); err != nil {
					return err
				}
			}
			terminated = true
			return nil
		}
		var advanced bool
		var downstream error
		err := stack[i](s, func() {
			if advanced {
				return
			}
			advanced = true
			downstream = run(i + 1)
		}, func() { completed = true })
		if err != nil {
			return fmt.Errorf("%s middleware: %w", m.name, err)
		}
		return downstream
	}
	if err := run(0); err != nil {
		return false, err
	}
	return terminated && !completed, nil
}

// ---------------------------------------------------------------------------
// Registry — the named stage pipelines
// ---------------------------------------------------------------------------

// Stage names. Each has its own middleware pipeline and its own slot in
// the thought process.
const (
	StageHear       = "hear"
	StageListen     = "listen"
	StageUnderstand = "understand"
	StageServe      = "serve"
	StageAct        = "act"
	StageRespond    = "respond"
	StageRemember   = "remember"
)

// ThoughtError is a typed error for thought-process configuration.
type ThoughtError string

func (e ThoughtError) Error() string { return string(e) }

// ErrUnknownMiddleware marks a stage name with no registered pipeline.
// Fatal at construction.
const ErrUnknownMiddleware ThoughtError = "no middleware registered for stage name"

// Registry holds the named middleware pipelines users register pieces on.
type Registry struct {
	mu   sync.RWMutex
	sets map[string]*Middleware
}

// NewRegistry creates a registry pre-populated with the seven stage
// pipelines.
func NewRegistry() *Registry {
	r := &Registry{sets: make(map[string]*Middleware)}
	for _, name := range []string{
		StageHear, StageListen, StageUnderstand, StageServe,
		StageAct, StageRespond, StageRemember,
	} {
		r.sets[name] = NewMiddleware(name)
	}
	return r
}

// Register appends a piece to a named pipeline.
func (r *Registry) Register(name string, p Piece) error {
	r.mu.RLock()
	mw, ok := r.sets[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("register %q: %w", name, ErrUnknownMiddleware)
	}
	mw.Register(p)
	return nil
}

// Get returns the pipeline for a stage name.
func (r *Registry) Get(name string) (*Middleware, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mw, ok := r.sets[name]
	return mw, ok
}
