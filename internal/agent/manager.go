package agent

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/nathannam/crav-agent/internal/apps"
)

// ErrUnknownApplication is logged when an application key is not registered
var ErrUnknownApplication = errors.New("unknown application key")

// State is the lifecycle state of a Manager
type State int

const (
	Uninitialized State = iota
	Initializing
	Ready
	Failed
)

// String returns the state name
func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Manager owns the single Agent of a process
type Manager struct {
	mu           sync.Mutex
	state        State
	agent        *Agent
	bootstrapped bool

	factory Factory
	lookup  LookupFunc
	resolve func(string) (apps.Descriptor, bool)
	logger  *slog.Logger
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger used for lifecycle and client failures
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithLookup sets the environment source
func WithLookup(lookup LookupFunc) Option {
	return func(m *Manager) {
		if lookup != nil {
			m.lookup = lookup
		}
	}
}

// WithResolver replaces the application registry lookup
func WithResolver(resolve func(string) (apps.Descriptor, bool)) Option {
	return func(m *Manager) {
		if resolve != nil {
			m.resolve = resolve
		}
	}
}

// NewManager creates a manager that builds its client with factory
func NewManager(factory Factory, opts ...Option) *Manager {
	m := &Manager{
		factory: factory,
		lookup:  os.LookupEnv,
		resolve: apps.Resolve,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize returns the process agent, constructing it on first success.
// An empty appKey falls back to the environment default key. Once an agent
// exists it is returned unchanged whatever key is passed. Unknown keys and
// construction failures return nil and leave nothing stored.
func (m *Manager) Initialize(appKey string) *Agent {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Ready {
		return m.agent
	}

	if appKey == "" {
		appKey = apps.DefaultKey(m.lookup)
	}

	desc, ok := m.resolve(appKey)
	if !ok {
		m.logger.Warn("Monitoring disabled: no configuration for application",
			"app_key", appKey,
			"error", ErrUnknownApplication)
		return nil
	}

	m.state = Initializing
	agent, err := m.construct(desc)
	if err != nil {
		m.state = Failed
		m.logger.Error("Failed to initialize monitoring agent",
			"app_key", appKey,
			"app_id", desc.ID,
			"error", err)
		return nil
	}

	m.agent = agent
	m.state = Ready
	m.logger.Info("Monitoring agent initialized",
		"app_id", agent.config.AppID,
		"app_name", agent.config.AppName,
		"category", agent.config.Category.String(),
		"api_url", agent.config.APIURL)
	return agent
}

func (m *Manager) construct(desc apps.Descriptor) (agent *Agent, err error) {
	defer func() {
		if r := recover(); r != nil {
			agent = nil
			err = fmt.Errorf("client constructor panicked: %v", r)
		}
	}()

	if m.factory == nil {
		return nil, errors.New("no monitoring client factory configured")
	}

	cfg, err := LoadConfig(desc, m.lookup)
	if err != nil {
		return nil, err
	}

	client, err := m.factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("constructing monitoring client: %w", err)
	}
	if client == nil {
		return nil, errors.New("constructing monitoring client: factory returned nil")
	}

	return &Agent{client: client, config: cfg, logger: m.logger}, nil
}

// Current returns the agent if one has been built, without initializing
func (m *Manager) Current() *Agent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.agent
}

// State returns the lifecycle state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}
