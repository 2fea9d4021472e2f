package agent

import (
	"errors"
	"sync"
	"testing"

	"github.com/nathannam/crav-agent/internal/apps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeIsIdempotent(t *testing.T) {
	factory := &countingFactory{client: &recordingClient{}}
	logger, _ := testLogger()
	m := NewManager(factory.build, WithLogger(logger), WithLookup(envLookup(nil)))

	first := m.Initialize("crav-logo-studio")
	require.NotNil(t, first)

	second := m.Initialize("crav-logo-studio")
	third := m.Initialize("crav-word-quest")
	fourth := m.Initialize("")

	assert.Same(t, first, second)
	assert.Same(t, first, third)
	assert.Same(t, first, fourth)
	assert.Same(t, first, m.Current())
	assert.Equal(t, 1, factory.calls)
	assert.Equal(t, "logo-studio", first.Config().AppID)
	assert.Equal(t, Ready, m.State())
}

func TestInitializeConcurrentCallersShareOneAgent(t *testing.T) {
	factory := &countingFactory{client: &recordingClient{}}
	logger, _ := testLogger()
	m := NewManager(factory.build, WithLogger(logger), WithLookup(envLookup(nil)))

	const callers = 16
	results := make([]*Agent, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = m.Initialize("crav-data-lens")
		}(i)
	}
	wg.Wait()

	for _, a := range results {
		assert.Same(t, results[0], a)
	}
	assert.Equal(t, 1, factory.calls)
}

func TestInitializeUnknownKey(t *testing.T) {
	for _, key := range []string{"", "crav-not-registered"} {
		t.Run("key="+key, func(t *testing.T) {
			factory := &countingFactory{client: &recordingClient{}}
			logger, buf := testLogger()
			m := NewManager(factory.build, WithLogger(logger), WithLookup(envLookup(nil)))

			assert.Nil(t, m.Initialize(key))
			assert.Nil(t, m.Current())
			assert.Equal(t, Uninitialized, m.State())
			assert.Zero(t, factory.calls)
			assert.Contains(t, buf.String(), "level=WARN")
		})
	}
}

func TestInitializeFallsBackToEnvironmentKey(t *testing.T) {
	factory := &countingFactory{client: &recordingClient{}}
	logger, _ := testLogger()
	m := NewManager(factory.build,
		WithLogger(logger),
		WithLookup(envLookup(map[string]string{apps.EnvAppKey: "crav-trivia-arena"})))

	a := m.Initialize("")
	require.NotNil(t, a)
	assert.Equal(t, "trivia-arena", a.Config().AppID)
	assert.Equal(t, "Trivia Arena", a.Config().AppName)
	assert.Equal(t, apps.Gaming, a.Config().Category)
}

func TestInitializeExplicitKeyWinsOverEnvironment(t *testing.T) {
	factory := &countingFactory{client: &recordingClient{}}
	logger, _ := testLogger()
	m := NewManager(factory.build,
		WithLogger(logger),
		WithLookup(envLookup(map[string]string{apps.EnvAppKey: "crav-trivia-arena"})))

	a := m.Initialize("crav-crm-lite")
	require.NotNil(t, a)
	assert.Equal(t, "crm-lite", a.Config().AppID)
}

func TestInitializeConstructionFailureIsRetryable(t *testing.T) {
	factory := &countingFactory{client: &recordingClient{}, err: errors.New("bad endpoint")}
	logger, buf := testLogger()
	m := NewManager(factory.build, WithLogger(logger), WithLookup(envLookup(nil)))

	assert.Nil(t, m.Initialize("crav-logo-studio"))
	assert.Nil(t, m.Current())
	assert.Equal(t, Failed, m.State())
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "bad endpoint")

	factory.err = nil
	a := m.Initialize("crav-logo-studio")
	require.NotNil(t, a)
	assert.Equal(t, Ready, m.State())
	assert.Equal(t, 2, factory.calls)
}

func TestInitializeRecoversConstructorPanic(t *testing.T) {
	logger, buf := testLogger()
	m := NewManager(func(Config) (Client, error) {
		panic("constructor blew up")
	}, WithLogger(logger), WithLookup(envLookup(nil)))

	assert.NotPanics(t, func() {
		assert.Nil(t, m.Initialize("crav-logo-studio"))
	})
	assert.Equal(t, Failed, m.State())
	assert.Contains(t, buf.String(), "constructor blew up")
}

func TestInitializeNilFactory(t *testing.T) {
	logger, _ := testLogger()
	m := NewManager(nil, WithLogger(logger), WithLookup(envLookup(nil)))
	assert.Nil(t, m.Initialize("crav-logo-studio"))
	assert.Equal(t, Failed, m.State())
}

func TestInitializeFactoryReturningNil(t *testing.T) {
	logger, _ := testLogger()
	m := NewManager(func(Config) (Client, error) { return nil, nil },
		WithLogger(logger), WithLookup(envLookup(nil)))
	assert.Nil(t, m.Initialize("crav-logo-studio"))
	assert.Equal(t, Failed, m.State())
}

func TestInitializeInvalidEnvironmentIsConstructionFailure(t *testing.T) {
	factory := &countingFactory{client: &recordingClient{}}
	logger, buf := testLogger()
	m := NewManager(factory.build,
		WithLogger(logger),
		WithLookup(envLookup(map[string]string{EnvHealthCheckInterval: "soon"})))

	assert.Nil(t, m.Initialize("crav-logo-studio"))
	assert.Equal(t, Failed, m.State())
	assert.Zero(t, factory.calls)
	assert.Contains(t, buf.String(), EnvHealthCheckInterval)
}

func TestCurrentDoesNotInitialize(t *testing.T) {
	factory := &countingFactory{client: &recordingClient{}}
	m := NewManager(factory.build,
		WithLookup(envLookup(map[string]string{apps.EnvAppKey: "crav-logo-studio"})))

	assert.Nil(t, m.Current())
	assert.Zero(t, factory.calls)
	assert.Equal(t, Uninitialized, m.State())
}

func TestWithResolver(t *testing.T) {
	factory := &countingFactory{client: &recordingClient{}}
	m := NewManager(factory.build,
		WithLookup(envLookup(nil)),
		WithResolver(func(key string) (apps.Descriptor, bool) {
			return apps.Descriptor{ID: "custom", Name: "Custom", Category: apps.Developer}, key == "x"
		}))

	a := m.Initialize("x")
	require.NotNil(t, a)
	assert.Equal(t, "custom", a.Config().AppID)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "uninitialized", Uninitialized.String())
	assert.Equal(t, "initializing", Initializing.String())
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "state(9)", State(9).String())
}
