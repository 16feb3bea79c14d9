package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ynotnauk/go-convex/entities"
)

func recordingHandler(calls *[]string, name string, err error) entities.MethodHandler {
	return func(ctx context.Context, message *entities.IrcMessage) error {
		*calls = append(*calls, name)
		return err
	}
}

func TestRegisterRejectsNil(t *testing.T) {
	engine := New(nil)
	assert.ErrorIs(t, engine.Register(nil), ErrNilRegistration)
	assert.ErrorIs(t, engine.Register(&entities.MethodRegistration{Command: "PRIVMSG"}), ErrNilHandler)
}

func TestHandlersRunInOrderEvenAfterFailure(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	engine := New(zap.New(core))
	var calls []string
	require.NoError(t, engine.Register(&entities.MethodRegistration{
		Command: "PRIVMSG",
		Handler: recordingHandler(&calls, "first", errors.New("first failed")),
	}))
	require.NoError(t, engine.Register(&entities.MethodRegistration{
		Command: "PRIVMSG",
		Handler: func(ctx context.Context, message *entities.IrcMessage) error {
			calls = append(calls, "second")
			panic("second panicked")
		},
	}))
	require.NoError(t, engine.Register(&entities.MethodRegistration{
		Command: "PRIVMSG",
		Handler: recordingHandler(&calls, "third", nil),
	}))
	err := engine.Invoke(context.Background(), &entities.IrcMessage{Command: "PRIVMSG"})
	assert.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, calls)
	assert.Equal(t, 1, logs.FilterMessage("Handler failed").Len())
}

func TestDefaultGroupRunsFirst(t *testing.T) {
	engine := New(nil)
	var calls []string
	require.NoError(t, engine.Register(&entities.MethodRegistration{
		Command: "JOIN",
		Handler: recordingHandler(&calls, "join", nil),
	}))
	require.NoError(t, engine.Register(&entities.MethodRegistration{
		Handler: recordingHandler(&calls, "default", nil),
	}))
	require.NoError(t, engine.Invoke(context.Background(), &entities.IrcMessage{Command: "JOIN"}))
	assert.Equal(t, []string{"default", "join"}, calls)
}

func TestUnregisteredCommandRunsOnlyDefaultGroup(t *testing.T) {
	engine := New(nil)
	var calls []string
	require.NoError(t, engine.Register(&entities.MethodRegistration{
		Command: "JOIN",
		Handler: recordingHandler(&calls, "join", nil),
	}))
	require.NoError(t, engine.Register(&entities.MethodRegistration{
		Handler: recordingHandler(&calls, "default", nil),
	}))
	assert.NoError(t, engine.Invoke(context.Background(), &entities.IrcMessage{Command: "KICK"}))
	assert.Equal(t, []string{"default"}, calls)
}

func TestEmptyCommandIsSkipped(t *testing.T) {
	engine := New(nil)
	var calls []string
	require.NoError(t, engine.Register(&entities.MethodRegistration{
		Handler: recordingHandler(&calls, "default", nil),
	}))
	assert.NoError(t, engine.Invoke(context.Background(), &entities.IrcMessage{Raw: "garbage"}))
	assert.NoError(t, engine.Invoke(context.Background(), nil))
	assert.Empty(t, calls)
}

func TestGuards(t *testing.T) {
	engine := New(nil)
	var calls []string
	require.NoError(t, engine.Register(&entities.MethodRegistration{
		Command:    "PRIVMSG",
		CanExecute: InputCommandIs("Quit"),
		Handler:    recordingHandler(&calls, "quit", nil),
	}))
	require.NoError(t, engine.Register(&entities.MethodRegistration{
		CanExecute: All(ArgsContain("HTTP://"), func(message *entities.IrcMessage) bool {
			return message.Nickname != "bot"
		}),
		Handler: recordingHandler(&calls, "link", nil),
	}))
	messages := []*entities.IrcMessage{
		{Command: "PRIVMSG", InputCommand: "quit"},
		{Command: "PRIVMSG", InputCommand: "join"},
		{Command: "PRIVMSG", Args: "see http://example.org", Nickname: "alice"},
		{Command: "PRIVMSG", Args: "see http://example.org", Nickname: "bot"},
	}
	for _, message := range messages {
		require.NoError(t, engine.Invoke(context.Background(), message))
	}
	assert.Equal(t, []string{"quit", "link"}, calls)
}

func TestDuplicateDescriptionKeepsFirst(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	engine := New(zap.New(core))
	var calls []string
	require.NoError(t, engine.Register(&entities.MethodRegistration{
		Command:     "PRIVMSG",
		Handler:     recordingHandler(&calls, "first", nil),
		Description: &entities.Description{Name: "quit", Help: "shuts the bot down"},
	}))
	require.NoError(t, engine.Register(&entities.MethodRegistration{
		Command:     "PRIVMSG",
		Handler:     recordingHandler(&calls, "second", nil),
		Description: &entities.Description{Name: "QUIT", Help: "something else"},
	}))
	help, ok := engine.Description("quit")
	require.True(t, ok)
	assert.Equal(t, "shuts the bot down", help)
	assert.False(t, engine.Describe("quit", "again"))
	assert.Equal(t, 2, logs.FilterMessage("Duplicate command description dropped").Len())
	assert.True(t, engine.HasCommand("Quit"))
	assert.False(t, engine.HasCommand("join"))
	assert.Equal(t, []string{"quit"}, engine.CommandNames())
}

func TestRegisterDuringInvoke(t *testing.T) {
	engine := New(nil)
	var mu sync.Mutex
	count := 0
	handler := func(ctx context.Context, message *entities.IrcMessage) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}
	require.NoError(t, engine.Register(&entities.MethodRegistration{Command: "PING", Handler: handler}))
	wg := sync.WaitGroup{}
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, engine.Register(&entities.MethodRegistration{Command: "NOTICE", Handler: handler}))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, engine.Invoke(context.Background(), &entities.IrcMessage{Command: "PING"}))
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, count)
}
