package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucentai/lucent-client/internal/config"
	"github.com/lucentai/lucent-client/internal/deepsearch"
	"github.com/lucentai/lucent-client/internal/logger"
	"github.com/lucentai/lucent-client/internal/message"
	"github.com/lucentai/lucent-client/internal/transport"
)

func newTestApp() *app {
	cell := &settingsCell{settings: transport.Settings{Model: "base-model"}}
	client := transport.NewClient("http://localhost:0", cell.get, logger.Discard())
	return newApp(appDeps{
		cfg:      &config.Config{},
		log:      logger.Discard(),
		store:    message.NewStore(),
		client:   client,
		manager:  deepsearch.NewManager(client, logger.Discard()),
		settings: cell,
	})
}

func TestModelCommandUpdatesSettingsCell(t *testing.T) {
	a := newTestApp()

	a.input.SetValue("/model fast-model")
	a.submit()

	assert.Equal(t, "fast-model", a.settings.get().Model)
	assert.Empty(t, a.input.Value())

	a.input.SetValue("/model ")
	a.submit()
	assert.Equal(t, "fast-model", a.settings.get().Model)
	assert.Equal(t, "usage: /model <name>", a.errText)
}

// The resuming indicator belongs to the resume flow only: a fresh send
// starts with an empty assistant message but must not claim to resume.
func TestResumingIndicatorOnlyForResumedStreams(t *testing.T) {
	a := newTestApp()

	msgID := message.NewID()
	a.store.Append(message.Message{
		ID:    msgID,
		Role:  message.RoleAssistant,
		Parts: []message.Part{message.TextPart("")},
	})
	msg, ok := a.store.Get(msgID)
	require.True(t, ok)

	a.attachAnimator(msgID, true, false)
	assert.NotContains(t, a.renderMessage(msg), "resuming")

	a.attachAnimator(msgID, true, true)
	assert.Contains(t, a.renderMessage(msg), "resuming")
}

func TestAttachAnimatorToTailMarksResumed(t *testing.T) {
	a := newTestApp()
	a.store.Append(message.Message{
		ID:    message.NewID(),
		Role:  message.RoleAssistant,
		Parts: []message.Part{message.ReasoningPart("partial thinking")},
	})

	a.attachAnimatorToTail(true)

	require.NotNil(t, a.animator)
	assert.True(t, a.animatorResumed)
}
