// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/streamchat/internal/config"
	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/producer"
	"github.com/jeranaias/streamchat/internal/session"
	"github.com/jeranaias/streamchat/internal/state"
	"github.com/jeranaias/streamchat/internal/storage"
	"github.com/jeranaias/streamchat/internal/stream"
)

// testEnv builds an Env over a temporary file store with buffered output.
func testEnv(t *testing.T, p producer.Producer) (*Env, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()

	kv, err := storage.NewFileKV(t.TempDir())
	require.NoError(t, err)
	cfg := config.Default()
	ts := storage.NewTranscriptStore(kv, storage.WithSettings(cfg.Settings()))
	t.Cleanup(func() { ts.Close() })

	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	printer := NewPrinter(out)
	consumer := stream.NewConsumer()
	ctl := session.New(state.NewStore(state.Initial()), ts, p,
		session.WithConsumer(consumer),
		session.WithObserver(printer.Observe))
	require.NoError(t, ctl.Bootstrap())

	return &Env{
		Config:      cfg,
		Transcripts: ts,
		Producer:    p,
		Consumer:    consumer,
		Controller:  ctl,
		Printer:     printer,
		Out:         out,
		Err:         errOut,
	}, out, errOut
}

// seed stores conversations with fixed IDs.
func seed(t *testing.T, ts *storage.TranscriptStore, ids ...string) model.Conversations {
	t.Helper()
	var cs model.Conversations
	for i, id := range ids {
		c := model.NewConversation(model.DefaultSettings())
		c.ID = id
		c.Name = "Conversation " + string(rune('A'+i))
		c = c.WithMessage(model.UserMessage("question " + id)).
			WithMessage(model.AssistantMessage("answer " + id))
		cs = append(cs, c)
	}
	require.NoError(t, ts.SaveConversations(cs))
	return cs
}
