// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"encoding/json"
	"strings"
	"testing"
)

// =============================================================================
// MODEL REGISTRY TESTS
// =============================================================================

func TestModels_Registry(t *testing.T) {
	tests := []struct {
		id         string
		name       string
		maxLength  int
		tokenLimit int
	}{
		{GPT35, "GPT-3.5", 12000, 4000},
		{GPT4, "GPT-4", 24000, 8000},
		{GPT4_32K, "GPT-4-32K", 96000, 32000},
	}

	for _, tc := range tests {
		t.Run(tc.id, func(t *testing.T) {
			m, ok := LookupModel(tc.id)
			if !ok {
				t.Fatalf("LookupModel(%q) not found", tc.id)
			}
			if m.Name != tc.name {
				t.Errorf("Name = %q, want %q", m.Name, tc.name)
			}
			if m.MaxLength != tc.maxLength || m.TokenLimit != tc.tokenLimit {
				t.Errorf("limits = %d/%d, want %d/%d", m.MaxLength, m.TokenLimit, tc.maxLength, tc.tokenLimit)
			}
		})
	}
}

func TestLookupModel_Unknown(t *testing.T) {
	m, ok := LookupModel("llama3.2")
	if ok {
		t.Error("LookupModel(llama3.2) reported known")
	}
	if m.ID != "llama3.2" || m.Name != "llama3.2" {
		t.Errorf("unknown model = %+v", m)
	}
	if m.TokenLimit == 0 {
		t.Error("unknown model should carry a token limit")
	}
}

func TestListModels_Sorted(t *testing.T) {
	list := ListModels()
	if len(list) != len(Models) {
		t.Fatalf("len = %d, want %d", len(list), len(Models))
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].TokenLimit > list[i].TokenLimit {
			t.Errorf("list not sorted at %d", i)
		}
	}
}

func TestSettingsFor(t *testing.T) {
	s := SettingsFor("", "", 0)
	if s.Model.ID != DefaultModelID || s.Prompt != DefaultSystemPrompt || s.Temperature != DefaultTemperature {
		t.Errorf("empty settings = %+v, want defaults", s)
	}

	s = SettingsFor(GPT4, "be brief", 0.5)
	if s.Model.ID != GPT4 || s.Prompt != "be brief" || s.Temperature != 0.5 {
		t.Errorf("settings = %+v", s)
	}
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestNewConversation(t *testing.T) {
	c := NewConversation(DefaultSettings())
	if c.ID == "" {
		t.Error("ID should be generated")
	}
	if c.Name != NewConversationName {
		t.Errorf("Name = %q, want %q", c.Name, NewConversationName)
	}
	if c.Messages == nil || len(c.Messages) != 0 {
		t.Errorf("Messages = %v, want empty non-nil", c.Messages)
	}
	if c.FolderID != nil {
		t.Error("FolderID should be nil")
	}

	other := NewConversation(DefaultSettings())
	if other.ID == c.ID {
		t.Error("IDs should be unique")
	}
}

func TestNewConversationAfter_Inherits(t *testing.T) {
	last := NewConversation(DefaultSettings())
	last.Model = Models[GPT4]
	last.Temperature = 0.3
	last.Prompt = "custom"

	c := NewConversationAfter(DefaultSettings(), &last)
	if c.Model.ID != GPT4 {
		t.Errorf("Model = %q, want %q", c.Model.ID, GPT4)
	}
	if c.Temperature != 0.3 {
		t.Errorf("Temperature = %v, want 0.3", c.Temperature)
	}
	if c.Prompt != DefaultSystemPrompt {
		t.Errorf("Prompt = %q, want default", c.Prompt)
	}

	c = NewConversationAfter(DefaultSettings(), nil)
	if c.Model.ID != DefaultModelID {
		t.Errorf("Model = %q, want default", c.Model.ID)
	}
}

func TestConversation_WithMessageDoesNotAlias(t *testing.T) {
	c := NewConversation(DefaultSettings())
	c = c.WithMessage(UserMessage("one"))
	d := c.WithMessage(AssistantMessage("two"))

	if len(c.Messages) != 1 {
		t.Errorf("original len = %d, want 1", len(c.Messages))
	}
	if len(d.Messages) != 2 {
		t.Errorf("copy len = %d, want 2", len(d.Messages))
	}
	d.Messages[0].Content = "changed"
	if c.Messages[0].Content != "one" {
		t.Error("mutating the copy changed the original")
	}
}

func TestConversation_DropLast(t *testing.T) {
	base := NewConversation(DefaultSettings())
	for _, s := range []string{"a", "b", "c", "d"} {
		base = base.WithMessage(UserMessage(s))
	}

	tests := []struct {
		name string
		n    int
		want int
	}{
		{"zero", 0, 4},
		{"negative", -3, 4},
		{"two", 2, 2},
		{"all", 4, 0},
		{"more than length", 9, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := base.DropLast(tc.n)
			if len(got.Messages) != tc.want {
				t.Errorf("DropLast(%d) len = %d, want %d", tc.n, len(got.Messages), tc.want)
			}
			if len(base.Messages) != 4 {
				t.Error("DropLast mutated the receiver")
			}
		})
	}
}

func TestConversation_LastMessages(t *testing.T) {
	var c Conversation
	if c.LastUserIndex() != -1 {
		t.Error("empty conversation should have no user message")
	}
	if _, ok := c.LastAssistantMessage(); ok {
		t.Error("empty conversation should have no reply")
	}

	c.Messages = []Message{
		UserMessage("one"),
		{Role: RoleAssistant, Content: "first"},
		UserMessage("two"),
		{Role: RoleAssistant, Content: ""},
	}
	if got := c.LastUserIndex(); got != 2 {
		t.Errorf("LastUserIndex() = %d, want 2", got)
	}
	if m, ok := c.LastUserMessage(); !ok || m.Content != "two" {
		t.Errorf("LastUserMessage() = %q, %v", m.Content, ok)
	}
	if m, ok := c.LastAssistantMessage(); !ok || m.Content != "first" {
		t.Errorf("LastAssistantMessage() = %q, %v, want the last non-empty reply", m.Content, ok)
	}
}

func TestDeriveName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello", "Hello"},
		{strings.Repeat("a", 30), strings.Repeat("a", 30)},
		{strings.Repeat("a", 31), strings.Repeat("a", 30) + "..."},
		{strings.Repeat("é", 35), strings.Repeat("é", 30) + "..."},
	}

	for _, tc := range tests {
		if got := DeriveName(tc.in); got != tc.want {
			t.Errorf("DeriveName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestConversation_WithDerivedName(t *testing.T) {
	c := NewConversation(DefaultSettings())
	if got := c.WithDerivedName().Name; got != NewConversationName {
		t.Errorf("empty conversation renamed to %q", got)
	}

	c = c.WithMessage(UserMessage("What is the capital of France?"))
	c = c.WithDerivedName()
	if c.Name != "What is the capital of France?" {
		t.Errorf("Name = %q", c.Name)
	}

	c = c.WithMessage(AssistantMessage("Paris"))
	c.Name = "kept"
	if got := c.WithDerivedName().Name; got != "kept" {
		t.Errorf("second message renamed conversation to %q", got)
	}
}

func TestConversation_JSONShape(t *testing.T) {
	c := NewConversation(DefaultSettings())
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	s := string(data)
	for _, want := range []string{`"folderId":null`, `"maxLength":12000`, `"tokenLimit":4000`, `"messages":[]`} {
		if !strings.Contains(s, want) {
			t.Errorf("JSON %s missing %s", s, want)
		}
	}
}

// =============================================================================
// COLLECTION TESTS
// =============================================================================

func TestConversations_Upsert(t *testing.T) {
	a := NewConversation(DefaultSettings())
	b := NewConversation(DefaultSettings())
	list := Conversations{a, b}

	updated := a.WithMessage(UserMessage("hi"))
	got := list.Upsert(updated)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != a.ID || len(got[0].Messages) != 1 {
		t.Error("existing element was not replaced in place")
	}
	if len(list[0].Messages) != 0 {
		t.Error("Upsert mutated the receiver")
	}

	c := NewConversation(DefaultSettings())
	got = got.Upsert(c)
	if len(got) != 3 || got[2].ID != c.ID {
		t.Error("new element was not appended")
	}
}

func TestConversations_FindRemoveLast(t *testing.T) {
	a := NewConversation(DefaultSettings())
	b := NewConversation(DefaultSettings())
	list := Conversations{a, b}

	if _, ok := list.Find(b.ID); !ok {
		t.Error("Find(b) not found")
	}
	if list.Index(b.ID) != 1 {
		t.Errorf("Index(b) = %d, want 1", list.Index(b.ID))
	}
	if list.Last().ID != b.ID {
		t.Error("Last should be b")
	}

	list = list.Remove(a.ID)
	if len(list) != 1 || list[0].ID != b.ID {
		t.Errorf("Remove left %v", list)
	}
	if Conversations(nil).Last() != nil {
		t.Error("Last of empty should be nil")
	}
}

func TestConversations_Filter(t *testing.T) {
	a := NewConversation(DefaultSettings()).WithMessage(UserMessage("golang channels"))
	b := NewConversation(DefaultSettings()).WithMessage(UserMessage("rust traits"))
	list := Conversations{a, b}

	got := list.Filter("GOLANG")
	if len(got) != 1 || got[0].ID != a.ID {
		t.Errorf("Filter returned %d results", len(got))
	}
	if len(list.Filter("")) != 2 {
		t.Error("empty term should match all")
	}
}
