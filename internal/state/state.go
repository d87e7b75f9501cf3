// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package state holds the process-wide chat state and the reducer that
// mutates it. Every change is a whole-field replacement described by an
// Action. The reducer neither validates content nor persists anything.
package state

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jeranaias/streamchat/internal/model"
)

// =============================================================================
// STATE
// =============================================================================

// State is the chat UI state.
type State struct {
	Loading              bool
	LightMode            string
	MessageIsStreaming   bool
	Models               []model.OpenAIModel
	Conversations        model.Conversations
	SelectedConversation *model.Conversation
	CurrentMessage       *model.Message
	Temperature          float64
	ShowPromptbar        bool
	MessageError         bool
	SearchTerm           string
	DefaultModelID       string
}

// Initial returns the state the application starts with.
func Initial() State {
	return State{
		LightMode:      "dark",
		Models:         model.ListModels(),
		Conversations:  model.Conversations{},
		Temperature:    model.DefaultTemperature,
		ShowPromptbar:  true,
		DefaultModelID: model.DefaultModelID,
	}
}

// =============================================================================
// ACTIONS
// =============================================================================

// Field names a State field.
type Field string

const (
	FieldLoading              Field = "loading"
	FieldLightMode            Field = "lightMode"
	FieldMessageIsStreaming   Field = "messageIsStreaming"
	FieldModels               Field = "models"
	FieldConversations        Field = "conversations"
	FieldSelectedConversation Field = "selectedConversation"
	FieldCurrentMessage       Field = "currentMessage"
	FieldTemperature          Field = "temperature"
	FieldShowPromptbar        Field = "showPromptbar"
	FieldMessageError         Field = "messageError"
	FieldSearchTerm           Field = "searchTerm"
	FieldDefaultModelID       Field = "defaultModelId"
)

// Action replaces one field with Value.
type Action struct {
	Field Field
	Value any
}

// FieldError is returned for actions the reducer cannot apply.
type FieldError struct {
	Field Field
	Value any
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v (got %T)", e.Field, e.Err, e.Value)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

var (
	// ErrUnknownField is returned for actions naming no State field.
	ErrUnknownField = errors.New("unknown field")

	// ErrFieldType is returned when Value has the wrong type for Field.
	ErrFieldType = errors.New("wrong value type")
)

// Reduce returns s with the action applied. s is not modified.
func Reduce(s State, a Action) (State, error) {
	typeErr := &FieldError{Field: a.Field, Value: a.Value, Err: ErrFieldType}

	switch a.Field {
	case FieldLoading:
		v, ok := a.Value.(bool)
		if !ok {
			return s, typeErr
		}
		s.Loading = v
	case FieldLightMode:
		v, ok := a.Value.(string)
		if !ok {
			return s, typeErr
		}
		s.LightMode = v
	case FieldMessageIsStreaming:
		v, ok := a.Value.(bool)
		if !ok {
			return s, typeErr
		}
		s.MessageIsStreaming = v
	case FieldModels:
		v, ok := a.Value.([]model.OpenAIModel)
		if !ok {
			return s, typeErr
		}
		s.Models = v
	case FieldConversations:
		switch v := a.Value.(type) {
		case model.Conversations:
			s.Conversations = v
		case []model.Conversation:
			s.Conversations = model.Conversations(v)
		default:
			return s, typeErr
		}
	case FieldSelectedConversation:
		switch v := a.Value.(type) {
		case nil:
			s.SelectedConversation = nil
		case model.Conversation:
			c := v.Clone()
			s.SelectedConversation = &c
		case *model.Conversation:
			if v == nil {
				s.SelectedConversation = nil
			} else {
				c := v.Clone()
				s.SelectedConversation = &c
			}
		default:
			return s, typeErr
		}
	case FieldCurrentMessage:
		switch v := a.Value.(type) {
		case nil:
			s.CurrentMessage = nil
		case model.Message:
			s.CurrentMessage = &v
		case *model.Message:
			if v == nil {
				s.CurrentMessage = nil
			} else {
				m := *v
				s.CurrentMessage = &m
			}
		default:
			return s, typeErr
		}
	case FieldTemperature:
		v, ok := a.Value.(float64)
		if !ok {
			return s, typeErr
		}
		s.Temperature = v
	case FieldShowPromptbar:
		v, ok := a.Value.(bool)
		if !ok {
			return s, typeErr
		}
		s.ShowPromptbar = v
	case FieldMessageError:
		v, ok := a.Value.(bool)
		if !ok {
			return s, typeErr
		}
		s.MessageError = v
	case FieldSearchTerm:
		v, ok := a.Value.(string)
		if !ok {
			return s, typeErr
		}
		s.SearchTerm = v
	case FieldDefaultModelID:
		v, ok := a.Value.(string)
		if !ok {
			return s, typeErr
		}
		s.DefaultModelID = v
	default:
		return s, &FieldError{Field: a.Field, Value: a.Value, Err: ErrUnknownField}
	}
	return s, nil
}

// =============================================================================
// STORE
// =============================================================================

// Store is the single mutable state cell. Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	state State

	subMu  sync.Mutex
	subs   map[int]func(State)
	nextID int
}

// NewStore creates a store holding initial.
func NewStore(initial State) *Store {
	return &Store{state: initial, subs: make(map[int]func(State))}
}

// State returns the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Dispatch applies a to the state and notifies subscribers. A rejected
// action leaves the state untouched.
func (s *Store) Dispatch(a Action) error {
	s.mu.Lock()
	next, err := Reduce(s.state, a)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = next
	s.mu.Unlock()

	s.notify(next)
	return nil
}

// DispatchAll applies actions in order, stopping at the first error.
func (s *Store) DispatchAll(actions ...Action) error {
	for _, a := range actions {
		if err := s.Dispatch(a); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe registers fn to run after every successful dispatch. The
// returned function unregisters it.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(st State) {
	s.subMu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}
