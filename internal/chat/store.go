package chat

import "sync"

// Conversation is the state for one remote conversation id. Lock covers the
// whole decode→backend→encode→append sequence: history appends and catalogue
// replacement are not atomic, so concurrent turns for the same id must
// serialize. Turns for different ids run in parallel.
type Conversation struct {
	ID       string
	Messages []Message
	Tools    []ToolSpec

	mu sync.Mutex
}

// Lock serializes turn handling for this conversation.
func (c *Conversation) Lock() { c.mu.Lock() }

// Unlock releases the turn lock.
func (c *Conversation) Unlock() { c.mu.Unlock() }

// LastAssistant returns the most recent history entry if it is an assistant
// message, else nil.
func (c *Conversation) LastAssistant() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	last := &c.Messages[len(c.Messages)-1]
	if last.Role != RoleAssistant {
		return nil
	}
	return last
}

// HasSystem reports whether a system prompt was already recorded.
func (c *Conversation) HasSystem() bool {
	for _, m := range c.Messages {
		if m.Role == RoleSystem {
			return true
		}
	}
	return false
}

// Store maps conversation ids to their state. Callers reach a Conversation
// only through Get for the duration of one turn, never caching it across
// turns.
type Store struct {
	mu    sync.Mutex
	convs map[string]*Conversation
}

func NewStore() *Store {
	return &Store{convs: map[string]*Conversation{}}
}

// Get returns the conversation for id, creating it lazily on first use.
func (s *Store) Get(id string) *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[id]
	if !ok {
		conv = &Conversation{ID: id}
		s.convs[id] = conv
	}
	return conv
}

// Delete releases the state for id. Used on cancellation; in-flight backend
// calls finish against the detached state and their result is discarded.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.convs, id)
}

// Len reports the number of live conversations. State lives for the process
// lifetime unless canceled; there is no eviction.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.convs)
}
