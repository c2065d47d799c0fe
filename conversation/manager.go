package conversation

import (
	"sync"
	"time"

	"github.com/ClaytonHunt/sheen-sub000/llm"
)

const (
	// DefaultTokenBudget is the assumed context window when none is
	// configured.
	DefaultTokenBudget = 100000

	// pruneThreshold fires threshold pruning at this fraction of budget.
	pruneThreshold = 0.8

	// DefaultKeepRecent is how many trailing messages threshold pruning
	// retains alongside the system message.
	DefaultKeepRecent = 10

	// hardPruneFloor is the smallest kept-recent window hard-limit
	// pruning will shrink to.
	hardPruneFloor = 5
)

// Manager owns the conversation history. The first message is always the
// system message.
type Manager struct {
	messages    []llm.Message
	tokenBudget int
	keepRecent  int
	mu          sync.RWMutex
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTokenBudget sets the context window budget in estimated tokens.
func WithTokenBudget(budget int) ManagerOption {
	return func(m *Manager) {
		if budget > 0 {
			m.tokenBudget = budget
		}
	}
}

// WithKeepRecent sets how many trailing messages threshold pruning keeps.
func WithKeepRecent(k int) ManagerOption {
	return func(m *Manager) {
		if k > 0 {
			m.keepRecent = k
		}
	}
}

// NewManager creates a Manager seeded with the system prompt.
func NewManager(systemPrompt string, opts ...ManagerOption) *Manager {
	m := &Manager{
		messages:    []llm.Message{llm.SystemMessage(systemPrompt)},
		tokenBudget: DefaultTokenBudget,
		keepRecent:  DefaultKeepRecent,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddUserMessage appends a user message.
func (m *Manager) AddUserMessage(text string) {
	m.append(llm.UserMessage(text))
}

// AddAssistantMessage appends an assistant message.
func (m *Manager) AddAssistantMessage(text string) {
	m.append(llm.AssistantMessage(text))
}

// AddToolResult appends a tool result message tied to a prior call.
func (m *Manager) AddToolResult(toolCallID, toolName, content string) {
	m.append(llm.ToolResultMessage(toolCallID, toolName, content))
}

func (m *Manager) append(msg llm.Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
}

// Messages returns a copy of the full history.
func (m *Manager) Messages() []llm.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]llm.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// CoreMessages returns the history with tool messages filtered out, for
// backends that frame tool results their own way.
func (m *Manager) CoreMessages() []llm.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]llm.Message, 0, len(m.messages))
	for _, msg := range m.messages {
		if msg.Role == llm.RoleTool {
			continue
		}
		out = append(out, msg)
	}
	return out
}

// Len returns the number of messages including the system message.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages)
}

// EstimateSize approximates the history size in tokens as chars/4.
func (m *Manager) EstimateSize() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.estimateLocked()
}

func (m *Manager) estimateLocked() int {
	chars := 0
	for _, msg := range m.messages {
		chars += len(msg.Content)
	}
	return chars / 4
}

// PruneIfNeeded applies threshold pruning: when the estimated size
// reaches 80% of the budget, only the system message and the most recent
// keepRecent messages survive. Returns the number of evicted messages.
func (m *Manager) PruneIfNeeded() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if float64(m.estimateLocked()) < pruneThreshold*float64(m.tokenBudget) {
		return 0
	}
	return m.keepRecentLocked(m.keepRecent)
}

// PruneToFit applies hard-limit pruning: the kept-recent window shrinks
// from keepRecent down to a floor of 5 until the estimated size fits
// target. The system message always survives. Returns evicted count.
func (m *Manager) PruneToFit(target int) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.estimateLocked() <= target {
		return 0
	}

	evicted := 0
	for keep := m.keepRecent; keep >= hardPruneFloor; keep-- {
		evicted += m.keepRecentLocked(keep)
		if m.estimateLocked() <= target {
			break
		}
	}
	return evicted
}

// keepRecentLocked drops everything but the system message and the last
// keep messages. Caller holds the lock.
func (m *Manager) keepRecentLocked(keep int) int {
	rest := m.messages[1:]
	if len(rest) <= keep {
		return 0
	}
	evicted := len(rest) - keep
	kept := make([]llm.Message, 0, keep+1)
	kept = append(kept, m.messages[0])
	kept = append(kept, rest[len(rest)-keep:]...)
	m.messages = kept
	return evicted
}

// Clear resets the history to just the system message.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = m.messages[:1]
}

// Reset clears the history and, when newPrompt is non-empty, swaps the
// system prompt.
func (m *Manager) Reset(newPrompt string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if newPrompt != "" {
		m.messages[0] = llm.SystemMessage(newPrompt)
	}
	m.messages = m.messages[:1]
}

// SystemPrompt returns the current system prompt.
func (m *Manager) SystemPrompt() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.messages[0].Content
}
