package permission

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
)

// Rule is a static per-tool policy.
type Rule string

const (
	RuleAllow Rule = "allow"
	RuleDeny  Rule = "deny"
	RuleAsk   Rule = "ask"
)

// Prompter asks the user to approve a tool call. Implementations block
// until the user answers or ctx is done.
type Prompter interface {
	Approve(ctx context.Context, req Request) (bool, error)
}

// PrompterFunc adapts a function to the Prompter interface.
type PrompterFunc func(ctx context.Context, req Request) (bool, error)

func (f PrompterFunc) Approve(ctx context.Context, req Request) (bool, error) {
	return f(ctx, req)
}

// Request describes the tool call being gated.
type Request struct {
	Tool   string
	Params map[string]any
	Risk   Risk
}

// Decision records the outcome of a gate check.
type Decision struct {
	Allowed bool
	Risk    Risk
	Reason  string // "rule", "cached", "approved", "rejected", "auto", "no-prompter"
}

// Gate decides whether tool calls may run.
type Gate struct {
	rules       map[string]Rule
	prompter    Prompter
	autoApprove bool

	cache map[string]bool
	mu    sync.Mutex
}

// Option configures a Gate.
type Option func(*Gate)

// WithRules sets static per-tool rules.
func WithRules(rules map[string]Rule) Option {
	return func(g *Gate) {
		for tool, rule := range rules {
			g.rules[tool] = rule
		}
	}
}

// WithPrompter sets the interactive prompter. Without one, every prompt
// resolves to deny.
func WithPrompter(p Prompter) Option {
	return func(g *Gate) {
		g.prompter = p
	}
}

// WithAutoApprove accepts normal-risk calls without prompting.
// Destructive and high-risk calls still prompt.
func WithAutoApprove(enabled bool) Option {
	return func(g *Gate) {
		g.autoApprove = enabled
	}
}

// NewGate creates a Gate.
func NewGate(opts ...Option) *Gate {
	g := &Gate{
		rules: make(map[string]Rule),
		cache: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check decides whether the tool call may run. Decision order: explicit
// deny, then explicit allow for non-risky calls, then mandatory prompts
// for destructive and high-risk calls, then auto-approve or prompt.
// Approvals are cached for the run keyed by the exact call signature.
func (g *Gate) Check(ctx context.Context, tool string, params map[string]any) Decision {
	risk := Classify(tool, params)

	rule := g.rules[tool]
	if rule == RuleDeny {
		return Decision{Allowed: false, Risk: risk, Reason: "rule"}
	}
	if rule == RuleAllow && risk == RiskNormal {
		return Decision{Allowed: true, Risk: risk, Reason: "rule"}
	}

	if risk == RiskNormal && g.autoApprove {
		return Decision{Allowed: true, Risk: risk, Reason: "auto"}
	}

	key := cacheKey(tool, params)
	g.mu.Lock()
	approved, cached := g.cache[key]
	g.mu.Unlock()
	if cached {
		return Decision{Allowed: approved, Risk: risk, Reason: "cached"}
	}

	if g.prompter == nil {
		// Non-interactive sessions fail closed.
		return Decision{Allowed: false, Risk: risk, Reason: "no-prompter"}
	}

	approved, err := g.prompter.Approve(ctx, Request{Tool: tool, Params: params, Risk: risk})
	if err != nil {
		return Decision{Allowed: false, Risk: risk, Reason: "rejected"}
	}

	g.mu.Lock()
	g.cache[key] = approved
	g.mu.Unlock()

	reason := "approved"
	if !approved {
		reason = "rejected"
	}
	return Decision{Allowed: approved, Risk: risk, Reason: reason}
}

// ClearCache drops all cached approvals.
func (g *Gate) ClearCache() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cache = make(map[string]bool)
}

// cacheKey builds a canonical signature for a tool call: tool name plus
// parameters serialized with sorted keys, so logically identical calls
// share an approval.
func cacheKey(tool string, params map[string]any) string {
	if len(params) == 0 {
		return tool
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(tool)
	for _, k := range keys {
		sb.WriteByte('|')
		sb.WriteString(k)
		sb.WriteByte('=')
		if data, err := json.Marshal(params[k]); err == nil {
			sb.Write(data)
		}
	}
	return sb.String()
}
