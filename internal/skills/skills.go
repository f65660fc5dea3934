// Package skills loads per-agent-type guidance documents.
//
// A skills document is markdown with two sections of interest: a heading
// containing "never" lists prohibited actions, a heading containing "always"
// lists guiding principles. List items under those headings become rules.
package skills

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Skills holds the parsed rules for one agent type.
type Skills struct {
	// Never lists actions the agent must not take.
	Never []string
	// Always lists principles the agent should follow.
	Always []string
}

// Empty reports whether the document produced no rules.
func (s *Skills) Empty() bool {
	return s == nil || (len(s.Never) == 0 && len(s.Always) == 0)
}

// Violation describes the first never-rule an action matched.
type Violation struct {
	Rule   string
	Reason string
}

// Check matches action against the never-rules, case-insensitively, in both
// directions: the action contains the rule or the rule contains the action.
// Returns nil when no rule matches or the action is blank.
func (s *Skills) Check(action string) *Violation {
	if s == nil {
		return nil
	}
	a := strings.ToLower(strings.TrimSpace(action))
	if a == "" {
		return nil
	}
	for _, rule := range s.Never {
		r := strings.ToLower(strings.TrimSpace(rule))
		if r == "" {
			continue
		}
		if strings.Contains(a, r) || strings.Contains(r, a) {
			return &Violation{
				Rule:   rule,
				Reason: fmt.Sprintf("Action violates rule: %s", rule),
			}
		}
	}
	return nil
}

type section int

const (
	sectionNone section = iota
	sectionNever
	sectionAlways
)

// Parse extracts never and always rules from a skills document.
func Parse(text string) *Skills {
	s := &Skills{}
	current := sectionNone

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "#") {
			heading := strings.ToLower(strings.TrimLeft(line, "# "))
			switch {
			case strings.Contains(heading, "never"):
				current = sectionNever
			case strings.Contains(heading, "always"):
				current = sectionAlways
			default:
				current = sectionNone
			}
			continue
		}

		item, ok := listItem(line)
		if !ok || item == "" {
			continue
		}
		switch current {
		case sectionNever:
			s.Never = append(s.Never, item)
		case sectionAlways:
			s.Always = append(s.Always, item)
		}
	}
	return s
}

// listItem strips a markdown bullet or ordinal prefix.
func listItem(line string) (string, bool) {
	for _, prefix := range []string{"- ", "* ", "+ "} {
		if strings.HasPrefix(line, prefix) {
			return cleanItem(line[len(prefix):]), true
		}
	}
	// Numbered: "1. foo" or "1) foo"
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i+1 < len(line) && (line[i] == '.' || line[i] == ')') && line[i+1] == ' ' {
		return cleanItem(line[i+2:]), true
	}
	return "", false
}

func cleanItem(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "*_`")
	return strings.TrimSpace(s)
}

// Provider returns the skills for an agent type.
// A missing document is not an error: it yields empty skills.
type Provider interface {
	Load(agentType string) (*Skills, error)
}

// FileProvider reads <dir>/<agentType>.md and caches the parsed result.
type FileProvider struct {
	dir   string
	mu    sync.RWMutex
	cache map[string]*Skills
}

// NewFileProvider creates a provider rooted at dir.
func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{
		dir:   dir,
		cache: make(map[string]*Skills),
	}
}

// Dir returns the directory the provider reads from.
func (p *FileProvider) Dir() string {
	return p.dir
}

// PathFor returns the document path for an agent type.
func (p *FileProvider) PathFor(agentType string) string {
	return filepath.Join(p.dir, agentType+".md")
}

// Load returns cached skills or reads and parses the document.
func (p *FileProvider) Load(agentType string) (*Skills, error) {
	p.mu.RLock()
	s, ok := p.cache[agentType]
	p.mu.RUnlock()
	if ok {
		return s, nil
	}

	if p.dir == "" {
		return &Skills{}, nil
	}

	data, err := os.ReadFile(p.PathFor(agentType))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s = &Skills{}
		} else {
			return nil, fmt.Errorf("read skills for %s: %w", agentType, err)
		}
	} else {
		s = Parse(string(data))
	}

	p.mu.Lock()
	p.cache[agentType] = s
	p.mu.Unlock()
	return s, nil
}

// Invalidate drops the cached entry so the next Load rereads the file.
func (p *FileProvider) Invalidate(agentType string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.cache, agentType)
}

// AgentTypeForPath returns the agent type a skills file path belongs to.
func AgentTypeForPath(path string) (string, bool) {
	base := filepath.Base(path)
	if filepath.Ext(base) != ".md" {
		return "", false
	}
	name := strings.TrimSuffix(base, ".md")
	return name, name != ""
}
