// Package classifier assigns one of the fixed expense categories to a
// free-text description. A remote model is consulted when configured;
// every failure path lands on a deterministic keyword fallback, so
// classification is total and never returns an error.
package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aditi5926/expense-tracker/internal/cache"
	"github.com/aditi5926/expense-tracker/internal/core"
)

const (
	// DefaultTimeout bounds a single remote classification attempt.
	DefaultTimeout = 8 * time.Second

	cacheSize = 512
	cacheTTL  = 24 * time.Hour
)

// Remote is the unreliable, slow classification capability. Implementations
// send a prompt and return the model's free-text answer.
type Remote interface {
	Classify(ctx context.Context, prompt string) (string, error)
}

type Classifier struct {
	remote  Remote
	timeout time.Duration
	results *cache.LRUCache[core.Category]
}

// New builds a classifier. A nil remote means keyword-only classification.
func New(remote Remote, timeout time.Duration) *Classifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Classifier{
		remote:  remote,
		timeout: timeout,
		results: cache.NewLRUCache[core.Category](cacheSize, cacheTTL),
	}
}

// Cache exposes the result cache for cleanup registration.
func (c *Classifier) Cache() *cache.LRUCache[core.Category] { return c.results }

// Classify maps a description to a category. Empty input short-circuits to
// Other without touching the remote.
func (c *Classifier) Classify(ctx context.Context, description string) core.Category {
	description = strings.TrimSpace(description)
	if description == "" {
		return core.Other
	}

	key := strings.ToLower(description)
	if cached, ok := c.results.Get(key); ok {
		return cached
	}

	if c.remote != nil {
		if category, ok := c.classifyRemote(ctx, description); ok {
			c.results.Set(key, category)
			return category
		}
	}

	return keywordCategory(description)
}

// classifyRemote asks the remote model, retrying once before giving up.
// The second return value reports whether a usable answer came back.
func (c *Classifier) classifyRemote(ctx context.Context, description string) (core.Category, bool) {
	prompt := buildPrompt(description)

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		answer, err := c.remote.Classify(attemptCtx, prompt)
		cancel()

		if err == nil {
			return normalizeAnswer(answer), true
		}
		lastErr = err
	}

	slog.WarnContext(ctx, "Remote classification failed, using keyword fallback",
		"error", lastErr,
		"description", description)
	return "", false
}

func buildPrompt(description string) string {
	return fmt.Sprintf(`You are a smart expense tracker.
Categorize this expense into one of these: Food, Travel, Supplies, Other.
Description: '%s'
Return only one category name.`, description)
}

// normalizeAnswer scans the model's free-text answer for a valid category
// name, in canonical order. Anything unrecognizable becomes Other.
func normalizeAnswer(answer string) core.Category {
	lower := strings.ToLower(answer)
	for _, category := range core.Categories {
		if strings.Contains(lower, strings.ToLower(string(category))) {
			return category
		}
	}
	return core.Other
}

var keywordRules = []struct {
	category core.Category
	keywords []string
}{
	{core.Food, []string{"food", "restaurant", "lunch", "dinner"}},
	{core.Travel, []string{"taxi", "uber", "flight", "train"}},
	{core.Supplies, []string{"pen", "paper", "notebook", "supplies"}},
}

// keywordCategory is the deterministic fallback: first matching rule wins.
func keywordCategory(description string) core.Category {
	lower := strings.ToLower(description)
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.category
			}
		}
	}
	return core.Other
}
