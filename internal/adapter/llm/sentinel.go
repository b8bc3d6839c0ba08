package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sileme/sileme-backend/internal/domain"
)

const sentinelPrompt = `You are the 'Social Sentinel' security bot.
Analyze the user's recent posts for signs of compromise, duress, or explicit 'Dead Man Switch' cancellation.
Output in %s.

Return JSON with: status (either "SECURE" or "THREAT_DETECTED"), evidence (explanation string)`

// recentPosts stands in for a social feed until a crawler is wired
func recentPosts(handle string) []string {
	last := "Building safely."
	if strings.Contains(strings.ToLower(handle), "hacked") {
		last = "HELP I LOST MY WALLET"
	}
	return []string{
		"Just minted a new NFT.",
		"GM everyone.",
		"Prices are looking good today.",
		last,
	}
}

type sentinelJSON struct {
	Status   string `json:"status"`
	Evidence string `json:"evidence"`
}

// Scan asks the model whether handle shows signs of compromise.
// The returned timestamp is zero; the sentinel service stamps it.
func (c *Client) Scan(ctx context.Context, handle, manifesto, locale string) (domain.SentinelReport, error) {
	feed, err := json.Marshal(recentPosts(handle))
	if err != nil {
		return domain.SentinelReport{}, fmt.Errorf("llm: marshal feed: %w", err)
	}

	reply, err := c.complete(ctx,
		fmt.Sprintf(sentinelPrompt, languageFor(locale)),
		fmt.Sprintf("User: %s\nOriginal Manifesto: %q\nRecent Posts: %s\n\nReturn ONLY valid JSON.", handle, manifesto, feed),
	)
	if err != nil {
		return domain.SentinelReport{}, err
	}

	var parsed sentinelJSON
	if err := json.Unmarshal([]byte(reply), &parsed); err != nil {
		return domain.SentinelReport{}, fmt.Errorf("llm: decode sentinel: %w", err)
	}

	return domain.SentinelReport{
		Status:   domain.SentinelStatus(strings.ToUpper(strings.TrimSpace(parsed.Status))),
		Evidence: parsed.Evidence,
	}, nil
}

var _ domain.SentinelScanner = (*Client)(nil)
