package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/sileme/sileme-backend/internal/domain"
)

const interpreterPrompt = `You are the 'Soul Interpreter' of the Sileme Protocol.
Your job is to parse a user's natural language will (Manifesto) into executable financial instructions.

Rules:
1. Assign a 'walletAddress' (0x followed by 40 hex chars) for each entity mentioned.
2. Estimate a percentage split from the text. If vague, distribute equal shares. The sum must equal 100.
3. Categorize each beneficiary (e.g. 'Family', 'Non-Profit', 'AI Research').
4. Extract a short 'reason' or memo for the transaction.
5. Output in %s.

Return a JSON object {"beneficiaries": [...]} whose items contain: name, category, percentage, walletAddress, reason`

// ErrUnexpectedShape is returned when the reply is neither a list nor {beneficiaries: [...]}
var ErrUnexpectedShape = errors.New("llm: invalid response format")

type beneficiaryJSON struct {
	Name          string  `json:"name"`
	Category      string  `json:"category"`
	Percentage    float64 `json:"percentage"`
	WalletAddress string  `json:"walletAddress"`
	Reason        string  `json:"reason"`
}

// Interpret turns a manifesto into beneficiaries.
// Shares are rounded to whole percents; range checks are left to the caller.
func (c *Client) Interpret(ctx context.Context, text, locale string) ([]domain.Beneficiary, error) {
	reply, err := c.complete(ctx,
		fmt.Sprintf(interpreterPrompt, languageFor(locale)),
		fmt.Sprintf("Parse this will: %q\n\nReturn ONLY valid JSON, no other text.", text),
	)
	if err != nil {
		return nil, err
	}

	items, err := parseBeneficiaries(reply)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Beneficiary, 0, len(items))
	for _, item := range items {
		out = append(out, domain.Beneficiary{
			Name:            item.Name,
			Category:        item.Category,
			PercentageShare: int(math.Round(item.Percentage)),
			PayoutAddress:   item.WalletAddress,
			Memo:            item.Reason,
		})
	}
	return out, nil
}

// parseBeneficiaries accepts either a bare array or an object wrapping one
func parseBeneficiaries(reply string) ([]beneficiaryJSON, error) {
	var raw json.RawMessage
	if err := json.Unmarshal([]byte(reply), &raw); err != nil {
		return nil, fmt.Errorf("llm: decode beneficiaries: %w", err)
	}

	var list []beneficiaryJSON
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var wrapped struct {
		Beneficiaries []beneficiaryJSON `json:"beneficiaries"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil || wrapped.Beneficiaries == nil {
		return nil, ErrUnexpectedShape
	}
	return wrapped.Beneficiaries, nil
}

// Compile-time interface check.
var _ domain.IntentInterpreter = (*Client)(nil)
