package service

import (
	"fmt"
	"strings"

	"github.com/garyjia/quote-revision/internal/domain/entity"
	"github.com/garyjia/quote-revision/internal/domain/revision"
)

// Summarize renders the pending changes of a session for a confirmation prompt.
// The batch is dry-run against items so the prompt can show the resulting total
// or the reason it will be rejected.
func Summarize(applier *revision.Applier, items []entity.QuoteItem, sess *entity.QuoteReviewSession) string {
	var b strings.Builder

	if len(sess.Pending) == 0 {
		fmt.Fprintf(&b, "No pending changes for quote %s (version %d).\n", sess.QuoteID, sess.ObservedVersion)
		b.WriteString("Reply yes to close the review or no to keep editing.")
		return b.String()
	}

	fmt.Fprintf(&b, "Pending changes for quote %s (version %d):\n", sess.QuoteID, sess.ObservedVersion)
	for i, p := range sess.Pending {
		fmt.Fprintf(&b, "%d. %s", i+1, DescribeCommand(p.Command))
		if p.LowConfidence {
			fmt.Fprintf(&b, " [unsure, %.0f%% confidence]", p.Command.Confidence*100)
		}
		b.WriteString("\n")
	}

	before := revision.CalculateTotal(items)
	res, err := applier.Apply(items, sess.Commands())
	if err != nil {
		fmt.Fprintf(&b, "These changes cannot be applied: %v\n", err)
		b.WriteString("Reply no to cancel and try again.")
		return b.String()
	}

	fmt.Fprintf(&b, "Total: %s -> %s\n", formatMoney(before), formatMoney(res.Total))
	b.WriteString("Reply yes to apply or no to cancel.")
	return b.String()
}

// DescribeCommand renders one command as a short sentence
func DescribeCommand(c entity.VoiceEditCommand) string {
	switch c.Kind {
	case entity.CommandChangePrice:
		return fmt.Sprintf("Set price of %q to %s", c.Target, formatMoney(c.ValueOr(0)))
	case entity.CommandChangeQuantity:
		return fmt.Sprintf("Set quantity of %q to %g", c.Target, c.ValueOr(0))
	case entity.CommandRemoveItem:
		return fmt.Sprintf("Remove %q", c.Target)
	case entity.CommandAddItem:
		qty := 1.0
		if c.Quantity != nil {
			qty = *c.Quantity
		}
		unit := c.Unit
		if unit == "" {
			unit = entity.UnitEach
		}
		return fmt.Sprintf("Add %q (%g %s at %s)", c.Description, qty, unit, formatMoney(c.ValueOr(0)))
	case entity.CommandBulkChange:
		scope := c.Scope
		if scope == "" {
			scope = entity.ScopeAll
		}
		switch c.Operation {
		case entity.BulkAddPercentage:
			return fmt.Sprintf("Raise %s prices by %g%%", scope, c.ValueOr(0))
		case entity.BulkSubtractPercentage:
			return fmt.Sprintf("Lower %s prices by %g%%", scope, c.ValueOr(0))
		default:
			return fmt.Sprintf("%s on %s items", c.Operation, scope)
		}
	default:
		return string(c.Kind)
	}
}

func formatMoney(v float64) string {
	if v < 0 {
		return fmt.Sprintf("-$%.2f", -v)
	}
	return fmt.Sprintf("$%.2f", v)
}
