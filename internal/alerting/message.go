package alerting

import (
	"fmt"
	"strings"

	"token-alerts/internal/evaluator"
	"token-alerts/internal/watchlist"
)

// Message is a rendered alert: a title block and a body block in Slack mrkdwn.
type Message struct {
	Title string
	Body  string
}

// BalanceAlert renders the low-balance alert for a candidate.
func BalanceAlert(c evaluator.Candidate) Message {
	account := c.Account.Hex()
	accountURL := c.Network.AddressURL(account)

	asset := "Native Token"
	balanceURL := accountURL
	description := fmt.Sprintf("The native token balance (e.g., ETH, POL, BNB) for %s on %s", c.Label, c.Network.Name)
	unit := "native token"
	if !c.Native {
		asset = c.Symbol
		balanceURL = c.Network.TokenURL(account, c.Token.Hex())
		description = fmt.Sprintf("The %s balance for %s on %s", c.Symbol, c.Label, c.Network.Name)
		unit = c.Symbol
	}

	b := strings.Builder{}
	b.WriteString("*[Description]*\n")
	b.WriteString(fmt.Sprintf("\t%s is <%s|%s> (below threshold of %s).\n", description, balanceURL, c.Balance.String(), c.Threshold.String()))
	b.WriteString("*[Impact]*\n")
	b.WriteString(fmt.Sprintf("\tLow balance may lead to transaction failures or delays in %s.\n", c.Label))
	b.WriteString("*[Action Needed]*\n")
	b.WriteString(fmt.Sprintf("\t1. Check %s's %s balance.\n", c.Label, unit))
	b.WriteString("\t2. Investigate recent withdrawals.\n")
	b.WriteString(fmt.Sprintf("\t3. Replenish %s if necessary.\n", unit))
	b.WriteString("*[Details]*\n")
	b.WriteString(fmt.Sprintf("\t1. %s: <%s|%s>.\n", c.Label, accountURL, account))
	b.WriteString(fmt.Sprintf("\t2. Guide: <%s|%s document>.\n", c.DocURL, c.Label))
	b.WriteString("*[Contact]*\n")
	b.WriteString(FormatContacts(c.Contacts))
	b.WriteString("*[Triggered by]*\n")
	b.WriteString(fmt.Sprintf("\tTransaction: <%s|%s>.", c.Network.TxURL(c.TxHash), c.TxHash))

	return Message{
		Title: fmt.Sprintf("*_(%s) %s Balance Below Threshold Alert ⚠️_*", c.Label, asset),
		Body:  b.String(),
	}
}

// HeartbeatAlert renders the periodic liveness message.
func HeartbeatAlert(count uint64) Message {
	return Message{
		Title: "*_Token Alerts - System Heartbeat 💓_*",
		Body:  fmt.Sprintf("Token Alerts has executed %d cycles. Balance monitoring is operating as expected.", count),
	}
}

// FormatContacts renders a numbered contact list, keeping configured order and
// dropping repeated Slack ids.
func FormatContacts(contacts []watchlist.Contact) string {
	b := strings.Builder{}
	seen := make(map[string]struct{}, len(contacts))
	n := 0
	for _, c := range contacts {
		key := strings.TrimSpace(c.SlackID)
		if key == "" {
			key = "name:" + c.Name
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		n++
		if c.SlackID == "" {
			b.WriteString(fmt.Sprintf("\t%d. %s\n", n, c.Name))
			continue
		}
		b.WriteString(fmt.Sprintf("\t%d. %s: <@%s>\n", n, c.Name, c.SlackID))
	}
	return b.String()
}
