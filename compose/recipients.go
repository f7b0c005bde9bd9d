package compose

import (
	"net/mail"
	"strings"

	"tourmail/models"
)

// Recipients is the derived To/Cc set for a compose surface.
type Recipients struct {
	To []string `json:"to"`
	Cc []string `json:"cc"`
}

// ResolveRecipients computes the To/Cc participant sets for the given compose
// mode. The operator's own address never appears in a derived set; forward
// mode seeds both sets empty for the operator to fill in.
func ResolveRecipients(mode models.ComposeMode, msg *models.Message, history []*models.Message, operator string) Recipients {
	switch mode {
	case models.ModeReply:
		return resolveReply(msg, history, operator)
	case models.ModeReplyAll:
		return resolveReplyAll(msg, history, operator)
	default:
		return Recipients{To: []string{}, Cc: []string{}}
	}
}

func resolveReply(msg *models.Message, history []*models.Message, operator string) Recipients {
	if !msg.IsFromOperator {
		return Recipients{To: []string{BareAddress(msg.From)}, Cc: []string{}}
	}

	// Replying to our own sent message: target the first external address
	// among its recipients.
	for _, to := range msg.To {
		if !sameAddress(to, operator) {
			return Recipients{To: []string{BareAddress(to)}, Cc: []string{}}
		}
	}

	// Fall back to scanning thread history for any other participant,
	// preferring the most recently seen.
	if ext := externalParticipant(history, operator); ext != "" {
		return Recipients{To: []string{ext}, Cc: []string{}}
	}

	// No other participant anywhere in the thread. Leave To empty for the
	// operator to fill in rather than seeding their own address.
	return Recipients{To: []string{}, Cc: []string{}}
}

func resolveReplyAll(msg *models.Message, history []*models.Message, operator string) Recipients {
	var to string
	if msg.IsFromOperator {
		for _, t := range msg.To {
			if !sameAddress(t, operator) {
				to = BareAddress(t)
				break
			}
		}
		if to == "" {
			to = externalParticipant(history, operator)
		}
	} else {
		to = BareAddress(msg.From)
	}

	seen := map[string]bool{BareAddress(operator): true}
	toSet := []string{}
	if to != "" {
		toSet = append(toSet, to)
		seen[to] = true
	}
	cc := []string{}
	for _, addr := range append(append([]string{}, msg.To...), msg.Cc...) {
		bare := BareAddress(addr)
		if bare == "" || seen[bare] {
			continue
		}
		seen[bare] = true
		cc = append(cc, bare)
	}

	return Recipients{To: toSet, Cc: cc}
}

// externalParticipant scans thread history most-recent-first for any address
// other than the operator's.
func externalParticipant(history []*models.Message, operator string) string {
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		for _, cand := range append([]string{m.From}, m.To...) {
			if cand != "" && !sameAddress(cand, operator) {
				return BareAddress(cand)
			}
		}
	}
	return ""
}

// BareAddress strips display-name decoration like "Name <addr>" and lowercases
// the result so addresses compare case-insensitively.
func BareAddress(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if a, err := mail.ParseAddress(s); err == nil {
		return strings.ToLower(a.Address)
	}

	// Decorated addresses net/mail rejects (unquoted names, stray commas)
	if i := strings.LastIndex(s, "<"); i >= 0 {
		if j := strings.Index(s[i:], ">"); j > 0 {
			return strings.ToLower(strings.TrimSpace(s[i+1 : i+j]))
		}
	}

	return strings.ToLower(s)
}

func sameAddress(a, b string) bool {
	return BareAddress(a) == BareAddress(b)
}
