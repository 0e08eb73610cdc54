package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var statusAliases = map[string]TicketStatus{
	"open":           TicketStatusOpen,
	"aberto":         TicketStatusOpen,
	"novo":           TicketStatusOpen,
	"in_progress":    TicketStatusInProgress,
	"in progress":    TicketStatusInProgress,
	"em andamento":   TicketStatusInProgress,
	"andamento":      TicketStatusInProgress,
	"em atendimento": TicketStatusInProgress,
	"em progresso":   TicketStatusInProgress,
	"concluded":      TicketStatusConcluded,
	"concluido":      TicketStatusConcluded,
	"fechado":        TicketStatusConcluded,
	"resolvido":      TicketStatusConcluded,
	"closed":         TicketStatusConcluded,
	"done":           TicketStatusConcluded,
	"rejected":       TicketStatusRejected,
	"rejeitado":      TicketStatusRejected,
	"recusado":       TicketStatusRejected,
	"cancelado":      TicketStatusRejected,
}

var priorityAliases = map[string]TicketPriority{
	"low":     TicketPriorityLow,
	"baixa":   TicketPriorityLow,
	"medium":  TicketPriorityMedium,
	"media":   TicketPriorityMedium,
	"normal":  TicketPriorityMedium,
	"high":    TicketPriorityHigh,
	"alta":    TicketPriorityHigh,
	"urgent":  TicketPriorityUrgent,
	"urgente": TicketPriorityUrgent,
	"critica": TicketPriorityUrgent,
}

var statusLabels = map[TicketStatus]string{
	TicketStatusOpen:       "Aberto",
	TicketStatusInProgress: "Em Andamento",
	TicketStatusConcluded:  "Concluído",
	TicketStatusRejected:   "Rejeitado",
	TicketStatusOther:      "Outro",
}

var priorityLabels = map[TicketPriority]string{
	TicketPriorityLow:    "Baixa",
	TicketPriorityMedium: "Média",
	TicketPriorityHigh:   "Alta",
	TicketPriorityUrgent: "Urgente",
}

// ParseStatus normalizes a stored or user supplied status string. Casing,
// surrounding whitespace, accents and underscores/dashes are ignored.
func ParseStatus(raw string) (TicketStatus, bool) {
	key := foldKey(raw)
	if key == "" {
		return "", false
	}
	if status, ok := statusAliases[key]; ok {
		return status, true
	}
	if status, ok := statusAliases[strings.ReplaceAll(key, "_", " ")]; ok {
		return status, true
	}
	return "", false
}

// NormalizeStatus is ParseStatus collapsed into the OTHER bucket.
func NormalizeStatus(raw string) TicketStatus {
	if status, ok := ParseStatus(raw); ok {
		return status
	}
	return TicketStatusOther
}

// ParsePriority normalizes a priority string.
func ParsePriority(raw string) (TicketPriority, bool) {
	priority, ok := priorityAliases[foldKey(raw)]
	return priority, ok
}

// Label returns the legacy display string for the status.
func (s TicketStatus) Label() string {
	if label, ok := statusLabels[NormalizeStatus(string(s))]; ok {
		return label
	}
	return string(s)
}

// Label returns the legacy display string for the priority.
func (p TicketPriority) Label() string {
	if normalized, ok := ParsePriority(string(p)); ok {
		return priorityLabels[normalized]
	}
	return string(p)
}

func foldKey(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return ""
	}
	stripped, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), key)
	if err == nil {
		key = stripped
	}
	key = strings.ReplaceAll(key, "-", "_")
	return strings.Join(strings.Fields(key), " ")
}
