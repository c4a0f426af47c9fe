package chat

import (
	"regexp"
	"strings"
)

// schedulingPatterns matches visitor messages asking to set up a meeting.
var schedulingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(book|schedule|set\s*up|arrange)\b.*\b(call|meeting|consult(ation)?|appointment|time|chat)\b`),
	regexp.MustCompile(`(?i)\bappointment\b`),
	regexp.MustCompile(`(?i)\bconsultation\b`),
	regexp.MustCompile(`(?i)\b(available|availability|openings?|open\s*slots?)\b`),
	regexp.MustCompile(`(?i)\bwhen\s*(are|can)\s*(you|we)\s*(free|meet|talk)\b`),
	regexp.MustCompile(`(?i)\b(talk|speak|meet)\s*(to|with)\s*(someone|a\s*(person|human|designer))\b`),
	regexp.MustCompile(`(?i)\bget\s*on\s*(a|the)\s*calendar\b`),
}

// IsSchedulingRequest returns true when the message should start the
// booking flow instead of going to the LLM.
func IsSchedulingRequest(message string) bool {
	message = strings.TrimSpace(message)
	if message == "" {
		return false
	}
	for _, pat := range schedulingPatterns {
		if pat.MatchString(message) {
			return true
		}
	}
	return false
}
