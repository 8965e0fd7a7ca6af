package utils

import "strings"

var positiveKeywords = []string{
	"interested", "sounds good", "let's talk", "lets talk", "schedule",
	"book a call", "tell me more", "yes", "great", "love to", "happy to",
	"sign me up", "demo",
}

var negativeKeywords = []string{
	"not interested", "unsubscribe", "remove me", "stop emailing",
	"don't contact", "do not contact", "no thanks", "no thank you",
	"spam", "leave me alone",
}

// ClassifySentiment buckets a reply into positive, negative or neutral
// based on keyword matches. Negative phrases win over positive ones so
// "not interested" never reads as interest.
func ClassifySentiment(text string) string {
	lower := strings.ToLower(text)

	for _, kw := range negativeKeywords {
		if strings.Contains(lower, kw) {
			return "negative"
		}
	}
	for _, kw := range positiveKeywords {
		if strings.Contains(lower, kw) {
			return "positive"
		}
	}
	return "neutral"
}
