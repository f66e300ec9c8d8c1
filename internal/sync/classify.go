package sync

import (
	"regexp"
	"strings"
)

// Classification is the outcome of one message classification pass.
type Classification string

const (
	ClassOnlineAssessment Classification = "OnlineAssessment"
	ClassInterview        Classification = "Interview"
	ClassRejected         Classification = "Rejected"
	ClassThankYou         Classification = "ThankYou"
	ClassUnclassified     Classification = "Unclassified"
)

// Assessment detection is deliberately strict: known platforms plus explicit
// assessment phrasing only. A single generic keyword is not enough.
var assessmentPhrases = []string{
	"codility", "hackerrank", "codesignal",
	"online assessment", "technical assessment", "coding challenge",
	"programming test", "assessment test", "coding test", "algorithm test",
	"take-home challenge", "technical challenge",
}

var (
	interviewPattern = regexp.MustCompile(`schedule.*interview|interview.*schedule|availability.*interview|next steps.*interview|recruiter screen|phone screen|video interview|onsite interview|interview invitation|interview confirmation|interview request|interview call|interview meeting`)

	// Routine application receipts often mention interviews in boilerplate;
	// acknowledgment language suppresses the interview match.
	acknowledgmentPattern = regexp.MustCompile(`thank you|thanks|application received|application submitted`)

	rejectionPattern = regexp.MustCompile(`unfortunately|regret to inform|not moving forward|not selected|not proceeding|rejection|declined|not a fit|position closed|no longer|decided to move forward|other candidates|not advance|not proceed|not continue|filled the position|position has been filled|selected another candidate|update about your application|application update|status update`)

	thankYouPattern = regexp.MustCompile(`thank you for applying|thanks for applying|thank you for your application|thanks for your application|application received|application submitted`)
)

// Classify maps a message's subject and body to one lifecycle event kind.
// Evaluation order is a policy choice: assessment and interview signals win
// over rejection language, because rejection phrases like "no longer" show up
// in messages that are actually inviting the candidate to a next step.
func Classify(subject, body string) Classification {
	combined := strings.ToLower(subject) + " " + strings.ToLower(body)

	for _, phrase := range assessmentPhrases {
		if strings.Contains(combined, phrase) {
			return ClassOnlineAssessment
		}
	}

	if interviewPattern.MatchString(combined) && !acknowledgmentPattern.MatchString(combined) {
		return ClassInterview
	}

	if rejectionPattern.MatchString(combined) {
		return ClassRejected
	}

	if thankYouPattern.MatchString(combined) {
		return ClassThankYou
	}

	return ClassUnclassified
}
