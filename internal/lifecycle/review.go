package lifecycle

import (
	"strings"

	"github.com/dimitrije/raidroom-api/internal/models"
)

const legacyFailurePrefix = "FAILED:"

// ShouldClose reports whether an invited room has collected a review from
// every member.
func ShouldClose(status string, totalMembers, reviews int) bool {
	return status == models.RoomStatusInvited && totalMembers > 0 && reviews >= totalMembers
}

// ClampRating forces rating into [MinRating, MaxRating].
func ClampRating(rating int) int {
	if rating < models.MinRating {
		return models.MinRating
	}
	if rating > models.MaxRating {
		return models.MaxRating
	}
	return rating
}

// Outcome is the structured result of a review.
type Outcome struct {
	Outcome       string
	FailureReason *string
	Comment       string
}

// ResolveOutcome normalizes a submitted outcome. An empty outcome falls back
// to older clients' convention: a rating of 1 with a "FAILED: <reason>"
// comment is a failed outcome with the reason split out of the comment, and
// anything else counts as a success. rating must already be clamped.
func ResolveOutcome(rating int, outcome, failureReason, comment string) (Outcome, bool) {
	comment = strings.TrimSpace(comment)
	failureReason = strings.TrimSpace(failureReason)

	switch outcome {
	case models.OutcomeSuccess:
		return Outcome{Outcome: models.OutcomeSuccess, Comment: comment}, true
	case models.OutcomeFailed:
		return Outcome{Outcome: models.OutcomeFailed, FailureReason: optional(failureReason), Comment: comment}, true
	case "":
	default:
		return Outcome{}, false
	}

	if rest, ok := cutPrefixFold(comment, legacyFailurePrefix); ok && rating == models.MinRating {
		reason := strings.TrimSpace(rest)
		if failureReason != "" {
			reason = failureReason
		}
		return Outcome{Outcome: models.OutcomeFailed, FailureReason: optional(reason)}, true
	}
	return Outcome{Outcome: models.OutcomeSuccess, Comment: comment}, true
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
