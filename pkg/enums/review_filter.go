package enums

import "strings"

// ReviewFilter selects reviews in the admin moderation queue.
type ReviewFilter string

const (
	ReviewFilterPending  ReviewFilter = "pending"
	ReviewFilterApproved ReviewFilter = "approved"
	ReviewFilterAll      ReviewFilter = "all"
)

var reviewFilters = values[ReviewFilter]{ReviewFilterPending, ReviewFilterApproved, ReviewFilterAll}

// ParseReviewFilter treats blank input as pending.
func ParseReviewFilter(value string) (ReviewFilter, error) {
	if strings.TrimSpace(value) == "" {
		return ReviewFilterPending, nil
	}
	return reviewFilters.parse("review filter", value)
}
