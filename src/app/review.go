package app

// ReviewReason explains why the review form is closed to a viewer.
type ReviewReason string

const (
	ReviewAllowed          ReviewReason = ""
	ReviewLoginRequired    ReviewReason = "Please log in to leave a review."
	ReviewPurchaseRequired ReviewReason = "You must purchase this product before writing a review."
	ReviewAlreadyReviewed  ReviewReason = "You have already reviewed this product."
	// ReviewUnavailable is shown when eligibility could not be determined.
	ReviewUnavailable ReviewReason = "Could not check review eligibility. Please try again later."
)

const MsgSelectRating = "Please select a rating."

// ReviewRejection is returned when a review submission fails the eligibility gate.
type ReviewRejection struct {
	Reason ReviewReason
}

func (e *ReviewRejection) Error() string {
	return string(e.Reason)
}
