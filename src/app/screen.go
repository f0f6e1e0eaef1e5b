package app

import (
	"errors"
	"fmt"
)

type ScreenState string

const (
	StateAnonymous    ScreenState = "anonymous"
	StateNoListings   ScreenState = "authenticated-no-listings"
	StateWithListings ScreenState = "authenticated-with-listings"
	StateReviewing    ScreenState = "reviewing"
	StatePurchasing   ScreenState = "purchasing"
)

const (
	noticeReviewSubmitted = "Review submitted successfully!"
	noticePaymentComplete = "Payment complete. Thank you for your purchase!"
	noticeLoginToBuy      = "Please log in to purchase."
)

type EventKind string

const (
	EventSignedIn         EventKind = "signed-in"
	EventSignedOut        EventKind = "signed-out"
	EventListingCreated   EventKind = "listing-created"
	EventListingDeleted   EventKind = "listing-deleted"
	EventReviewOpened     EventKind = "review-opened"
	EventReviewSubmitted  EventKind = "review-submitted"
	EventPurchaseStarted  EventKind = "purchase-started"
	EventPurchaseCaptured EventKind = "purchase-captured"
	EventCancelled        EventKind = "cancelled"
)

var ErrInvalidTransition = errors.New("invalid screen transition")

// Screen is the view model shared by the dashboard and product pages.
type Screen struct {
	State    ScreenState `json:"state"`
	Listings int         `json:"listings"`
	// Return is the state restored when a reviewing or purchasing step ends.
	Return ScreenState `json:"-"`
	Notice string      `json:"notice,omitempty"`
}

// Event drives a Screen. Listings is read by EventSignedIn; Reason by EventReviewOpened.
type Event struct {
	Kind     EventKind
	Listings int
	Reason   ReviewReason
}

func NewScreen() Screen {
	return Screen{State: StateAnonymous}
}

// Authenticated reports whether the screen belongs to a signed-in identity.
func (s Screen) Authenticated() bool {
	return s.State != StateAnonymous
}

// Transition is a pure function from the current screen and an event to the
// next screen. The input screen is returned unchanged with ErrInvalidTransition
// when the event does not apply.
func Transition(s Screen, e Event) (Screen, error) {
	next := s
	next.Notice = ""

	switch e.Kind {
	case EventSignedIn:
		if s.State != StateAnonymous {
			break
		}
		next.Listings = e.Listings
		next.State = listingState(e.Listings)
		return next, nil

	case EventSignedOut:
		return NewScreen(), nil

	case EventListingCreated:
		if s.State != StateNoListings && s.State != StateWithListings {
			break
		}
		next.Listings = s.Listings + 1
		next.State = StateWithListings
		return next, nil

	case EventListingDeleted:
		if s.State != StateWithListings {
			break
		}
		next.Listings = s.Listings - 1
		next.State = listingState(next.Listings)
		return next, nil

	case EventReviewOpened:
		if s.State == StateAnonymous {
			next.Notice = string(ReviewLoginRequired)
			return next, nil
		}
		if !settled(s.State) {
			break
		}
		if e.Reason != ReviewAllowed {
			next.Notice = string(e.Reason)
			return next, nil
		}
		next.Return = s.State
		next.State = StateReviewing
		return next, nil

	case EventReviewSubmitted:
		if s.State != StateReviewing {
			break
		}
		next.State, next.Return = s.Return, ""
		next.Notice = noticeReviewSubmitted
		return next, nil

	case EventPurchaseStarted:
		if s.State == StateAnonymous {
			next.Notice = noticeLoginToBuy
			return next, nil
		}
		if !settled(s.State) {
			break
		}
		next.Return = s.State
		next.State = StatePurchasing
		return next, nil

	case EventPurchaseCaptured:
		if s.State != StatePurchasing {
			break
		}
		next.State, next.Return = s.Return, ""
		next.Notice = noticePaymentComplete
		return next, nil

	case EventCancelled:
		if s.State != StateReviewing && s.State != StatePurchasing {
			break
		}
		next.State, next.Return = s.Return, ""
		return next, nil
	}

	return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, e.Kind, s.State)
}

func listingState(n int) ScreenState {
	if n > 0 {
		return StateWithListings
	}
	return StateNoListings
}

func settled(s ScreenState) bool {
	return s == StateNoListings || s == StateWithListings
}
