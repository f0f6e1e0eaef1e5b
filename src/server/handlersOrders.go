package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	app "silkyroad/src/app"
	"silkyroad/src/workflow"

	"github.com/gin-gonic/gin"
)

type (
	CaptureBody struct {
		ProductID string          `json:"product_id"`
		Details   json.RawMessage `json:"details"`
	}

	// ReviewBody arrives as JSON from scripts or as a form post from the
	// product page.
	ReviewBody struct {
		Rating     int    `json:"rating" form:"rating"`
		ReviewText string `json:"review_text" form:"review_text"`
	}

	ReviewView struct {
		ID         string     `json:"id,omitempty"`
		Rating     int        `json:"rating"`
		ReviewText string     `json:"review_text"`
		Author     string     `json:"author"`
		CreatedAt  *time.Time `json:"created_at,omitempty"`
	}
)

func reviewViews(reviews []app.Review) []ReviewView {
	views := make([]ReviewView, 0, len(reviews))
	for _, r := range reviews {
		views = append(views, ReviewView{
			ID:         r.ID,
			Rating:     r.Rating,
			ReviewText: r.ReviewText,
			Author:     r.AuthorName(),
			CreatedAt:  r.CreatedAt,
		})
	}
	return views
}

// CaptureOrder records the order for a completed checkout capture.
func (a *AppHandler) CaptureOrder(c *gin.Context) {
	var body CaptureBody
	if err := bindJSON(c, &body); err != nil {
		abortWithError(c, err, http.StatusBadRequest)
		return
	}
	result, err := a.services.Captures.Record(c.Request.Context(), workflow.CaptureInput{
		ProductID: body.ProductID,
		Buyer:     a.sessions.optional(c),
		Details:   body.Details,
	})
	if err != nil {
		abortWithError(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "order": result.Order, "duplicate": result.Duplicate})
}

func (a *AppHandler) GetProduct(c *gin.Context) {
	listing, err := a.services.Catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": listing, "price": app.FormatPrice(listing.PriceCents)})
}

func (a *AppHandler) ListReviews(c *gin.Context) {
	reviews, err := a.services.ReviewList.ListByProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": reviewViews(reviews)})
}

func (a *AppHandler) ReviewEligibility(c *gin.Context) {
	var userID string
	if identity := a.sessions.optional(c); identity != nil {
		userID = identity.ID
	}
	reason, err := a.services.Reviews.Check(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		abortWithError(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"eligible": reason == app.ReviewAllowed, "reason": reason})
}

func (a *AppHandler) SubmitReview(c *gin.Context) {
	productID := c.Param("id")
	fromPage := isFormPost(c)

	var body ReviewBody
	if err := bindBody(c, &body); err != nil {
		abortWithError(c, err, http.StatusBadRequest)
		return
	}
	var userID string
	if identity := a.sessions.optional(c); identity != nil {
		userID = identity.ID
	}
	review, err := a.services.Reviews.Submit(c.Request.Context(), userID, productID, body.Rating, body.ReviewText)

	if fromPage {
		var (
			validation *app.ValidationError
			rejection  *app.ReviewRejection
		)
		switch {
		case err == nil:
			c.Redirect(http.StatusSeeOther, productPagePath(productID, reviewSubmitted))
			return
		case errors.As(err, &validation):
			c.Redirect(http.StatusSeeOther, productPagePath(productID, reviewInvalid))
			return
		case errors.As(err, &rejection):
			// The page re-runs the gate and shows the reason.
			c.Redirect(http.StatusSeeOther, productPagePath(productID, ""))
			return
		}
	}
	if err != nil {
		abortWithError(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "review": review})
}
