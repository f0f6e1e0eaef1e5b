package server

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"net/url"

	app "silkyroad/src/app"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var pageFiles embed.FS

var pageFuncs = template.FuncMap{
	"stars": app.RenderStars,
	"price": app.FormatPrice,
}

const loginPage = "/login.html"

// Outcomes of a review form post, carried back to the product page.
const (
	reviewSubmitted = "submitted"
	reviewInvalid   = "invalid"
)

func productPagePath(productID, outcome string) string {
	path := "/product/" + url.PathEscape(productID)
	if outcome != "" {
		path += "?review=" + outcome
	}
	return path
}

type reviewPanel struct {
	Open   bool
	Notice string
}

// ProductPage renders a listing with its reviews. The review form is only
// shown when the viewer passes the review gate.
func (a *AppHandler) ProductPage(c *gin.Context) {
	ctx := c.Request.Context()
	productID := c.Param("id")
	listing, err := a.services.Catalog.Get(ctx, productID)
	var notFound *app.NotFoundError
	if errors.As(err, &notFound) {
		c.HTML(http.StatusNotFound, "notfound.html", gin.H{"Title": "Product not found"})
		return
	}
	if err != nil {
		abortWithError(c, err, http.StatusInternalServerError)
		return
	}
	reviews, err := a.services.ReviewList.ListByProduct(ctx, productID)
	if err != nil {
		loggerFrom(c).WithError(err).Warn("could not load reviews")
	}

	screen := app.NewScreen()
	reason := app.ReviewLoginRequired
	identity := a.sessions.optional(c)
	if identity != nil {
		screen, _ = app.Transition(screen, app.Event{Kind: app.EventSignedIn})
		reason, err = a.services.Reviews.Check(ctx, identity.ID, productID)
		if err != nil {
			loggerFrom(c).WithError(err).Warn("review eligibility check failed")
			reason = app.ReviewUnavailable
		}
	}
	screen = reviewScreen(screen, reason, identity != nil && c.Query("review") == reviewSubmitted)
	if c.Query("review") == reviewInvalid && screen.State == app.StateReviewing {
		screen.Notice = app.MsgSelectRating
	}

	c.HTML(http.StatusOK, "product.html", gin.H{
		"Title":   listing.Title,
		"Product": listing,
		"Reviews": reviewViews(reviews),
		"Screen":  screen,
		"Review":  reviewPanel{Open: screen.State == app.StateReviewing, Notice: screen.Notice},
	})
}

// DashboardPage renders the seller overview for the signed-in identity.
func (a *AppHandler) DashboardPage(c *gin.Context) {
	identity := a.sessions.optional(c)
	if identity == nil {
		c.Redirect(http.StatusFound, a.siteURL+loginPage)
		return
	}
	ctx := c.Request.Context()
	listings, err := a.services.Catalog.ListBySeller(ctx, identity.ID)
	if err != nil {
		abortWithError(c, err, http.StatusInternalServerError)
		return
	}
	profile, err := a.services.Profiles.Get(ctx, identity.ID)
	if err != nil {
		loggerFrom(c).WithError(err).Debug("no profile yet")
		profile = &app.Profile{ID: identity.ID}
	}
	screen, _ := app.Transition(app.NewScreen(), app.Event{Kind: app.EventSignedIn, Listings: len(listings)})

	c.HTML(http.StatusOK, "dashboard.html", gin.H{
		"Title":    "Dashboard",
		"Identity": identity,
		"Profile":  profile,
		"Products": listings,
		"Screen":   screen,
	})
}

// reviewScreen opens the review step with the gate's verdict. A completed
// submission runs the step to its end so the page shows the confirmation.
func reviewScreen(screen app.Screen, reason app.ReviewReason, submitted bool) app.Screen {
	if submitted {
		opened, err := app.Transition(screen, app.Event{Kind: app.EventReviewOpened, Reason: app.ReviewAllowed})
		if err == nil && opened.State == app.StateReviewing {
			if done, err := app.Transition(opened, app.Event{Kind: app.EventReviewSubmitted}); err == nil {
				return done
			}
		}
	}
	next, _ := app.Transition(screen, app.Event{Kind: app.EventReviewOpened, Reason: reason})
	return next
}
