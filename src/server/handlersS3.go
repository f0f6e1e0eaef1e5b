package server

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	app "silkyroad/src/app"
	"silkyroad/src/workflow"

	"github.com/gin-gonic/gin"
)

type ProfileBody struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DisplayName string `json:"display_name"`
	PaypalEmail string `json:"paypal_email"`
}

// multipartSlack covers form fields and the thumbnail on top of the file cap.
const multipartSlack = 8 << 20

func (a *AppHandler) ListSellerProducts(c *gin.Context) {
	identity := a.sessions.optional(c)
	listings, err := a.services.Catalog.ListBySeller(c.Request.Context(), identity.ID)
	if err != nil {
		abortWithError(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": listings})
}

// PostProduct accepts the dashboard upload form: text fields plus optional
// "thumbnail" and "file" parts.
func (a *AppHandler) PostProduct(c *gin.Context) {
	identity := a.sessions.optional(c)
	if limit := a.uploadLimit; limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartSlack)
	}

	thumbnail, closeThumb, err := formUpload(c, "thumbnail")
	if err != nil {
		abortWithError(c, err, http.StatusBadRequest)
		return
	}
	defer closeThumb()
	file, closeFile, err := formUpload(c, "file")
	if err != nil {
		abortWithError(c, err, http.StatusBadRequest)
		return
	}
	defer closeFile()

	listing, err := a.services.Listings.Publish(c.Request.Context(), workflow.NewListing{
		SellerID:    identity.ID,
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Price:       c.PostForm("price"),
		Category:    c.PostForm("category"),
		SubCategory: c.PostForm("sub_category"),
		ExternalURL: c.PostForm("external_url"),
		Thumbnail:   thumbnail,
		File:        file,
	})
	if err != nil {
		abortWithError(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Product uploaded successfully!", "product": listing})
}

// formUpload opens an optional multipart file part.
func formUpload(c *gin.Context, field string) (*workflow.Upload, func(), error) {
	header, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, func() {}, nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return nil, func() {}, &app.ValidationError{Field: field, Message: "File is too large (max 10MB)."}
	}
	if err != nil {
		return nil, func() {}, &app.ValidationError{Field: field, Message: fmt.Sprintf("can not read %s: %v", field, err)}
	}
	body, err := header.Open()
	if err != nil {
		return nil, func() {}, fmt.Errorf("open %s: %w", field, err)
	}
	return &workflow.Upload{
		Name:        header.Filename,
		Size:        header.Size,
		ContentType: contentType(header),
		Body:        body,
	}, func() { _ = body.Close() }, nil
}

func contentType(header *multipart.FileHeader) string {
	return strings.TrimSpace(header.Header.Get("Content-Type"))
}

func (a *AppHandler) GetProfile(c *gin.Context) {
	identity := a.sessions.optional(c)
	profile, err := a.services.Profiles.Get(c.Request.Context(), identity.ID)
	if err != nil {
		abortWithError(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile, "email": identity.Email})
}

func (a *AppHandler) PutProfile(c *gin.Context) {
	identity := a.sessions.optional(c)
	var body ProfileBody
	if err := bindJSON(c, &body); err != nil {
		abortWithError(c, err, http.StatusBadRequest)
		return
	}
	profile, err := a.services.Profiles.Upsert(c.Request.Context(), app.Profile{
		ID:          identity.ID,
		FirstName:   strings.TrimSpace(body.FirstName),
		LastName:    strings.TrimSpace(body.LastName),
		DisplayName: strings.TrimSpace(body.DisplayName),
		PaypalEmail: strings.TrimSpace(body.PaypalEmail),
	})
	if err != nil {
		abortWithError(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Profile saved", "profile": profile})
}

func (a *AppHandler) GetSales(c *gin.Context) {
	identity := a.sessions.optional(c)
	summary, err := workflow.Sales(c.Request.Context(), a.services.Orders, identity.ID)
	if err != nil {
		abortWithError(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, summary)
}
