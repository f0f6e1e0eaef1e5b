package server

import (
	"errors"
	"net/http"

	app "silkyroad/src/app"
	cfg "silkyroad/src/configuration"
	"silkyroad/src/relay"
	"silkyroad/src/workflow"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type (
	AppHandler struct {
		services    *Services
		sessions    *sessionReader
		siteURL     string
		uploadLimit int64
		log         logrus.FieldLogger
	}

	DeleteAccountBody struct {
		UserID string `json:"user_id"`
	}

	DeleteProductBody struct {
		ProductID string `json:"product_id"`
		SellerID  string `json:"seller_id"`
	}

	PasswordBody struct {
		Password string `json:"password"`
	}
)

func NewHandler(config *cfg.Properties, services *Services, sessions *sessionReader, log logrus.FieldLogger) *AppHandler {
	return &AppHandler{
		services:    services,
		sessions:    sessions,
		siteURL:     config.SiteURL,
		uploadLimit: config.S3.MaxUploadBytes,
		log:         log,
	}
}

func (a *AppHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// DeleteAccount runs the account cascade for the user id in the body.
func (a *AppHandler) DeleteAccount(c *gin.Context) {
	var body DeleteAccountBody
	if err := bindJSON(c, &body); err != nil {
		abortWithError(c, err, http.StatusBadRequest)
		return
	}
	if body.UserID == "" {
		abortWithError(c, &app.ValidationError{Message: "Missing user_id"}, http.StatusBadRequest)
		return
	}

	_, err := a.services.Accounts.Run(c.Request.Context(), body.UserID)
	var partial *workflow.PartialCascadeError
	switch {
	case errors.As(err, &partial):
		c.JSON(http.StatusOK, gin.H{"success": true, "partial": true, "failed_steps": partial.Steps})
	case err != nil:
		abortWithError(c, err, http.StatusBadRequest)
	default:
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func (a *AppHandler) DeleteProductUsage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "message": "Use POST with { product_id, seller_id } to delete a product."})
}

func (a *AppHandler) DeleteProduct(c *gin.Context) {
	var body DeleteProductBody
	if err := bindJSON(c, &body); err != nil {
		abortWithError(c, err, http.StatusBadRequest)
		return
	}
	if err := a.services.Listings.Delete(c.Request.Context(), body.ProductID, body.SellerID); err != nil {
		abortWithError(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (a *AppHandler) Contact(c *gin.Context) {
	if err := a.services.Contact.Ready(); err != nil {
		abortWithError(c, err, http.StatusInternalServerError)
		return
	}
	var msg relay.ContactMessage
	if err := bindJSON(c, &msg); err != nil {
		abortWithError(c, err, http.StatusBadRequest)
		return
	}
	if err := a.services.Contact.SendContact(c.Request.Context(), msg); err != nil {
		abortWithError(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Email sent"})
}

func (a *AppHandler) SendEmail(c *gin.Context) {
	var msg relay.Message
	if err := bindJSON(c, &msg); err != nil {
		abortWithError(c, err, http.StatusBadRequest)
		return
	}
	info, err := a.services.Mail.Send(c.Request.Context(), msg)
	if err != nil {
		abortWithError(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "info": info})
}

func (a *AppHandler) PasswordStrength(c *gin.Context) {
	var body PasswordBody
	if err := bindJSON(c, &body); err != nil {
		abortWithError(c, err, http.StatusBadRequest)
		return
	}
	score, verdict := app.PasswordStrength(body.Password)
	c.JSON(http.StatusOK, gin.H{"score": score, "verdict": verdict})
}
