package server

import (
	"errors"
	"net/http"

	app "silkyroad/src/app"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/sirupsen/logrus"
)

// abortWithError writes the JSON failure body for err. backendStatus is the
// status used for BackendError, which differs per endpoint.
func abortWithError(c *gin.Context, err error, backendStatus int) {
	status := app.StatusCode(err, backendStatus)
	body := gin.H{"error": err.Error()}

	var (
		backend   *app.BackendError
		relayErr  *app.RelayError
		rejection *app.ReviewRejection
	)
	switch {
	case errors.Is(err, app.ErrUnauthenticated):
		status = http.StatusUnauthorized
		body["error"] = "Authentication required"
	case errors.As(err, &rejection):
		status = http.StatusConflict
		if rejection.Reason == app.ReviewLoginRequired {
			status = http.StatusUnauthorized
		}
		body["reason"] = rejection.Reason
	case errors.As(err, &relayErr):
		status = http.StatusInternalServerError
		if relayErr.Details != nil {
			body["details"] = relayErr.Details
		}
	case errors.As(err, &backend):
		if backend.Details != nil {
			body["details"] = backend.Details
		}
	}

	_ = c.Error(err)
	if status >= http.StatusInternalServerError {
		loggerFrom(c).WithFields(logrus.Fields{"status": status, "path": c.Request.URL.Path}).WithError(err).Error("request error")
	}
	c.AbortWithStatusJSON(status, body)
}

// bindJSON decodes the request body, reporting malformed JSON as a
// ValidationError.
func bindJSON(c *gin.Context, out any) error {
	if err := c.ShouldBindJSON(out); err != nil {
		return &app.ValidationError{Message: "Invalid JSON body"}
	}
	return nil
}

// bindBody decodes JSON or form-encoded bodies by content type.
func bindBody(c *gin.Context, out any) error {
	if err := c.ShouldBind(out); err != nil {
		return &app.ValidationError{Message: "Invalid request body"}
	}
	return nil
}

func isFormPost(c *gin.Context) bool {
	ct := c.ContentType()
	return ct == binding.MIMEPOSTForm || ct == binding.MIMEMultipartPOSTForm
}

func loggerFrom(c *gin.Context) logrus.FieldLogger {
	if v, ok := c.Get(loggerKey); ok {
		if log, ok := v.(logrus.FieldLogger); ok {
			return log
		}
	}
	return logrus.StandardLogger()
}
