package server

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	app "silkyroad/src/app"
	cfg "silkyroad/src/configuration"
	"silkyroad/src/relay"
	"silkyroad/src/workflow"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type PayoutHandler struct {
	sender workflow.PayoutSender
	log    logrus.FieldLogger
}

// NewPayoutRouter serves the seller payout process. It shares no state with
// the marketplace router.
func NewPayoutRouter(sender workflow.PayoutSender, log logrus.FieldLogger) *gin.Engine {
	handler := &PayoutHandler{sender: sender, log: log}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery(), requestLogger(log), instrument())
	router.NoMethod(func(c *gin.Context) {
		abortWithError(c, &app.MethodNotAllowedError{Method: c.Request.Method}, http.StatusMethodNotAllowed)
	})
	router.NoRoute(func(c *gin.Context) { c.JSON(http.StatusNotFound, gin.H{"error": "Not Found"}) })

	router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "success"}) })
	router.POST("/release-payout", handler.ReleasePayout)
	return router
}

func (p *PayoutHandler) ReleasePayout(c *gin.Context) {
	var body workflow.PayoutRelease
	if err := bindJSON(c, &body); err != nil {
		abortWithError(c, err, http.StatusBadRequest)
		return
	}
	data, err := workflow.ReleasePayout(c.Request.Context(), p.sender, body)
	if err != nil {
		abortWithError(c, err, http.StatusInternalServerError)
		return
	}
	loggerFrom(c).WithField("order_id", body.OrderID).Info("payout released")
	c.JSON(http.StatusOK, gin.H{"ok": true, "data": data})
}

// RunPayoutServer serves the payout process until SIGINT or SIGTERM.
func RunPayoutServer(config *cfg.Properties, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	paypal, err := relay.NewPayPal(config.PayPal, log)
	if err != nil {
		return err
	}
	return serve(ctx, config.Payout.Port, config.Server.ReadTimeout, NewPayoutRouter(paypal, log), log)
}
