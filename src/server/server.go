package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	app "silkyroad/src/app"
	cfg "silkyroad/src/configuration"
	"silkyroad/src/relay"
	db "silkyroad/src/repository"
	"silkyroad/src/workflow"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type (
	AccountRemover interface {
		Run(ctx context.Context, userID string) (*workflow.CascadeReport, error)
	}

	ListingManager interface {
		Delete(ctx context.Context, productID, sellerID string) error
		Publish(ctx context.Context, in workflow.NewListing) (*app.Listing, error)
	}

	Catalog interface {
		Get(ctx context.Context, id string) (*app.Listing, error)
		ListBySeller(ctx context.Context, sellerID string) ([]app.Listing, error)
	}

	ReviewService interface {
		Check(ctx context.Context, userID, productID string) (app.ReviewReason, error)
		Submit(ctx context.Context, userID, productID string, rating int, text string) (*app.Review, error)
	}

	ReviewLister interface {
		ListByProduct(ctx context.Context, productID string) ([]app.Review, error)
	}

	CaptureService interface {
		Record(ctx context.Context, in workflow.CaptureInput) (*workflow.CaptureResult, error)
	}

	ProfileStore interface {
		Get(ctx context.Context, id string) (*app.Profile, error)
		Upsert(ctx context.Context, profile app.Profile) (*app.Profile, error)
	}

	ContactRelay interface {
		Ready() error
		SendContact(ctx context.Context, msg relay.ContactMessage) error
	}

	MailRelay interface {
		Send(ctx context.Context, msg relay.Message) (*relay.SendInfo, error)
	}

	SessionProvider interface {
		SignUp(ctx context.Context, req db.SignUpRequest) (*app.Identity, error)
		SignInWithPassword(ctx context.Context, email, password string) (*db.Session, error)
		SignInWithIDToken(ctx context.Context, provider, idToken, nonce string) (*db.Session, error)
		SignOut(ctx context.Context, accessToken string) error
		ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	}

	// Services are the explicit handles every handler works through.
	Services struct {
		Identities db.AuthDB
		Sessions   SessionProvider
		Accounts   AccountRemover
		Listings   ListingManager
		Catalog    Catalog
		Reviews    ReviewService
		ReviewList ReviewLister
		Captures   CaptureService
		Profiles   ProfileStore
		Orders     workflow.PaidOrderLister
		Contact    ContactRelay
		Mail       MailRelay
		// Google is nil when Google sign-in is not configured.
		Google *GoogleSignIn
	}
)

// NewServices builds every backend handle from configuration.
func NewServices(ctx context.Context, config *cfg.Properties, log *logrus.Logger) (*Services, error) {
	backend, err := db.NewClient(config.Backend, log)
	if err != nil {
		return nil, err
	}
	clientS3, err := app.NewMinioS3Client(
		config.S3.Host,
		config.S3.AccessKey,
		config.S3.SecretKey,
		config.S3.Region,
		config.S3.Bucket,
		config.S3.UseSSL,
		log)
	if err != nil {
		return nil, fmt.Errorf("could not connect to minio: %w", err)
	}

	auth := db.NewAuthClient(backend)
	listings := db.NewListingRepository(backend)
	orders := db.NewOrderRepository(backend)
	reviews := db.NewReviewRepository(backend)

	var verifier workflow.CaptureVerifier
	if config.PayPal.Configured() {
		paypal, err := relay.NewPayPal(config.PayPal, log)
		if err != nil {
			return nil, err
		}
		verifier = paypal
	} else {
		log.Warn("PayPal credentials missing, captures are recorded without provider verification")
	}

	var google *GoogleSignIn
	if config.Auth.ID != "" {
		google, err = NewGoogleSignIn(ctx, config.Auth)
		if err != nil {
			log.WithError(err).Error("google sign-in disabled")
		}
	}

	return &Services{
		Identities: db.NewTokenVerifier(config.Backend.JWTSecret, auth),
		Sessions:   auth,
		Accounts:   workflow.NewCascade(listings, orders, clientS3, auth, log),
		Listings:   workflow.NewListings(listings, clientS3, backend.URL(), config.S3.MaxUploadBytes, log),
		Catalog:    listings,
		Reviews:    workflow.NewReviewGate(orders, reviews, log),
		ReviewList: reviews,
		Captures:   workflow.NewCaptureRecorder(listings, orders, verifier, log),
		Profiles:   db.NewProfileRepository(backend),
		Orders:     orders,
		Contact:    relay.NewResend(config.Contact, config.Backend.Timeout, log),
		Mail:       relay.NewSMTP(config.SMTP, log),
		Google:     google,
	}, nil
}

// NewRouter registers every marketplace route on a fresh engine.
func NewRouter(config *cfg.Properties, services *Services, log logrus.FieldLogger) *gin.Engine {
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery(), requestLogger(log), instrument())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     config.Server.AllowOrigins,
		AllowMethods:     []string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "Cache-Control", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.SetHTMLTemplate(template.Must(template.New("pages").Funcs(pageFuncs).ParseFS(pageFiles, "templates/*.html")))

	sessions := newSessionReader(services.Identities, config.Auth.AccessTokenCookieName)
	handler := NewHandler(config, services, sessions, log)
	auth := NewAuthHandler(config, services, sessions, log)
	mailLimit := NewRateLimiter(config.Rate.MailPerMinute, config.Rate.MailBurst, log)

	router.NoMethod(func(c *gin.Context) {
		abortWithError(c, &app.MethodNotAllowedError{Method: c.Request.Method}, http.StatusMethodNotAllowed)
	})
	router.NoRoute(func(c *gin.Context) { c.JSON(http.StatusNotFound, gin.H{"error": "Not Found"}) })

	router.GET("/health", handler.GetHealth)
	router.GET("/metrics", gin.WrapH(metricsHandler()))
	if config.Server.Pprof {
		pprof.Register(router)
	}

	api := router.Group("/api")
	api.POST("/contact", mailLimit.Handler(), handler.Contact)
	api.POST("/send-email", mailLimit.Handler(), handler.SendEmail)
	api.POST("/delete-account", handler.DeleteAccount)
	api.GET("/delete-product", handler.DeleteProductUsage)
	api.POST("/delete-product", handler.DeleteProduct)
	api.POST("/password-strength", handler.PasswordStrength)

	api.POST("/orders/capture", sessions.require(), handler.CaptureOrder)
	api.GET("/products/:id", handler.GetProduct)
	api.GET("/products/:id/reviews", handler.ListReviews)
	api.POST("/products/:id/reviews", handler.SubmitReview)
	api.GET("/products/:id/review-eligibility", handler.ReviewEligibility)

	dashboard := api.Group("/dashboard", sessions.require())
	dashboard.GET("/products", handler.ListSellerProducts)
	dashboard.POST("/products", handler.PostProduct)
	dashboard.GET("/profile", handler.GetProfile)
	dashboard.PUT("/profile", handler.PutProfile)
	dashboard.GET("/sales", handler.GetSales)

	authGroup := router.Group("/auth")
	authGroup.POST("/signup", auth.SignUp)
	authGroup.POST("/login", auth.Login)
	authGroup.POST("/logout", auth.Logout)
	authGroup.POST("/forgot", auth.Forgot)
	authGroup.GET("/google", auth.Google)
	authGroup.GET("/callback", auth.Callback)
	authGroup.GET("/session", auth.Session)

	router.GET("/product/:id", handler.ProductPage)
	router.GET("/dashboard", handler.DashboardPage)

	return router
}

// RunServer serves the marketplace until SIGINT or SIGTERM.
func RunServer(config *cfg.Properties, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	services, err := NewServices(ctx, config, log)
	if err != nil {
		return err
	}
	return serve(ctx, config.Server.Port, config.Server.ReadTimeout, NewRouter(config, services, log), log)
}

func serve(ctx context.Context, port string, readTimeout time.Duration, handler http.Handler, log logrus.FieldLogger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           handler,
		ReadHeaderTimeout: readTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
