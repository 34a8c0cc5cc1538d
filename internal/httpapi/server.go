package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/tontine/internal/auth"
	"github.com/MarkoPoloResearchLab/tontine/pkg/tontine"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Run serves the HTTP API until ctx is cancelled.
func Run(ctx context.Context, cfg Config, service *tontine.Service, logger *zap.Logger) error {
	router, err := NewRouter(cfg, service, logger)
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: cfg.RequestTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("tontine api listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// NewRouter validates cfg and builds the gin engine with every route registered.
func NewRouter(cfg Config, service *tontine.Service, logger *zap.Logger) (*gin.Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("http config: %w", err)
	}
	if service == nil {
		return nil, fmt.Errorf("http config: service is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	tokens, err := auth.NewTokenManager(auth.Config{
		SigningKey: []byte(cfg.SigningKey),
		Issuer:     cfg.TokenIssuer,
		TTL:        cfg.TokenTTL,
	}, time.Now)
	if err != nil {
		return nil, fmt.Errorf("token manager: %w", err)
	}
	handler := &httpHandler{
		logger:  logger,
		service: service,
		tokens:  tokens,
		cfg:     cfg,
	}
	return setupRouter(cfg, handler), nil
}

type httpHandler struct {
	logger  *zap.Logger
	service *tontine.Service
	tokens  *auth.TokenManager
	cfg     Config
}

func setupRouter(cfg Config, handler *httpHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(accessLog(handler.logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "Origin", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.NoRoute(func(ctx *gin.Context) {
		respondFailure(ctx, http.StatusNotFound, codeNotFound, "route not found")
	})

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authRoutes := router.Group("/auth")
	authRoutes.POST("/register", handler.handleRegister)
	authRoutes.POST("/login", handler.handleLogin)
	authRoutes.GET("/verify", handler.requireIdentity(), handler.handleVerify)

	api := router.Group("/")
	api.Use(handler.requireIdentity(), handler.trackActivity())
	organizerOnly := requireRole(tontine.RoleOrganizer)
	participantOnly := requireRole(tontine.RoleParticipant)

	for _, kind := range []tontine.GroupKind{tontine.GroupKindTontine, tontine.GroupKindCorridor} {
		groups := api.Group("/" + kind.String() + "s")
		groups.POST("/create", organizerOnly, handler.handleCreateGroup(kind))
		groups.GET("", handler.handleListGroups(kind))
		groups.POST("/join", handler.handleJoinByToken(kind))
		groups.POST("/request-join", handler.handleRequestJoin(kind))
		groups.GET("/:id", handler.handleGetGroup(kind))
		groups.DELETE("/:id", organizerOnly, handler.handleDeleteGroup(kind))
	}

	participant := api.Group("/participant")
	participant.GET("/available", handler.handleAvailableGroups)
	participant.GET("/memberships", handler.handleMemberships)
	participant.GET("/groups/:groupId/members", handler.handleMembers)

	payments := api.Group("/payments")
	payments.POST("/simulate", participantOnly, handler.handleSimulatePayment)
	payments.POST("/update-status", organizerOnly, handler.handleUpdatePaymentStatus)
	payments.POST("/distribute", organizerOnly, handler.handleDistribute)
	payments.GET("/balance/:tontineId", organizerOnly, handler.handleBalance)
	payments.GET("/overview/:groupId", organizerOnly, handler.handlePaymentOverview)
	payments.GET("/groups/:groupId", organizerOnly, handler.handleGroupPayments)
	payments.POST("/reminder", organizerOnly, handler.handleReminder)
	payments.GET("/user/history", handler.handlePaymentHistory)
	payments.GET("/organizer/balance", organizerOnly, handler.handleOrganizerBalance)
	payments.GET("/organizer/stats", organizerOnly, handler.handleOrganizerStats)

	organizer := api.Group("/organizer", organizerOnly)
	organizer.GET("/requests/pending", handler.handlePendingRequests)
	organizer.POST("/requests/handle", handler.handleRequestDecision)
	organizer.GET("/groups/:groupId/participants", handler.handleParticipants)
	organizer.PUT("/groups/:groupId", handler.handleUpdateGroup)
	organizer.POST("/participants/add", handler.handleAddParticipant)
	organizer.POST("/participants/remove", handler.handleRemoveParticipant)
	organizer.POST("/participants/replace", handler.handleReplaceParticipant)
	organizer.GET("/participants", handler.handleAllParticipants)
	organizer.POST("/message", handler.handleBroadcast)
	organizer.GET("/tontines/active", handler.handleActiveGroups(tontine.GroupKindTontine))
	organizer.GET("/corridors/active", handler.handleActiveGroups(tontine.GroupKindCorridor))
	organizer.POST("/payment-round", handler.handlePaymentRound)
	organizer.GET("/stats", handler.handleOrganizerStats)

	messages := api.Group("/messages")
	messages.POST("/send", handler.handleSendMessage)
	messages.POST("/read", handler.handleMarkRead)
	messages.GET("/conversations", handler.handleConversations)
	messages.GET("/unread", handler.handleUnread)
	messages.GET("/conversation/:userId", handler.handleConversation)
	messages.DELETE("/clear-all", handler.handleClearMessages)
	messages.DELETE("/conversation/:userId", handler.handleDeleteConversation)
	messages.DELETE("/:id", handler.handleDeleteMessage)

	notifications := api.Group("/notifications")
	notifications.GET("", handler.handleNotifications)
	notifications.DELETE("/clear-all", handler.handleClearNotifications)
	notifications.DELETE("/:id", handler.handleDeleteNotification)

	profile := api.Group("/profile")
	profile.GET("", handler.handleProfile)
	profile.PUT("", handler.handleUpdateProfile)
	profile.POST("/subscribe", handler.handleSubscribe)

	analytics := api.Group("/analytics")
	analytics.GET("/trend", handler.handleTrend)
	analytics.GET("/engagement/:userId", handler.handleEngagement)
	analytics.GET("/platform", organizerOnly, handler.handlePlatform)

	return router
}
