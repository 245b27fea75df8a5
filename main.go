package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"streamCastAPI/handlers"
	"streamCastAPI/internal/notification"
	"streamCastAPI/internal/types/event"
	"streamCastAPI/internal/workers"
	"streamCastAPI/middleware"
	"streamCastAPI/services"

	_ "net/http/pprof"
)

var (
	dbPool            *pgxpool.Pool
	subscriberService *services.SubscriberService
	contentService    *services.ContentService
	accessService     *services.AccessService
	sessionService    *services.SessionService
	checkoutService   *services.CheckoutService
	paypalService     *services.PayPalService
	eventEmitter      *services.EventEmitter
	notifier          *services.Notifier
	fcmService        *notification.FCMService
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	clerkSecretKey := os.Getenv("CLERK_SECRET_KEY")
	if clerkSecretKey == "" {
		log.Fatal("CLERK_SECRET_KEY environment variable is not set")
	}
	clerk.SetKey(clerkSecretKey)
	log.Println("Clerk initialized successfully")

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		log.Fatal("Failed to parse database URL:", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	dbPool, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatal("Failed to create connection pool:", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	log.Println("Successfully connected to database")

	subscriberService = services.NewSubscriberService(dbPool)
	contentService = services.NewContentService(dbPool)
	accessService = services.NewAccessService(subscriberService, contentService)
	sessionService = services.NewSessionService(subscriberService, services.SessionConfig{
		LimitingEnabled:   os.Getenv("SESSION_LIMITING_ENABLED") == "true",
		DefaultMaxDevices: envInt("SESSION_DEFAULT_MAX_DEVICES", 2),
	})
	checkoutService = services.NewCheckoutService(subscriberService)
	paypalService = services.NewPayPalService()
	eventEmitter = services.NewEventEmitter()
	notifier = services.NewNotifier(subscriberService, contentService)

	fcmService, err = notification.NewFCMService("./serviceAccountKey.json")
	if err != nil {
		log.Printf("Warning: Could not initialize FCM: %v", err)
	} else {
		notifier.SetPushProvider(fcmService)
		log.Println("FCM Push Provider initialized successfully")
	}

	middleware.InitPrometheus()
	services.InitMetrics()
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		log.Printf("Ignoring invalid %s=%q", key, os.Getenv(key))
	}
	return fallback
}

func main() {
	defer func() {
		log.Println("Closing database connection pool...")
		dbPool.Close()
	}()

	// Push notifications ride the same event feed as the stream clients.
	notifierEvents, cancelNotifier := eventEmitter.Subscribe(event.TypeLiveActive, event.TypeVideoReady)
	go notifier.Listen(notifierEvents)

	cleanupStop := make(chan struct{})
	workers.StartCleanupWorker(dbPool, time.Duration(envInt("SESSION_IDLE_EXPIRY_HOURS", 720))*time.Hour, cleanupStop)

	// Initialize handlers
	accessHandler := handlers.NewAccessHandler(accessService, subscriberService)
	contentHandler := handlers.NewContentHandler(contentService, accessService, subscriberService)
	sessionHandler := handlers.NewSessionHandler(sessionService, subscriberService)
	checkoutHandler := handlers.NewCheckoutHandler(checkoutService, paypalService, subscriberService, contentService)
	notificationHandler := handlers.NewNotificationHandler(subscriberService)
	eventsHandler := handlers.NewEventsHandler(eventEmitter)
	webhookHandler := handlers.NewWebhookHandler(subscriberService, contentService, checkoutService, paypalService, eventEmitter)

	r := mux.NewRouter()

	// Streaming endpoints sit outside the rate limiter and monitor: the SSE
	// response stays open for the life of the tab, and the WebSocket upgrade
	// needs the raw connection.
	r.HandleFunc("/api/v1/events/stream", eventsHandler.StreamEvents).Methods("GET")
	r.HandleFunc("/api/v1/events/ws", eventsHandler.StreamEventsWS)

	// Provider webhooks also bypass the per-IP limiter; a batch of retries
	// from one provider IP must not be throttled into data loss.
	r.HandleFunc("/webhooks/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")
	r.HandleFunc("/webhooks/stripe", webhookHandler.HandleStripeWebhook).Methods("POST")
	r.HandleFunc("/webhooks/paypal", webhookHandler.HandlePayPalWebhook).Methods("POST")
	r.HandleFunc("/webhooks/mux", webhookHandler.HandleMuxWebhook).Methods("POST")

	standardRouter := r.PathPrefix("/").Subrouter()

	go middleware.CleanupVisitors()

	standardRouter.Use(middleware.RateLimitMiddleware)
	standardRouter.Use(middleware.MonitorMiddleware)

	standardRouter.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler()))
	standardRouter.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(http.DefaultServeMux))

	standardRouter.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := dbPool.Ping(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "streamCast-api"}`))
	}).Methods("GET")

	// -------------------------------------------------------------------------
	// API V1 SUBROUTER
	// -------------------------------------------------------------------------
	api := standardRouter.PathPrefix("/api/v1").Subrouter()

	// Public catalog. Playback and purchase options run with optional auth so
	// anonymous viewers see free content and purchase pathways.
	api.HandleFunc("/content", contentHandler.ListContent).Methods("GET")
	api.HandleFunc("/content/{id}", contentHandler.GetContent).Methods("GET")
	api.HandleFunc("/live-events", contentHandler.ListLiveEvents).Methods("GET")
	api.HandleFunc("/live-events/{id}", contentHandler.GetLiveEvent).Methods("GET")
	api.Handle("/content/{id}/playback", middleware.OptionalAuthMiddleware(http.HandlerFunc(contentHandler.GetPlayback))).Methods("GET")
	api.Handle("/content/{id}/purchase-options", middleware.OptionalAuthMiddleware(http.HandlerFunc(contentHandler.GetPurchaseOptions))).Methods("GET")
	api.HandleFunc("/plans", checkoutHandler.ListPlans).Methods("GET")

	// Dev tooling, gated by its own secret header.
	api.Handle("/dev/emit", middleware.DevToolsMiddleware(http.HandlerFunc(eventsHandler.EmitEvent))).Methods("POST")

	// -------------------------------------------------------------------------
	// PROTECTED ROUTES (REQUIRE AUTH HEADER)
	// -------------------------------------------------------------------------
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.ClerkAuthMiddleware)

	protected.HandleFunc("/access/check", accessHandler.CheckAccess).Methods("POST")

	protected.HandleFunc("/sessions/track", sessionHandler.TrackSession).Methods("POST")
	protected.HandleFunc("/sessions", sessionHandler.ListSessions).Methods("GET")
	protected.HandleFunc("/sessions/limit", sessionHandler.GetDeviceLimit).Methods("GET")
	protected.HandleFunc("/sessions/{deviceId}", sessionHandler.RevokeSession).Methods("DELETE")

	protected.HandleFunc("/checkout/subscription", checkoutHandler.CreateSubscriptionCheckout).Methods("POST")
	protected.HandleFunc("/checkout/ppv", checkoutHandler.CreatePPVCheckout).Methods("POST")
	protected.HandleFunc("/checkout/rental", checkoutHandler.CreateRentalCheckout).Methods("POST")
	protected.HandleFunc("/checkout/paypal/capture", checkoutHandler.CapturePayPalOrder).Methods("POST")

	protected.HandleFunc("/notifications/register-device", notificationHandler.RegisterDevice).Methods("POST")

	// CORS configuration
	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Pprof-Secret", "X-Dev-Secret"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3333"
	}
	port = ":" + port

	server := http.Server{
		Addr:        port,
		Handler:     corsHandler(r),
		ReadTimeout: 5 * time.Second,
		// No WriteTimeout: the SSE feed holds its response open indefinitely.
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	close(cleanupStop)
	cancelNotifier()
	notifier.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server shutdown complete")
}
