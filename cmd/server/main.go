package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/nohow2117/gotracker/internal/analytics"
	"github.com/nohow2117/gotracker/internal/botdetect"
	"github.com/nohow2117/gotracker/internal/cache"
	"github.com/nohow2117/gotracker/internal/config"
	"github.com/nohow2117/gotracker/internal/db"
	"github.com/nohow2117/gotracker/internal/geo"
	"github.com/nohow2117/gotracker/internal/handlers"
	"github.com/nohow2117/gotracker/internal/resolver"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer database.Close()

	geoSource := openGeo(cfg)
	defer geoSource.Close()

	testCache, err := cache.New(cfg.CacheSize)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}

	splitClassifier := &botdetect.Classifier{CheckRDNS: cfg.RDNSSplit, Timeout: cfg.RDNSTimeout}
	goClassifier := &botdetect.Classifier{CheckRDNS: cfg.RDNSGo, Timeout: cfg.RDNSTimeout}

	recorder := analytics.NewRecorder(database, geoSource, splitClassifier, cfg.BufferSize, cfg.FlushInterval)
	pageResolver := &resolver.PageResolver{DB: database}

	goHandler := &handlers.GoHandler{
		Cfg:        cfg,
		Resolver:   pageResolver,
		Recorder:   recorder,
		Classifier: goClassifier,
	}
	splitHandler := &handlers.SplitHandler{
		DB:       database,
		Cache:    testCache,
		Resolver: pageResolver,
		Recorder: recorder,
	}
	adminHandler := &handlers.AdminHandler{
		DB:         database,
		Cfg:        cfg,
		Cache:      testCache,
		Classifier: splitClassifier,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// Public redirect endpoints. HEAD is routed so the handler can reject it.
	r.Get("/go", goHandler.ServeHTTP)
	r.Head("/go", goHandler.ServeHTTP)
	r.Get("/split/{slug}", splitHandler.ServeHTTP)

	// Admin API (authenticated)
	r.Route("/api", func(r chi.Router) {
		r.Use(handlers.AuthMiddleware(cfg.APIKey))
		r.Post("/tests", adminHandler.CreateTest)
		r.Get("/tests", adminHandler.ListTests)
		r.Get("/tests/{slug}", adminHandler.GetTest)
		r.Patch("/tests/{slug}", adminHandler.UpdateTest)
		r.Delete("/tests/{slug}", adminHandler.DeleteTest)
		r.Delete("/tests/{slug}/hits", adminHandler.ResetStats)
		r.Get("/tests/{slug}/qr", adminHandler.TestQRCode)
		r.Post("/backfill", adminHandler.RunBackfill)
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("gotracker listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	<-stop
	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown: %v", err)
	}

	recorder.Shutdown()
	log.Println("goodbye")
}

// openGeo picks the geo backend: a local MaxMind database when configured,
// otherwise the remote JSON API, otherwise lookups are disabled.
func openGeo(cfg *config.Config) geo.Source {
	if cfg.GeoIPPath != "" {
		reader, err := geo.Open(cfg.GeoIPPath)
		if err == nil {
			return reader
		}
		log.Printf("geo: %v (falling back)", err)
	}
	if cfg.GeoAPIURL != "" {
		return geo.NewAPIClient(cfg.GeoAPIURL, cfg.GeoTimeout)
	}
	reader, _ := geo.Open("")
	return reader
}
