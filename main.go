package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/MaldivaSky/mercadinhosys-sub003/client"
	"github.com/MaldivaSky/mercadinhosys-sub003/config"
	"github.com/MaldivaSky/mercadinhosys-sub003/connectivity"
	"github.com/MaldivaSky/mercadinhosys-sub003/cors"
	"github.com/MaldivaSky/mercadinhosys-sub003/db"
	"github.com/MaldivaSky/mercadinhosys-sub003/geo"
	"github.com/MaldivaSky/mercadinhosys-sub003/jsonlog"
	middleware "github.com/MaldivaSky/mercadinhosys-sub003/middlewares"
	"github.com/MaldivaSky/mercadinhosys-sub003/models"
	"github.com/MaldivaSky/mercadinhosys-sub003/notify"
	"github.com/MaldivaSky/mercadinhosys-sub003/photostore"
	"github.com/MaldivaSky/mercadinhosys-sub003/ponto"
	"github.com/MaldivaSky/mercadinhosys-sub003/queue"
	"github.com/MaldivaSky/mercadinhosys-sub003/routes"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	logger := jsonlog.New(os.Stdout).With(map[string]any{"service": "ponto-agent"})

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openQueue(rootCtx, cfg)
	if err != nil {
		log.Fatalf("Error opening queue: %v", err)
	}
	defer closeStore()

	// fotos vão para o MinIO só se estiver configurado
	var photos client.PhotoStore
	if cfg.MinIO.Enabled() {
		ctx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
		ps, err := photostore.NewMinIO(ctx, photostore.Config{
			Endpoint:  cfg.MinIO.Host,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			UseSSL:    cfg.MinIO.UseSSL,
		})
		cancel()
		if err != nil {
			log.Fatalf("Error connecting minio: %v", err)
		}
		photos = ps
	}

	api := client.New(client.Config{
		BaseURL:    cfg.APIURL,
		SubmitPath: cfg.SubmitPath,
		Token:      cfg.APIToken,
		Timeout:    cfg.SubmitTimeout,
		Photos:     photos,
	})

	allowOrigin := cors.Allow(cfg.CorsOrigins)
	hub := notify.NewHub(allowOrigin, logger)

	opts := ponto.DefaultOptions()
	opts.SubmitTimeout = cfg.SubmitTimeout
	opts.LocationTimeout = cfg.LocationTimeout
	opts.DeviceInfo = cfg.DeviceInfo
	// começa offline; o watcher decide no primeiro probe
	opts.StartOnline = false

	rec := ponto.New(ponto.Deps{
		Store:     store,
		Submitter: api,
		Locator:   geo.FromConfig(cfg.StoreLat, cfg.StoreLng),
		Notifier:  hub,
		Logger:    logger,
	}, opts)

	hub.Greeting = func(r *http.Request) []models.Notification {
		kind := models.NotifyOffline
		if rec.Online() {
			kind = models.NotifyOnline
		}
		pending, _ := rec.Pending(r.Context())
		return []models.Notification{{Kind: kind, Pending: pending, At: time.Now().UTC()}}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		watch := connectivity.DefaultConfig()
		watch.Interval = cfg.ProbeInterval
		connectivity.Run(rootCtx, api, rec, watch, logger)
	}()

	auth := middleware.AuthJWT(cfg.JWTSecret)
	managers := middleware.RequireRoles("admin", "gerente")

	mux := http.NewServeMux()

	// Health Check Route
	mux.HandleFunc("GET /api/hello", routes.Hello)

	// Rotas de Ponto
	mux.Handle("POST /api/ponto", auth(routes.RecordPonto(rec)))
	mux.Handle("POST /api/ponto/sync", auth(routes.SyncPonto(rec)))
	mux.Handle("GET /api/ponto/pending", auth(routes.PendingPonto(rec)))
	mux.Handle("GET /api/ponto/queue", auth(managers(routes.QueueDump(rec))))
	mux.Handle("GET /api/ponto/today", auth(routes.TodayPonto(rec)))
	mux.Handle("POST /api/ponto/connectivity", auth(routes.Connectivity(rec)))
	mux.Handle("GET /api/ponto/ws", auth(hub))

	handler := middleware.RequestID(
		middleware.Logging(logger)(
			cors.Cors(cfg.CorsOrigins, true)(mux),
		),
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		fmt.Printf("Server listening on port %s...\n", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Error start server: %v", err)
		}
	}()

	<-rootCtx.Done()
	log.Println("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
	hub.Close()

	wg.Wait()
	log.Println("bye")
}

// openQueue escolhe onde a fila de pendentes fica persistida.
func openQueue(ctx context.Context, cfg config.Config) (ponto.Store, func(), error) {
	switch cfg.QueueDriver {
	case config.QueuePostgres:
		database, err := db.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		store, err := queue.NewPostgres(ctx, database)
		if err != nil {
			database.Close()
			return nil, nil, err
		}
		return store, database.Close, nil

	case config.QueueMemory:
		log.Println("warning: PONTO_QUEUE_DRIVER=memory, pending marks are lost on restart")
		return queue.NewMemory(), func() {}, nil

	default:
		gdb, err := db.OpenLocal(cfg.QueuePath)
		if err != nil {
			return nil, nil, err
		}
		store, err := queue.NewLocal(gdb)
		if err != nil {
			_ = db.CloseLocal(gdb)
			return nil, nil, err
		}
		return store, func() { _ = db.CloseLocal(gdb) }, nil
	}
}
