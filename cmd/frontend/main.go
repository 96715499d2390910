package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"

	"storefront/internal/guestcart"
	"storefront/internal/settings"
	"storefront/internal/web"
)

const (
	defaultPort        = "8080"
	defaultSettingsTTL = 5 * time.Minute
)

var log *logrus.Logger

func init() {
	log = logrus.New()
	log.Level = logrus.DebugLevel
	log.Formatter = &logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "severity",
			logrus.FieldKeyMsg:   "message",
		},
		TimestampFormat: time.RFC3339Nano,
	}
	log.Out = os.Stdout
}

func main() {
	ctx := context.Background()
	logger := logrus.NewEntry(log)

	tp, err := initTracerProvider(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer provider: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Errorf("error shutting down tracer provider: %v", err)
		}
	}()

	cartServiceURL := os.Getenv("CART_SERVICE_ADDR")
	if cartServiceURL == "" {
		log.Fatal("CART_SERVICE_ADDR environment variable is required")
	}

	var kv guestcart.KV
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		store := guestcart.NewRedisKV(redisAddr, logger)
		if err := store.Initialize(ctx); err != nil {
			log.Fatalf("failed to initialize guest store: %v", err)
		}
		kv = store
	} else {
		log.Info("REDIS_ADDR not set, guest carts held in process memory")
		kv = guestcart.NewLocalKV()
	}

	settingsTTL := defaultSettingsTTL
	if raw := os.Getenv("SETTINGS_TTL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			log.Fatalf("invalid SETTINGS_TTL: %v", err)
		}
		settingsTTL = d
	}
	settingsClient := settings.New(os.Getenv("SETTINGS_URL"), settingsTTL, logger)

	r := mux.NewRouter()
	r.Use(otelmux.Middleware("frontend"))
	r.Use(web.EnsureSession)
	web.NewHandler(logger, kv, cartServiceURL, settingsClient).Routes(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Info("received shutdown signal, draining connections")
		shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("shutdown error: %v", err)
		}
	}()

	log.Infof("storefront frontend listening on :%s", port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// initTracerProvider sets up the OTLP exporter and registers the global
// TracerProvider. OTEL_EXPORTER_OTLP_ENDPOINT selects the collector.
func initTracerProvider(ctx context.Context) (*sdktrace.TracerProvider, error) {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:4317"
	}
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String("frontend"),
			semconv.ServiceVersionKey.String("v1.0.0"),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp, nil
}
