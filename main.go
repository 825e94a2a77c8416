package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"floorops/config"
	"floorops/controllers"
	"floorops/jobs"
	"floorops/logger"
	"floorops/middleware"
	"floorops/models"
	"floorops/notify"
	"floorops/routes"
	"floorops/services"
	"floorops/storage"
	"floorops/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}
	lg := logger.NewLogger("floorops")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatalf("Error opening stores: %v", err)
	}
	defer st.close()
	if err := config.SeedManager(ctx, st.staff, cfg.AdminPhone, cfg.AdminPassword); err != nil {
		log.Fatalf("Error seeding manager account: %v", err)
	}

	// Notifier fan-out
	hub := notify.NewHub(lg)
	go hub.Run(ctx)
	sinks := notify.Multi{
		notify.LogSink{Log: lg},
		notify.NewMetricsSink(prometheus.DefaultRegisterer),
		hub,
	}
	if cfg.RabbitMQURL != "" {
		broker, err := notify.NewAMQPSink(cfg.RabbitMQURL, notify.DefaultExchange, lg)
		if err != nil {
			lg.Error(ctx, "amqp_connect", "RabbitMQ unavailable, events will not be published to the broker", err)
		} else {
			defer broker.Close()
			sinks = append(sinks, notify.Async{Sink: broker, Log: lg})
		}
	}
	if cfg.WhatsAppEnabled() {
		wa := notify.NewWhatsAppSink(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFrom, cfg.WhatsAppNotify)
		sinks = append(sinks, notify.Async{Sink: notify.Only(wa, models.EventPedidoPronto, models.EventCaixaFechado), Log: lg})
	}
	if cfg.EmailEnabled() {
		mail := notify.NewEmailSink(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.ManagerEmail)
		sinks = append(sinks, notify.Async{Sink: notify.Only(mail, models.EventCaixaFechado), Log: lg})
	}

	// Services
	tables := services.NewMesaService(st.mesas, st.staff, sinks, lg)
	tables.Areas = st.areas

	till := services.NewCaixaService(st.caixas, sinks, lg)
	till.Location = cfg.Location

	orders := services.NewPedidoService(st.pedidos, tables, st.menu, sinks, lg)
	orders.Location = cfg.Location

	split := services.NewSplitService(st.pedidos, st.mesas, sinks, lg)
	if cfg.AutoPostSales {
		orders.Sales = till
		split.Sales = till
	}

	receipts := services.NewReceiptService(st.pedidos, st.mesas, nil)
	tokens := utils.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	h := &controllers.Controller{
		Tables:   tables,
		Orders:   orders,
		Split:    split,
		Till:     till,
		Receipts: receipts,
		Staff:    st.staff,
		Menu:     st.menu,
		Tokens:   tokens,
		Log:      lg,
		Location: cfg.Location,
	}
	if cfg.StorageEnabled() {
		objects, err := storage.New(storage.Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			CDNDomain: cfg.CDNDomain,
			Secure:    cfg.S3Secure,
		})
		if err != nil {
			log.Fatalf("Error initializing object storage: %v", err)
		}
		receipts.Archive = objects
		h.Plans = objects
	}

	// Scheduled sweeps
	scheduler, err := jobs.Start(cfg.Location, cfg.UnionRepairAt, tables, lg)
	if err != nil {
		log.Fatalf("Error scheduling jobs: %v", err)
	}
	defer scheduler.Stop()

	// HTTP
	gin.SetMode(gin.ReleaseMode)
	log.Printf("Running in %s mode", gin.Mode())
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.AccessLog(lg))

	metrics := middleware.NewMetrics(prometheus.DefaultRegisterer)
	r.Use(metrics.PrometheusMiddleware())
	r.GET("/metrics", func(c *gin.Context) {
		if cfg.MetricsAllowedIP != "" && c.ClientIP() != cfg.MetricsAllowedIP {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		promhttp.Handler().ServeHTTP(c.Writer, c.Request)
	})

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
	}))
	routes.InitializeRoutes(r, h, tokens, hub.HandleWebSocket)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Error starting server: %v", err)
		}
	}()
	lg.Info(ctx, "startup", "listening on :"+cfg.Port)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error(shutdownCtx, "shutdown", "graceful shutdown failed", err)
	}
}
