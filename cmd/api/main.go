package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/kevinvillajim/SRIAPI/docs"
	"github.com/kevinvillajim/SRIAPI/internal/application/auth"
	"github.com/kevinvillajim/SRIAPI/internal/application/comprobantes"
	domainsri "github.com/kevinvillajim/SRIAPI/internal/domain/sri"
	"github.com/kevinvillajim/SRIAPI/internal/infrastructure/postgres"
	infrasri "github.com/kevinvillajim/SRIAPI/internal/infrastructure/sri"
	"github.com/kevinvillajim/SRIAPI/internal/infrastructure/sri/firmador"
	httpRouter "github.com/kevinvillajim/SRIAPI/internal/interfaces/http"
	"github.com/kevinvillajim/SRIAPI/internal/observability"
	"github.com/kevinvillajim/SRIAPI/pkg/config"
	"github.com/kevinvillajim/SRIAPI/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.Level,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("ambiente_sri", cfg.SRI.Ambiente).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	// Certificado de firma: se lee una vez al arranque. Sin certificado el
	// servicio arranca igual; la firma fallará con el error de dominio.
	var certP12 []byte
	if cfg.SRI.CertRuta != "" {
		certP12, err = os.ReadFile(cfg.SRI.CertRuta)
		if err != nil {
			log.Fatal().Err(err).Str("ruta", cfg.SRI.CertRuta).Msg("leer certificado PKCS#12")
		}
	} else {
		log.Warn().Msg("SRI_CERT_RUTA no configurada; la firma de comprobantes fallará")
	}

	metricas := observability.NewPrometheusRecorder()

	comprobanteRepo := postgres.NewComprobanteRepository(pool)
	generador := domainsri.NewGeneradorClave(nil)
	builder := infrasri.NewComprobanteBuilder()
	firmaSvc := firmador.NewServicioFirma(nil, nil, nil)

	clienteSRI := infrasri.NewClienteSOAP(infrasri.ConfigCliente{
		Ambiente:        cfg.SRI.Ambiente,
		URLRecepcion:    cfg.SRI.URLRecepcion,
		URLAutorizacion: cfg.SRI.URLAutorizacion,
	}, metricas, log)

	emitirUC := comprobantes.NewEmitirUseCase(
		comprobanteRepo, generador, builder, firmaSvc, clienteSRI,
		comprobantes.Config{
			Ambiente:        cfg.SRI.Ambiente,
			Establecimiento: cfg.SRI.Establecimiento,
			PuntoEmision:    cfg.SRI.PuntoEmision,
			Emisor: infrasri.Emisor{
				RUC:                   cfg.SRI.RUC,
				RazonSocial:           cfg.SRI.RazonSocial,
				NombreComercial:       cfg.SRI.NombreComercial,
				DireccionMatriz:       cfg.SRI.DirMatriz,
				DireccionEstab:        cfg.SRI.DirEstablecimiento,
				ObligadoContabilidad:  cfg.SRI.ObligadoContabilidad,
				ContribuyenteEspecial: cfg.SRI.ContribuyenteEspecial,
			},
			CertificadoP12:        certP12,
			ClaveCertificado:      cfg.SRI.CertClave,
			MaxEsperaAutorizacion: time.Duration(cfg.SRI.MaxEsperaSeg) * time.Second,
			IntervaloSondeo:       time.Duration(cfg.SRI.IntervaloSeg) * time.Second,
		},
		metricas, log,
	)

	authUC := auth.NewAuthUseCase(auth.Config{
		Usuario:        cfg.JWT.Usuario,
		HashContrasena: cfg.JWT.HashContrasena,
		RUCEmisor:      cfg.SRI.RUC,
		Secret:         cfg.JWT.Secret,
		ExpMinutes:     cfg.JWT.Expiration,
		Issuer:         cfg.JWT.Issuer,
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "SRI API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		EmitirUC:  emitirUC,
		AuthUC:    authUC,
		Generador: generador,
		JWTSecret: cfg.JWT.Secret,
	})

	// Listener separado para Prometheus; no pasa por auth ni por Fiber.
	metricsSrv := &http.Server{
		Addr:    cfg.HTTP.MetricsAddr(),
		Handler: promhttp.Handler(),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("servidor de métricas finalizado")
		}
	}()

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor de métricas")
	}

	log.Info().Msg("aplicación detenida")
}
