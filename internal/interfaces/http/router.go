package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kevinvillajim/SRIAPI/internal/application/auth"
	"github.com/kevinvillajim/SRIAPI/internal/application/comprobantes"
	domainsri "github.com/kevinvillajim/SRIAPI/internal/domain/sri"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	EmitirUC  *comprobantes.EmitirUseCase
	AuthUC    *auth.AuthUseCase
	Generador *domainsri.GeneradorClave
	JWTSecret string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Auth (público)
	authGroup := api.Group("/auth")
	authHandler := NewAuthHandler(deps.AuthUC)
	authGroup.Post("/token", authHandler.Login)

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	// Comprobantes (protegido). Las rutas fijas van antes que /:id.
	comps := protected.Group("/comprobantes")
	compHandler := NewComprobanteHandler(deps.EmitirUC)
	comps.Post("/", compHandler.Emitir)
	comps.Post("/firmar", compHandler.Firmar)
	comps.Get("/pendientes", compHandler.Pendientes)
	comps.Get("/:id", compHandler.Obtener)
	comps.Get("/:id/estado", compHandler.Estado)
	comps.Get("/:id/xml", compHandler.XML)
	comps.Post("/:id/autorizar", compHandler.Autorizar)

	// Claves de acceso (protegido, utilidades)
	claves := protected.Group("/claves")
	claveHandler := NewClaveHandler(deps.Generador)
	claves.Post("/", claveHandler.Generar)
	claves.Get("/:clave", claveHandler.Validar)
}
