package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/kevinvillajim/SRIAPI/internal/application/dto"
	"github.com/kevinvillajim/SRIAPI/pkg/jwt"
)

// Locals keys para Usuario y RUC en Fiber.
const (
	LocalUsuario = "usuario"
	LocalRUC     = "ruc"
)

// AuthMiddleware valida el Bearer Token JWT y extrae usuario y RUC a c.Locals.
func AuthMiddleware(jwtSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "Authorization header requerido"})
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "formato: Bearer <token>"})
		}
		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "token vacío"})
		}
		usuario, ruc, err := jwt.Parse(jwtSecret, tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "token inválido o expirado"})
		}
		c.Locals(LocalUsuario, usuario)
		c.Locals(LocalRUC, ruc)
		return c.Next()
	}
}

// GetUsuario devuelve el usuario del contexto (después del middleware de auth).
func GetUsuario(c *fiber.Ctx) string {
	v := c.Locals(LocalUsuario)
	if v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

// GetRUC devuelve el RUC del emisor del contexto.
func GetRUC(c *fiber.Ctx) string {
	v := c.Locals(LocalRUC)
	if v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}
