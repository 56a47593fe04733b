package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kevinvillajim/SRIAPI/internal/application/dto"
	domainsri "github.com/kevinvillajim/SRIAPI/internal/domain/sri"
	pkgsri "github.com/kevinvillajim/SRIAPI/pkg/sri"
)

// ClaveHandler expone utilidades sueltas sobre claves de acceso.
type ClaveHandler struct {
	generador *domainsri.GeneradorClave
}

// NewClaveHandler construye el handler de claves.
func NewClaveHandler(generador *domainsri.GeneradorClave) *ClaveHandler {
	if generador == nil {
		generador = domainsri.NewGeneradorClave(nil)
	}
	return &ClaveHandler{generador: generador}
}

// Generar godoc
// @Summary      Generar una clave de acceso de 49 dígitos
// @Tags         claves
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ClaveRequest  true  "campos de la clave"
// @Success      200   {object}  dto.ClaveResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/claves [post]
func (h *ClaveHandler) Generar(c *fiber.Ctx) error {
	var in dto.ClaveRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	fecha := in.FechaEmision
	if fecha.IsZero() {
		fecha = time.Now()
	}
	tipoEmision := in.TipoEmision
	if tipoEmision == "" {
		tipoEmision = pkgsri.EmisionNormal
	}
	clave, err := h.generador.Generar(domainsri.ClaveParams{
		FechaEmision:    fecha,
		TipoComprobante: in.TipoComprobante,
		RUC:             in.RUC,
		Ambiente:        in.Ambiente,
		Establecimiento: in.Establecimiento,
		PuntoEmision:    in.PuntoEmision,
		Secuencial:      in.Secuencial,
		TipoEmision:     tipoEmision,
	})
	if err != nil {
		return mapComprobanteError(c, err)
	}
	return c.JSON(dto.ClaveResponse{ClaveAcceso: clave, Valida: true})
}

// Validar godoc
// @Summary      Validar y descomponer una clave de acceso
// @Description  Verifica el dígito de control módulo 11 y devuelve los campos
// @Description  que componen la clave. Una clave con dígito inválido responde
// @Description  200 con valida=false.
// @Tags         claves
// @Produce      json
// @Param        clave  path  string  true  "clave de acceso de 49 dígitos"
// @Success      200  {object}  dto.ClaveResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/claves/{clave} [get]
func (h *ClaveHandler) Validar(c *fiber.Ctx) error {
	clave := c.Params("clave")
	campos, err := domainsri.Parsear(clave)
	if err != nil {
		if len(clave) == 49 {
			return c.JSON(dto.ClaveResponse{ClaveAcceso: clave, Valida: false})
		}
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_INPUT", Message: err.Error()})
	}
	return c.JSON(dto.ClaveResponse{
		ClaveAcceso:     clave,
		FechaEmision:    campos.FechaEmision.Format("02/01/2006"),
		TipoComprobante: campos.TipoComprobante,
		RUC:             campos.RUC,
		Ambiente:        campos.Ambiente,
		Establecimiento: campos.Establecimiento,
		PuntoEmision:    campos.PuntoEmision,
		Secuencial:      campos.Secuencial,
		TipoEmision:     campos.TipoEmision,
		Valida:          true,
	})
}
