package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kevinvillajim/SRIAPI/internal/application/comprobantes"
	"github.com/kevinvillajim/SRIAPI/internal/application/dto"
	"github.com/kevinvillajim/SRIAPI/internal/domain"
	"github.com/kevinvillajim/SRIAPI/internal/domain/entity"
	infrasri "github.com/kevinvillajim/SRIAPI/internal/infrastructure/sri"
)

// ComprobanteHandler expone la emisión y consulta de comprobantes.
type ComprobanteHandler struct {
	uc *comprobantes.EmitirUseCase
}

// NewComprobanteHandler construye el handler de comprobantes.
func NewComprobanteHandler(uc *comprobantes.EmitirUseCase) *ComprobanteHandler {
	return &ComprobanteHandler{uc: uc}
}

// Emitir godoc
// @Summary      Emitir una factura electrónica
// @Description  Genera la clave de acceso, construye el XML y lo persiste en
// @Description  estado GENERADO. La firma, el envío y el sondeo de autorización
// @Description  continúan en segundo plano; consulte el estado con GET /{id}/estado.
// @Tags         comprobantes
// @Accept       json
// @Produce      json
// @Param        body  body  dto.EmitirComprobanteRequest  true  "datos de la factura"
// @Success      202   {object}  dto.ComprobanteResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/comprobantes [post]
func (h *ComprobanteHandler) Emitir(c *fiber.Ctx) error {
	var in dto.EmitirComprobanteRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if in.Secuencial == "" || len(in.Detalles) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "secuencial y al menos un detalle son requeridos"})
	}
	comp, err := h.uc.EmitirAsync(c.Context(), solicitudDesdeDTO(&in))
	if err != nil {
		return mapComprobanteError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(comprobanteADTO(comp))
}

// Firmar godoc
// @Summary      Firmar un comprobante XML sin emitirlo
// @Description  Aplica la firma XAdES-BES con el certificado configurado y
// @Description  devuelve el documento firmado. No persiste ni envía nada.
// @Tags         comprobantes
// @Accept       json
// @Produce      json
// @Param        body  body  dto.FirmarRequest  true  "comprobante XML"
// @Success      200   {object}  dto.FirmarResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/comprobantes/firmar [post]
func (h *ComprobanteHandler) Firmar(c *fiber.Ctx) error {
	var in dto.FirmarRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if in.XML == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "xml es requerido"})
	}
	firmado, err := h.uc.Firmar([]byte(in.XML))
	if err != nil {
		return mapComprobanteError(c, err)
	}
	return c.JSON(dto.FirmarResponse{XMLFirmado: string(firmado)})
}

// Obtener godoc
// @Summary      Consultar un comprobante por ID
// @Tags         comprobantes
// @Produce      json
// @Param        id  path  string  true  "ID del comprobante"
// @Success      200  {object}  dto.ComprobanteResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/comprobantes/{id} [get]
func (h *ComprobanteHandler) Obtener(c *fiber.Ctx) error {
	comp, err := h.uc.Obtener(c.Context(), c.Params("id"))
	if err != nil {
		return mapComprobanteError(c, err)
	}
	return c.JSON(comprobanteADTO(comp))
}

// Estado godoc
// @Summary      Consultar solo el estado de un comprobante
// @Tags         comprobantes
// @Produce      json
// @Param        id  path  string  true  "ID del comprobante"
// @Success      200  {object}  dto.ComprobanteResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/comprobantes/{id}/estado [get]
func (h *ComprobanteHandler) Estado(c *fiber.Ctx) error {
	comp, err := h.uc.ConsultarEstado(c.Context(), c.Params("id"))
	if err != nil {
		return mapComprobanteError(c, err)
	}
	return c.JSON(dto.ComprobanteResponse{
		ID:            comp.ID,
		ClaveAcceso:   comp.ClaveAcceso,
		Estado:        comp.Estado,
		ActualizadoEn: comp.UpdatedAt,
	})
}

// XML godoc
// @Summary      Descargar el XML firmado de un comprobante
// @Tags         comprobantes
// @Produce      xml
// @Param        id  path  string  true  "ID del comprobante"
// @Success      200  {string}  string
// @Failure      404  {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/comprobantes/{id}/xml [get]
func (h *ComprobanteHandler) XML(c *fiber.Ctx) error {
	comp, err := h.uc.Obtener(c.Context(), c.Params("id"))
	if err != nil {
		return mapComprobanteError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/xml; charset=utf-8")
	return c.SendString(comp.XMLFirmado)
}

// Autorizar godoc
// @Summary      Reconsultar la autorización de un comprobante
// @Description  Hace una consulta puntual al WS de autorización del SRI. Si el
// @Description  resultado es terminal se persiste; si sigue EN PROCESO, el
// @Description  comprobante queda en RECIBIDA y se puede reconsultar.
// @Tags         comprobantes
// @Produce      json
// @Param        id  path  string  true  "ID del comprobante"
// @Success      200  {object}  dto.ComprobanteResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      502  {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/comprobantes/{id}/autorizar [post]
func (h *ComprobanteHandler) Autorizar(c *fiber.Ctx) error {
	comp, err := h.uc.Autorizar(c.Context(), c.Params("id"))
	if err != nil {
		return mapComprobanteError(c, err)
	}
	return c.JSON(comprobanteADTO(comp))
}

// Pendientes godoc
// @Summary      Listar comprobantes sin estado terminal
// @Tags         comprobantes
// @Produce      json
// @Param        limit  query  int  false  "máximo de filas (defecto 20)"
// @Success      200  {object}  dto.ListaComprobantesResponse
// @Security     BearerAuth
// @Router       /api/comprobantes/pendientes [get]
func (h *ComprobanteHandler) Pendientes(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_QUERY", Message: "parámetros inválidos"})
	}
	page.DefaultPage()
	comps, err := h.uc.Pendientes(c.Context(), page.Limit)
	if err != nil {
		return mapComprobanteError(c, err)
	}
	out := make([]dto.ComprobanteResponse, 0, len(comps))
	for _, comp := range comps {
		out = append(out, comprobanteADTO(comp))
	}
	return c.JSON(dto.ListaComprobantesResponse{Data: out, Page: dto.NewPage(page, len(out))})
}

// ──────────────────────────────────────────────────────────────────────────────
// Conversión y mapeo de errores
// ──────────────────────────────────────────────────────────────────────────────

func solicitudDesdeDTO(in *dto.EmitirComprobanteRequest) *comprobantes.SolicitudEmision {
	fecha := in.FechaEmision
	if fecha.IsZero() {
		fecha = time.Now()
	}
	detalles := make([]infrasri.DetalleFactura, 0, len(in.Detalles))
	for _, d := range in.Detalles {
		detalles = append(detalles, infrasri.DetalleFactura{
			CodigoPrincipal: d.CodigoPrincipal,
			Descripcion:     d.Descripcion,
			Cantidad:        d.Cantidad,
			PrecioUnitario:  d.PrecioUnitario,
			Descuento:       d.Descuento,
			CodigoIVA:       d.CodigoIVA,
			TarifaIVA:       d.TarifaIVA,
		})
	}
	adicionales := make([]infrasri.CampoAdicional, 0, len(in.InfoAdicional))
	for _, a := range in.InfoAdicional {
		adicionales = append(adicionales, infrasri.CampoAdicional{Nombre: a.Nombre, Valor: a.Valor})
	}
	return &comprobantes.SolicitudEmision{
		Secuencial:   in.Secuencial,
		FechaEmision: fecha,
		Comprador: infrasri.Comprador{
			TipoIdentificacion: in.Comprador.TipoIdentificacion,
			Identificacion:     in.Comprador.Identificacion,
			RazonSocial:        in.Comprador.RazonSocial,
			Direccion:          in.Comprador.Direccion,
			Email:              in.Comprador.Email,
		},
		Detalles:      detalles,
		Propina:       in.Propina,
		InfoAdicional: adicionales,
	}
}

func comprobanteADTO(comp *entity.Comprobante) dto.ComprobanteResponse {
	return dto.ComprobanteResponse{
		ID:                 comp.ID,
		ClaveAcceso:        comp.ClaveAcceso,
		Estado:             comp.Estado,
		Secuencial:         comp.Secuencial,
		FechaEmision:       comp.FechaEmision,
		NumeroAutorizacion: comp.NumeroAutorizacion,
		FechaAutorizacion:  comp.FechaAutorizacion,
		Mensajes:           comp.Mensajes,
		ImporteTotal:       comp.ImporteTotal,
		ActualizadoEn:      comp.UpdatedAt,
	}
}

func mapComprobanteError(c *fiber.Ctx, err error) error {
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: vErr.Error()})
	}
	var tErr *domain.TransportError
	if errors.As(err, &tErr) {
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "SRI_UNAVAILABLE", Message: tErr.Error()})
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "comprobante no encontrado"})
	case errors.Is(err, domain.ErrDuplicate):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "DUPLICATE", Message: "la clave de acceso ya existe"})
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_INPUT", Message: err.Error()})
	case errors.Is(err, domain.ErrCertificadoContrasena),
		errors.Is(err, domain.ErrCertificadoCorrupto),
		errors.Is(err, domain.ErrCertificadoExpirado),
		errors.Is(err, domain.ErrCertificadoNoVigente):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "CERTIFICATE", Message: err.Error()})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
}
