package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CompradorRequest identifica al receptor del comprobante.
type CompradorRequest struct {
	TipoIdentificacion string `json:"tipo_identificacion" validate:"required"`
	Identificacion     string `json:"identificacion" validate:"required"`
	RazonSocial        string `json:"razon_social" validate:"required"`
	Direccion          string `json:"direccion"`
	Email              string `json:"email"`
}

// DetalleRequest una línea de la factura.
type DetalleRequest struct {
	CodigoPrincipal string          `json:"codigo_principal" validate:"required"`
	Descripcion     string          `json:"descripcion" validate:"required"`
	Cantidad        decimal.Decimal `json:"cantidad"`
	PrecioUnitario  decimal.Decimal `json:"precio_unitario"`
	Descuento       decimal.Decimal `json:"descuento"`
	CodigoIVA       string          `json:"codigo_iva" validate:"required"`
	TarifaIVA       decimal.Decimal `json:"tarifa_iva"`
}

// CampoAdicionalRequest entrada opcional de infoAdicional.
type CampoAdicionalRequest struct {
	Nombre string `json:"nombre" validate:"required"`
	Valor  string `json:"valor" validate:"required"`
}

// EmitirComprobanteRequest datos variables de la factura a emitir.
type EmitirComprobanteRequest struct {
	Secuencial    string                  `json:"secuencial" validate:"required"`
	FechaEmision  time.Time               `json:"fecha_emision"`
	Comprador     CompradorRequest        `json:"comprador" validate:"required"`
	Detalles      []DetalleRequest        `json:"detalles" validate:"required,min=1"`
	Propina       decimal.Decimal         `json:"propina"`
	InfoAdicional []CampoAdicionalRequest `json:"info_adicional"`
}

// ComprobanteResponse estado de un comprobante emitido.
type ComprobanteResponse struct {
	ID                 string          `json:"id"`
	ClaveAcceso        string          `json:"clave_acceso"`
	Estado             string          `json:"estado"`
	Secuencial         string          `json:"secuencial,omitempty"`
	FechaEmision       time.Time       `json:"fecha_emision,omitempty"`
	NumeroAutorizacion string          `json:"numero_autorizacion,omitempty"`
	FechaAutorizacion  string          `json:"fecha_autorizacion,omitempty"`
	Mensajes           string          `json:"mensajes,omitempty"`
	ImporteTotal       decimal.Decimal `json:"importe_total,omitempty"`
	ActualizadoEn      time.Time       `json:"actualizado_en"`
}

// ListaComprobantesResponse listado paginado de comprobantes.
type ListaComprobantesResponse struct {
	Data []ComprobanteResponse `json:"data"`
	Page PageResponse          `json:"page"`
}

// FirmarRequest comprobante XML a firmar sin emitir.
type FirmarRequest struct {
	XML string `json:"xml" validate:"required"`
}

// FirmarResponse comprobante firmado.
type FirmarResponse struct {
	XMLFirmado string `json:"xml_firmado"`
}

// ClaveRequest parámetros para generar una clave de acceso suelta.
type ClaveRequest struct {
	FechaEmision    time.Time `json:"fecha_emision"`
	TipoComprobante string    `json:"tipo_comprobante" validate:"required"`
	RUC             string    `json:"ruc" validate:"required"`
	Ambiente        string    `json:"ambiente" validate:"required"`
	Establecimiento string    `json:"establecimiento" validate:"required"`
	PuntoEmision    string    `json:"punto_emision" validate:"required"`
	Secuencial      string    `json:"secuencial" validate:"required"`
	TipoEmision     string    `json:"tipo_emision"`
}

// ClaveResponse clave generada o descompuesta.
type ClaveResponse struct {
	ClaveAcceso     string `json:"clave_acceso"`
	FechaEmision    string `json:"fecha_emision,omitempty"`
	TipoComprobante string `json:"tipo_comprobante,omitempty"`
	RUC             string `json:"ruc,omitempty"`
	Ambiente        string `json:"ambiente,omitempty"`
	Establecimiento string `json:"establecimiento,omitempty"`
	PuntoEmision    string `json:"punto_emision,omitempty"`
	Secuencial      string `json:"secuencial,omitempty"`
	TipoEmision     string `json:"tipo_emision,omitempty"`
	Valida          bool   `json:"valida"`
}
