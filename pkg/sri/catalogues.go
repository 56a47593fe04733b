// Package sri contiene catálogos y validaciones alineados a la Ficha Técnica
// de Comprobantes Electrónicos del SRI (Ecuador), esquema offline v2.21.
package sri

// =============================================================================
// Tabla 3 - Tipos de comprobante (Ficha Técnica SRI - codDoc)
// Código de dos dígitos que va en la clave de acceso y en infoTributaria.
// =============================================================================

const (
	DocFactura              = "01" // Factura
	DocLiquidacionCompra    = "03" // Liquidación de compra de bienes y prestación de servicios
	DocNotaCredito          = "04" // Nota de crédito
	DocNotaDebito           = "05" // Nota de débito
	DocGuiaRemision         = "06" // Guía de remisión
	DocComprobanteRetencion = "07" // Comprobante de retención
)

// ValidDocumentTypeCodes contiene los códigos de tipo de comprobante aceptados por el SRI.
var ValidDocumentTypeCodes = map[string]bool{
	DocFactura: true, DocLiquidacionCompra: true, DocNotaCredito: true,
	DocNotaDebito: true, DocGuiaRemision: true, DocComprobanteRetencion: true,
}

// =============================================================================
// Tabla 4 - Ambiente (Ficha Técnica SRI - tipoAmbiente)
// =============================================================================

const (
	AmbientePruebas    = "1" // Pruebas (celcer.sri.gob.ec)
	AmbienteProduccion = "2" // Producción (cel.sri.gob.ec)
)

// =============================================================================
// Tabla 2 - Tipo de emisión (Ficha Técnica SRI - tipoEmision)
// El esquema offline solo contempla emisión normal; la emisión por indisponibilidad
// (2) quedó sin efecto pero sigue siendo un valor estructuralmente válido de la clave.
// =============================================================================

const (
	EmisionNormal           = "1"
	EmisionIndisponibilidad = "2"
)

// =============================================================================
// Estados del ciclo de vida de un comprobante frente al SRI.
// RECIBIDA/DEVUELTA los devuelve el WS de recepción; AUTORIZADO/NO AUTORIZADO/
// EN PROCESO el WS de autorización.
// =============================================================================

const (
	EstadoRecibida     = "RECIBIDA"
	EstadoDevuelta     = "DEVUELTA"
	EstadoAutorizado   = "AUTORIZADO"
	EstadoNoAutorizado = "NO AUTORIZADO"
	EstadoEnProceso    = "EN PROCESO"
)

// EsEstadoTerminal indica si un estado de autorización ya no va a cambiar.
// EN PROCESO (y la ausencia de registros) obligan a seguir consultando.
func EsEstadoTerminal(estado string) bool {
	return estado == EstadoAutorizado || estado == EstadoNoAutorizado
}

// =============================================================================
// Tabla 6 - Obligado a llevar contabilidad / identificación del comprador
// (códigos de uso frecuente en infoFactura).
// =============================================================================

const (
	IdentificacionRUC             = "04" // RUC
	IdentificacionCedula          = "05" // Cédula
	IdentificacionPasaporte       = "06" // Pasaporte
	IdentificacionConsumidorFinal = "07" // Consumidor final (9999999999999)
)

// RUCConsumidorFinal identificación genérica para ventas a consumidor final.
const RUCConsumidorFinal = "9999999999999"

// =============================================================================
// Tabla 16/17 - Impuestos (codigo / codigoPorcentaje para IVA)
// =============================================================================

const (
	ImpuestoIVA    = "2" // IVA
	ImpuestoICE    = "3" // ICE
	ImpuestoIRBPNR = "5" // IRBPNR

	TarifaIVA0        = "0" // 0%
	TarifaIVA12       = "2" // 12%
	TarifaIVA15       = "4" // 15% (vigente desde abril 2024)
	TarifaIVANoObjeto = "6"
	TarifaIVAExento   = "7"
)
