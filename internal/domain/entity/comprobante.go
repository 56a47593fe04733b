package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados internos del ciclo de emisión. Los cuatro últimos espejan la
// respuesta del SRI; los tres primeros son fases locales previas.
const (
	ComprobanteGenerado     = "GENERADO"      // XML construido, clave estampada
	ComprobanteFirmado      = "FIRMADO"       // firma XAdES aplicada, pendiente de envío
	ComprobanteEnviado      = "ENVIADO"       // entregado a recepción, respuesta pendiente
	ComprobanteRecibido     = "RECIBIDA"      // aceptado por recepción, en cola de autorización
	ComprobanteDevuelto     = "DEVUELTA"      // rechazado por recepción
	ComprobanteAutorizado   = "AUTORIZADO"    // autorización definitiva
	ComprobanteNoAutorizado = "NO AUTORIZADO" // rechazo definitivo de autorización
	ComprobanteErrorProceso = "ERROR_PROCESO" // falló firma, transporte o sondeo
)

// Comprobante representa un comprobante electrónico emitido contra el SRI.
type Comprobante struct {
	ID                 string
	ClaveAcceso        string // 49 dígitos, con dígito verificador
	TipoDoc            string // código de tabla (01 factura, 04 NC, ...)
	RUCEmisor          string
	Ambiente           string
	Establecimiento    string
	PuntoEmision       string
	Secuencial         string // 9 dígitos
	FechaEmision       time.Time
	Estado             string
	XMLFirmado         string // documento completo con ds:Signature
	NumeroAutorizacion string
	FechaAutorizacion  string // tal como la reporta el SRI
	Mensajes           string // observaciones del SRI serializadas (JSON)
	TotalSinImpuestos  decimal.Decimal
	TotalIVA           decimal.Decimal
	ImporteTotal       decimal.Decimal
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Terminal indica si el comprobante ya no va a cambiar de estado.
func (c *Comprobante) Terminal() bool {
	switch c.Estado {
	case ComprobanteDevuelto, ComprobanteAutorizado, ComprobanteNoAutorizado, ComprobanteErrorProceso:
		return true
	}
	return false
}
