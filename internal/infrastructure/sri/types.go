package sri

import (
	"encoding/xml"

	pkgsri "github.com/kevinvillajim/SRIAPI/pkg/sri"
)

// ═══════════════════════════════════════════════════════════════════
// SOBRES DE PETICIÓN
// ═══════════════════════════════════════════════════════════════════

const (
	nsSOAP         = "http://schemas.xmlsoap.org/soap/envelope/"
	nsRecepcion    = "http://ec.gob.sri.ws.recepcion"
	nsAutorizacion = "http://ec.gob.sri.ws.autorizacion"
)

// sobreValidar es la petición validarComprobante del WS de recepción.
// El comprobante firmado viaja en base64 dentro del elemento xml.
type sobreValidar struct {
	XMLName xml.Name `xml:"soapenv:Envelope"`
	NsSOAP  string   `xml:"xmlns:soapenv,attr"`
	NsEC    string   `xml:"xmlns:ec,attr"`
	Header  struct{} `xml:"soapenv:Header"`
	Body    struct {
		Validar struct {
			XML string `xml:"xml"`
		} `xml:"ec:validarComprobante"`
	} `xml:"soapenv:Body"`
}

func nuevoSobreValidar(comprobanteBase64 string) *sobreValidar {
	s := &sobreValidar{NsSOAP: nsSOAP, NsEC: nsRecepcion}
	s.Body.Validar.XML = comprobanteBase64
	return s
}

// sobreAutorizacion es la petición autorizacionComprobante del WS de
// autorización, consultada por clave de acceso.
type sobreAutorizacion struct {
	XMLName xml.Name `xml:"soapenv:Envelope"`
	NsSOAP  string   `xml:"xmlns:soapenv,attr"`
	NsEC    string   `xml:"xmlns:ec,attr"`
	Header  struct{} `xml:"soapenv:Header"`
	Body    struct {
		Autorizacion struct {
			ClaveAcceso string `xml:"claveAccesoComprobante"`
		} `xml:"ec:autorizacionComprobante"`
	} `xml:"soapenv:Body"`
}

func nuevoSobreAutorizacion(claveAcceso string) *sobreAutorizacion {
	s := &sobreAutorizacion{NsSOAP: nsSOAP, NsEC: nsAutorizacion}
	s.Body.Autorizacion.ClaveAcceso = claveAcceso
	return s
}

// ═══════════════════════════════════════════════════════════════════
// SOBRES DE RESPUESTA
// ═══════════════════════════════════════════════════════════════════

// Mensaje es una observación emitida por el SRI sobre un comprobante.
type Mensaje struct {
	Identificador        string `xml:"identificador"`
	Mensaje              string `xml:"mensaje"`
	InformacionAdicional string `xml:"informacionAdicional"`
	Tipo                 string `xml:"tipo"`
}

type respuestaValidar struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Respuesta struct {
			Recepcion struct {
				Estado       string `xml:"estado"`
				Comprobantes struct {
					Comprobante []struct {
						ClaveAcceso string `xml:"claveAcceso"`
						Mensajes    struct {
							Mensaje []Mensaje `xml:"mensaje"`
						} `xml:"mensajes"`
					} `xml:"comprobante"`
				} `xml:"comprobantes"`
			} `xml:"RespuestaRecepcionComprobante"`
		} `xml:"validarComprobanteResponse"`
	} `xml:"Body"`
}

type respuestaAutorizacion struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Respuesta struct {
			Autorizacion struct {
				ClaveAcceso    string `xml:"claveAccesoConsultada"`
				Numero         string `xml:"numeroComprobantes"`
				Autorizaciones struct {
					Autorizacion []struct {
						Estado             string `xml:"estado"`
						NumeroAutorizacion string `xml:"numeroAutorizacion"`
						FechaAutorizacion  string `xml:"fechaAutorizacion"`
						Ambiente           string `xml:"ambiente"`
						Comprobante        string `xml:"comprobante"`
						Mensajes           struct {
							Mensaje []Mensaje `xml:"mensaje"`
						} `xml:"mensajes"`
					} `xml:"autorizacion"`
				} `xml:"autorizaciones"`
			} `xml:"RespuestaAutorizacionComprobante"`
		} `xml:"autorizacionComprobanteResponse"`
	} `xml:"Body"`
}

// soapFault captura un Fault SOAP 1.1 devuelto por el servicio.
type soapFault struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Fault struct {
			Code   string `xml:"faultcode"`
			Reason string `xml:"faultstring"`
		} `xml:"Fault"`
	} `xml:"Body"`
}

// ═══════════════════════════════════════════════════════════════════
// RESULTADOS DE DOMINIO
// ═══════════════════════════════════════════════════════════════════

// ResultadoRecepcion es la respuesta normalizada de validarComprobante.
// Un estado DEVUELTA es un resultado de negocio, no un error de transporte.
type ResultadoRecepcion struct {
	Estado   string
	Mensajes []Mensaje
}

// Recibida indica si el comprobante quedó aceptado para procesamiento.
func (r *ResultadoRecepcion) Recibida() bool {
	return r.Estado == pkgsri.EstadoRecibida
}

// Autorizacion es una entrada del bloque autorizaciones de la consulta.
type Autorizacion struct {
	Estado             string
	NumeroAutorizacion string
	FechaAutorizacion  string
	Ambiente           string
	Comprobante        string
	Mensajes           []Mensaje
}

// ResultadoAutorizacion es la respuesta normalizada de
// autorizacionComprobante. NumeroComprobantes en cero significa que el
// comprobante aún no está indexado y hay que seguir sondeando.
type ResultadoAutorizacion struct {
	ClaveAcceso        string
	NumeroComprobantes int
	Autorizaciones     []Autorizacion
}

// Terminal devuelve la primera autorización con estado definitivo
// (AUTORIZADO o NO AUTORIZADO), si existe.
func (r *ResultadoAutorizacion) Terminal() (*Autorizacion, bool) {
	for i := range r.Autorizaciones {
		if pkgsri.EsEstadoTerminal(r.Autorizaciones[i].Estado) {
			return &r.Autorizaciones[i], true
		}
	}
	return nil, false
}
