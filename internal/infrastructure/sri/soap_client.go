// Package sri implementa el cliente SOAP de los servicios web offline del
// SRI: recepción (validarComprobante) y autorización (autorizacionComprobante),
// con reintentos de transporte y sondeo acotado de autorización.
package sri

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"

	"github.com/kevinvillajim/SRIAPI/internal/domain"
	"github.com/kevinvillajim/SRIAPI/internal/observability"
	"github.com/kevinvillajim/SRIAPI/pkg/logger"
	pkgsri "github.com/kevinvillajim/SRIAPI/pkg/sri"
)

// ── Endpoints ──────────────────────────────────────────────────────────────────

const (
	urlRecepcionPruebas    = "https://celcer.sri.gob.ec/comprobantes-electronicos-ws/RecepcionComprobantesOffline"
	urlRecepcionProduccion = "https://cel.sri.gob.ec/comprobantes-electronicos-ws/RecepcionComprobantesOffline"

	urlAutorizacionPruebas    = "https://celcer.sri.gob.ec/comprobantes-electronicos-ws/AutorizacionComprobantesOffline"
	urlAutorizacionProduccion = "https://cel.sri.gob.ec/comprobantes-electronicos-ws/AutorizacionComprobantesOffline"

	// Las respuestas del SRI caben de sobra en 4 MB; el límite evita
	// leer cuerpos desbocados de un intermediario roto.
	maxCuerpoRespuesta = 4 << 20
)

// ── Puerto (interfaz) ──────────────────────────────────────────────────────────

// ClienteSRI define el puerto de salida hacia los WS del SRI. La
// implementación concreta usa SOAP; para tests se inyecta un doble.
type ClienteSRI interface {
	// EnviarComprobante entrega el comprobante firmado al WS de recepción.
	// Un estado DEVUELTA se devuelve como resultado, no como error.
	EnviarComprobante(ctx context.Context, xmlFirmado []byte) (*ResultadoRecepcion, error)

	// ConsultarAutorizacion consulta el estado de autorización por clave
	// de acceso.
	ConsultarAutorizacion(ctx context.Context, claveAcceso string) (*ResultadoAutorizacion, error)

	// EsperarAutorizacion sondea hasta obtener un estado terminal o agotar
	// maxEspera. Devuelve domain.ErrTiempoAgotado si el plazo vence.
	EsperarAutorizacion(ctx context.Context, claveAcceso string, maxEspera, intervalo time.Duration) (*Autorizacion, error)
}

// ── Implementación SOAP ────────────────────────────────────────────────────────

// ConfigCliente parametriza el cliente SOAP. Los campos de URL permiten
// apuntar a un servidor de pruebas; vacíos, se resuelven por ambiente.
type ConfigCliente struct {
	Ambiente        string // pkgsri.AmbientePruebas o AmbienteProduccion
	URLRecepcion    string
	URLAutorizacion string
	Timeout         time.Duration
	Reintentos      PoliticaReintento
}

// ClienteSOAP implementa ClienteSRI contra los WS SOAP 1.1 del SRI.
type ClienteSOAP struct {
	httpClient      *http.Client
	urlRecepcion    string
	urlAutorizacion string
	politica        PoliticaReintento
	dormidor        Dormidor
	metricas        observability.Recorder
	log             *logger.Logger
}

// NewClienteSOAP construye el cliente. El timeout por defecto es 60s
// porque el WS del SRI puede tardar varios segundos bajo carga. Los
// parámetros metricas y log aceptan nil.
func NewClienteSOAP(cfg ConfigCliente, metricas observability.Recorder, log *logger.Logger) *ClienteSOAP {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	politica := cfg.Reintentos
	if politica.MaxIntentos <= 0 {
		politica = PoliticaPorDefecto()
	}

	urlRecepcion := cfg.URLRecepcion
	urlAutorizacion := cfg.URLAutorizacion
	if urlRecepcion == "" {
		urlRecepcion = urlRecepcionPruebas
		if cfg.Ambiente == pkgsri.AmbienteProduccion {
			urlRecepcion = urlRecepcionProduccion
		}
	}
	if urlAutorizacion == "" {
		urlAutorizacion = urlAutorizacionPruebas
		if cfg.Ambiente == pkgsri.AmbienteProduccion {
			urlAutorizacion = urlAutorizacionProduccion
		}
	}

	if metricas == nil {
		metricas = observability.NewNoopRecorder()
	}
	if log == nil {
		log = logger.Nop()
	}

	return &ClienteSOAP{
		httpClient:      &http.Client{Timeout: timeout},
		urlRecepcion:    urlRecepcion,
		urlAutorizacion: urlAutorizacion,
		politica:        politica,
		dormidor:        dormidorReal{},
		metricas:        metricas,
		log:             log,
	}
}

// ── EnviarComprobante ──────────────────────────────────────────────────────────

// EnviarComprobante codifica el comprobante firmado en base64 y lo entrega
// a validarComprobante.
func (c *ClienteSOAP) EnviarComprobante(ctx context.Context, xmlFirmado []byte) (*ResultadoRecepcion, error) {
	if len(xmlFirmado) == 0 {
		return nil, fmt.Errorf("comprobante vacío: %w", domain.ErrInvalidInput)
	}

	sobre := nuevoSobreValidar(base64.StdEncoding.EncodeToString(xmlFirmado))
	payload, err := xml.Marshal(sobre)
	if err != nil {
		return nil, fmt.Errorf("soap: serializar petición de recepción: %w", err)
	}

	cuerpo, err := c.llamarConReintentos(ctx, "recepcion", c.urlRecepcion, payload)
	if err != nil {
		c.metricas.RegistrarEnvio("ERROR")
		return nil, err
	}

	var resp respuestaValidar
	if err := desempaquetar(cuerpo, &resp); err != nil {
		c.metricas.RegistrarEnvio("ERROR")
		return nil, err
	}

	resultado := &ResultadoRecepcion{Estado: resp.Body.Respuesta.Recepcion.Estado}
	for _, comp := range resp.Body.Respuesta.Recepcion.Comprobantes.Comprobante {
		resultado.Mensajes = append(resultado.Mensajes, comp.Mensajes.Mensaje...)
	}

	c.metricas.RegistrarEnvio(resultado.Estado)
	c.log.Info().
		Str("estado", resultado.Estado).
		Int("mensajes", len(resultado.Mensajes)).
		Msg("respuesta de recepción SRI")

	return resultado, nil
}

// ── ConsultarAutorizacion ──────────────────────────────────────────────────────

// ConsultarAutorizacion ejecuta autorizacionComprobante para la clave dada.
func (c *ClienteSOAP) ConsultarAutorizacion(ctx context.Context, claveAcceso string) (*ResultadoAutorizacion, error) {
	if len(claveAcceso) != 49 {
		return nil, fmt.Errorf("clave de acceso de %d caracteres: %w", len(claveAcceso), domain.ErrInvalidInput)
	}

	sobre := nuevoSobreAutorizacion(claveAcceso)
	payload, err := xml.Marshal(sobre)
	if err != nil {
		return nil, fmt.Errorf("soap: serializar petición de autorización: %w", err)
	}

	cuerpo, err := c.llamarConReintentos(ctx, "autorizacion", c.urlAutorizacion, payload)
	if err != nil {
		return nil, err
	}

	var resp respuestaAutorizacion
	if err := desempaquetar(cuerpo, &resp); err != nil {
		return nil, err
	}

	bloque := resp.Body.Respuesta.Autorizacion
	numero, _ := strconv.Atoi(strings.TrimSpace(bloque.Numero))

	resultado := &ResultadoAutorizacion{
		ClaveAcceso:        bloque.ClaveAcceso,
		NumeroComprobantes: numero,
	}
	for _, aut := range bloque.Autorizaciones.Autorizacion {
		resultado.Autorizaciones = append(resultado.Autorizaciones, Autorizacion{
			Estado:             aut.Estado,
			NumeroAutorizacion: aut.NumeroAutorizacion,
			FechaAutorizacion:  aut.FechaAutorizacion,
			Ambiente:           aut.Ambiente,
			Comprobante:        aut.Comprobante,
			Mensajes:           aut.Mensajes.Mensaje,
		})
	}
	return resultado, nil
}

// ── EsperarAutorizacion ────────────────────────────────────────────────────────

// EsperarAutorizacion sondea el WS de autorización hasta un estado terminal.
// EN PROCESO y numeroComprobantes en cero mantienen el sondeo; al vencer
// maxEspera devuelve domain.ErrTiempoAgotado.
func (c *ClienteSOAP) EsperarAutorizacion(ctx context.Context, claveAcceso string, maxEspera, intervalo time.Duration) (*Autorizacion, error) {
	if intervalo <= 0 {
		intervalo = 3 * time.Second
	}
	limite := time.Now().Add(maxEspera)

	for {
		c.metricas.RegistrarSondeo()

		resultado, err := c.ConsultarAutorizacion(ctx, claveAcceso)
		if err != nil {
			return nil, err
		}

		if aut, ok := resultado.Terminal(); ok {
			c.metricas.RegistrarAutorizacion(aut.Estado)
			c.log.Info().
				Str("clave_acceso", claveAcceso).
				Str("estado", aut.Estado).
				Str("numero_autorizacion", aut.NumeroAutorizacion).
				Msg("autorización resuelta")
			return aut, nil
		}

		if time.Now().Add(intervalo).After(limite) {
			c.metricas.RegistrarAutorizacion("TIMEOUT")
			return nil, fmt.Errorf("autorización de %s sin estado terminal tras %s: %w",
				claveAcceso, maxEspera, domain.ErrTiempoAgotado)
		}
		if err := c.dormidor.Dormir(ctx, intervalo); err != nil {
			return nil, err
		}
	}
}

// ── Transporte ─────────────────────────────────────────────────────────────────

// llamarConReintentos ejecuta el POST SOAP aplicando la política de
// reintentos. Solo reintenta fallos de transporte; un 4xx o un cuerpo
// bien recibido cortan el ciclo.
func (c *ClienteSOAP) llamarConReintentos(ctx context.Context, operacion, url string, payload []byte) ([]byte, error) {
	var (
		ultimo   error
		anterior time.Duration
	)

	for intento := 0; intento < c.politica.MaxIntentos; intento++ {
		if intento > 0 {
			anterior = c.politica.Espera(intento-1, anterior)
			if err := c.dormidor.Dormir(ctx, anterior); err != nil {
				return nil, err
			}
			c.metricas.RegistrarReintento(operacion)
			c.log.Warn().
				Str("operacion", operacion).
				Int("intento", intento+1).
				Dur("espera", anterior).
				Msg("reintentando llamada al SRI")
		}

		cuerpo, status, err := c.llamar(ctx, url, payload)
		if err == nil && status == http.StatusOK {
			return cuerpo, nil
		}
		if err == nil {
			err = fmt.Errorf("soap: el SRI respondió HTTP %d", status)
		}
		ultimo = err

		if !esReintentable(status, err) {
			return nil, &domain.TransportError{
				Operacion: operacion,
				Intentos:  intento + 1,
				Retryable: false,
				Ultimo:    anterior,
				Err:       ultimo,
			}
		}
	}

	return nil, &domain.TransportError{
		Operacion: operacion,
		Intentos:  c.politica.MaxIntentos,
		Retryable: true,
		Ultimo:    anterior,
		Err:       ultimo,
	}
}

func (c *ClienteSOAP) llamar(ctx context.Context, url string, payload []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("soap: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("soap: llamada HTTP fallida: %w", err)
	}
	defer resp.Body.Close()

	cuerpo, err := io.ReadAll(io.LimitReader(resp.Body, maxCuerpoRespuesta))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("soap: leer respuesta: %w", err)
	}
	return cuerpo, resp.StatusCode, nil
}

// desempaquetar decodifica una respuesta SOAP tolerando declaraciones
// ISO-8859-1, que el SRI emite en algunos ambientes.
func desempaquetar(cuerpo []byte, destino interface{}) error {
	var fault soapFault
	if err := decodificar(cuerpo, &fault); err == nil && fault.Body.Fault.Code != "" {
		return fmt.Errorf("soap fault [%s]: %s: %w",
			fault.Body.Fault.Code, fault.Body.Fault.Reason, domain.ErrInvalidInput)
	}

	if err := decodificar(cuerpo, destino); err != nil {
		return fmt.Errorf("soap: respuesta ilegible del SRI: %w", err)
	}
	return nil
}

func decodificar(cuerpo []byte, destino interface{}) error {
	dec := xml.NewDecoder(bytes.NewReader(cuerpo))
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		switch strings.ToLower(charset) {
		case "iso-8859-1", "latin1":
			return charmap.ISO8859_1.NewDecoder().Reader(input), nil
		case "windows-1252":
			return charmap.Windows1252.NewDecoder().Reader(input), nil
		default:
			return nil, fmt.Errorf("charset no soportado: %s", charset)
		}
	}
	return dec.Decode(destino)
}

var _ ClienteSRI = (*ClienteSOAP)(nil)
