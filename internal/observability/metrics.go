// Package observability define el puerto de métricas del ciclo de emisión SRI
// y sus adaptadores: Prometheus para producción, Noop para tests o métricas
// deshabilitadas.
package observability

import "github.com/prometheus/client_golang/prometheus"

// Recorder es el puerto para registrar métricas del pipeline de firma y envío.
type Recorder interface {
	// RegistrarFirma registra un intento de firma y su resultado.
	RegistrarFirma(exito bool)

	// RegistrarEnvio registra la respuesta del WS de recepción (RECIBIDA,
	// DEVUELTA o ERROR de transporte).
	RegistrarEnvio(resultado string)

	// RegistrarReintento registra un reintento de transporte contra el SRI.
	RegistrarReintento(operacion string)

	// RegistrarSondeo registra un ciclo de consulta de autorización.
	RegistrarSondeo()

	// RegistrarAutorizacion registra el desenlace terminal del sondeo
	// (AUTORIZADO, NO AUTORIZADO o TIMEOUT).
	RegistrarAutorizacion(estado string)
}

// NoopRecorder no hace nada; seguro de llamar siempre.
type NoopRecorder struct{}

// NewNoopRecorder crea el recorder nulo.
func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RegistrarFirma(exito bool)           {}
func (n *NoopRecorder) RegistrarEnvio(resultado string)     {}
func (n *NoopRecorder) RegistrarReintento(operacion string) {}
func (n *NoopRecorder) RegistrarSondeo()                    {}
func (n *NoopRecorder) RegistrarAutorizacion(estado string) {}

// PrometheusRecorder registra las métricas en Prometheus.
type PrometheusRecorder struct {
	firmasTotal         *prometheus.CounterVec
	enviosTotal         *prometheus.CounterVec
	reintentosTotal     *prometheus.CounterVec
	sondeosTotal        prometheus.Counter
	autorizacionesTotal *prometheus.CounterVec
}

// NewPrometheusRecorder usa el registro por defecto de Prometheus.
func NewPrometheusRecorder() *PrometheusRecorder {
	return NewPrometheusRecorderWithRegistry(prometheus.DefaultRegisterer)
}

// NewPrometheusRecorderWithRegistry acepta un registro propio (para tests).
func NewPrometheusRecorderWithRegistry(reg prometheus.Registerer) *PrometheusRecorder {
	firmasTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sri_firmas_total",
		Help: "Total de intentos de firma XAdES",
	}, []string{"resultado"})

	enviosTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sri_envios_total",
		Help: "Total de envíos al WS de recepción del SRI",
	}, []string{"resultado"})

	reintentosTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sri_reintentos_transporte_total",
		Help: "Total de reintentos de transporte contra el SRI",
	}, []string{"operacion"})

	sondeosTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sri_sondeos_autorizacion_total",
		Help: "Total de ciclos de consulta de autorización",
	})

	autorizacionesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sri_autorizaciones_total",
		Help: "Desenlaces terminales del sondeo de autorización",
	}, []string{"estado"})

	reg.MustRegister(firmasTotal, enviosTotal, reintentosTotal, sondeosTotal, autorizacionesTotal)

	return &PrometheusRecorder{
		firmasTotal:         firmasTotal,
		enviosTotal:         enviosTotal,
		reintentosTotal:     reintentosTotal,
		sondeosTotal:        sondeosTotal,
		autorizacionesTotal: autorizacionesTotal,
	}
}

func (p *PrometheusRecorder) RegistrarFirma(exito bool) {
	resultado := "ok"
	if !exito {
		resultado = "error"
	}
	p.firmasTotal.WithLabelValues(resultado).Inc()
}

func (p *PrometheusRecorder) RegistrarEnvio(resultado string) {
	p.enviosTotal.WithLabelValues(resultado).Inc()
}

func (p *PrometheusRecorder) RegistrarReintento(operacion string) {
	p.reintentosTotal.WithLabelValues(operacion).Inc()
}

func (p *PrometheusRecorder) RegistrarSondeo() {
	p.sondeosTotal.Inc()
}

func (p *PrometheusRecorder) RegistrarAutorizacion(estado string) {
	p.autorizacionesTotal.WithLabelValues(estado).Inc()
}

var (
	_ Recorder = (*NoopRecorder)(nil)
	_ Recorder = (*PrometheusRecorder)(nil)
)
