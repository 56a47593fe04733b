// Package comprobantes orquesta el ciclo completo de emisión electrónica SRI:
//
//	clave de acceso → XML factura → firma XAdES-BES → recepción → autorización → DB
//
// El núcleo (Emitir) es síncrono y respeta el contexto del caller; EmitirAsync
// persiste el comprobante en GENERADO, devuelve su ID de inmediato y continúa
// en una goroutine con contexto propio, desacoplada del ciclo HTTP.
package comprobantes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kevinvillajim/SRIAPI/internal/domain"
	"github.com/kevinvillajim/SRIAPI/internal/domain/entity"
	"github.com/kevinvillajim/SRIAPI/internal/domain/repository"
	domainsri "github.com/kevinvillajim/SRIAPI/internal/domain/sri"
	infrasri "github.com/kevinvillajim/SRIAPI/internal/infrastructure/sri"
	"github.com/kevinvillajim/SRIAPI/internal/observability"
	"github.com/kevinvillajim/SRIAPI/pkg/logger"
	pkgsri "github.com/kevinvillajim/SRIAPI/pkg/sri"
)

// Config reúne la identidad del emisor y los plazos del ciclo de emisión.
type Config struct {
	Ambiente        string
	TipoEmision     string
	Establecimiento string
	PuntoEmision    string
	Emisor          infrasri.Emisor

	// Contenedor PKCS#12 ya leído de disco y su contraseña.
	CertificadoP12   []byte
	ClaveCertificado string

	// Plazos del sondeo de autorización.
	MaxEsperaAutorizacion time.Duration
	IntervaloSondeo       time.Duration

	// TimeoutProceso acota el procesamiento asíncrono completo.
	TimeoutProceso time.Duration
}

func (c *Config) normalizar() {
	if c.Ambiente == "" {
		c.Ambiente = pkgsri.AmbientePruebas
	}
	if c.TipoEmision == "" {
		c.TipoEmision = pkgsri.EmisionNormal
	}
	if c.MaxEsperaAutorizacion <= 0 {
		c.MaxEsperaAutorizacion = 2 * time.Minute
	}
	if c.IntervaloSondeo <= 0 {
		c.IntervaloSondeo = 3 * time.Second
	}
	if c.TimeoutProceso <= 0 {
		c.TimeoutProceso = 5 * time.Minute
	}
}

// SolicitudEmision son los datos variables de una factura a emitir.
// La identidad del emisor y el ambiente vienen de la configuración.
type SolicitudEmision struct {
	Secuencial    string
	FechaEmision  time.Time
	Comprador     infrasri.Comprador
	Detalles      []infrasri.DetalleFactura
	Propina       decimal.Decimal
	InfoAdicional []infrasri.CampoAdicional
}

// EmitirUseCase orquesta la emisión de comprobantes contra el SRI.
type EmitirUseCase struct {
	repo      repository.ComprobanteRepository
	generador GeneradorClaves
	builder   ConstructorComprobante
	firmador  pkgsri.Firmador
	cliente   infrasri.ClienteSRI
	cfg       Config
	metricas  observability.Recorder
	log       *logger.Logger
}

// NewEmitirUseCase construye el caso de uso. metricas y log aceptan nil.
func NewEmitirUseCase(
	repo repository.ComprobanteRepository,
	generador GeneradorClaves,
	builder ConstructorComprobante,
	firmador pkgsri.Firmador,
	cliente infrasri.ClienteSRI,
	cfg Config,
	metricas observability.Recorder,
	log *logger.Logger,
) *EmitirUseCase {
	cfg.normalizar()
	if metricas == nil {
		metricas = observability.NewNoopRecorder()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &EmitirUseCase{
		repo:      repo,
		generador: generador,
		builder:   builder,
		firmador:  firmador,
		cliente:   cliente,
		cfg:       cfg,
		metricas:  metricas,
		log:       log,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// Emisión
// ══════════════════════════════════════════════════════════════════════════════

// Emitir ejecuta el ciclo completo de forma síncrona: genera la clave,
// construye y firma el XML, lo entrega a recepción y sondea autorización.
// El comprobante queda persistido con cada cambio de fase; un rechazo del
// SRI (DEVUELTA, NO AUTORIZADO) es un estado terminal del comprobante,
// no un error.
func (uc *EmitirUseCase) Emitir(ctx context.Context, sol *SolicitudEmision) (*entity.Comprobante, error) {
	comp, err := uc.generar(ctx, sol)
	if err != nil {
		return nil, err
	}
	return uc.procesar(ctx, comp)
}

// EmitirAsync genera y persiste el comprobante en GENERADO, devuelve la
// entidad de inmediato y continúa la firma, el envío y el sondeo en una
// goroutine con contexto propio.
func (uc *EmitirUseCase) EmitirAsync(ctx context.Context, sol *SolicitudEmision) (*entity.Comprobante, error) {
	comp, err := uc.generar(ctx, sol)
	if err != nil {
		return nil, err
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), uc.cfg.TimeoutProceso)
		defer cancel()
		if _, err := uc.procesar(ctx, comp); err != nil {
			uc.log.Error().Err(err).
				Str("comprobante_id", comp.ID).
				Str("clave_acceso", comp.ClaveAcceso).
				Msg("procesamiento asíncrono fallido")
		}
	}()

	return comp, nil
}

// generar produce la clave de acceso, construye el XML sin firma y persiste
// el comprobante en estado GENERADO. Corre siempre dentro del contexto del
// caller; cualquier entrada inválida falla aquí, antes de tocar la red.
func (uc *EmitirUseCase) generar(ctx context.Context, sol *SolicitudEmision) (*entity.Comprobante, error) {
	if sol == nil {
		return nil, fmt.Errorf("solicitud vacía: %w", domain.ErrInvalidInput)
	}
	fecha := sol.FechaEmision
	if fecha.IsZero() {
		fecha = time.Now()
	}

	clave, err := uc.generador.Generar(domainsri.ClaveParams{
		FechaEmision:    fecha,
		TipoComprobante: pkgsri.DocFactura,
		RUC:             uc.cfg.Emisor.RUC,
		Ambiente:        uc.cfg.Ambiente,
		Establecimiento: uc.cfg.Establecimiento,
		PuntoEmision:    uc.cfg.PuntoEmision,
		Secuencial:      sol.Secuencial,
		TipoEmision:     uc.cfg.TipoEmision,
	})
	if err != nil {
		return nil, err
	}
	campos, err := domainsri.Parsear(clave)
	if err != nil {
		return nil, err
	}

	contexto := &infrasri.ComprobanteBuildContext{
		ClaveAcceso:     clave,
		Ambiente:        uc.cfg.Ambiente,
		TipoEmision:     uc.cfg.TipoEmision,
		Secuencial:      campos.Secuencial,
		Establecimiento: uc.cfg.Establecimiento,
		PuntoEmision:    uc.cfg.PuntoEmision,
		FechaEmision:    fecha,
		Emisor:          &uc.cfg.Emisor,
		Comprador:       &sol.Comprador,
		Detalles:        sol.Detalles,
		Propina:         sol.Propina,
		InfoAdicional:   sol.InfoAdicional,
	}
	xmlSinFirma, err := uc.builder.Build(contexto)
	if err != nil {
		return nil, err
	}

	totalSinImpuestos := decimal.Zero
	totalIVA := decimal.Zero
	for _, det := range sol.Detalles {
		totalSinImpuestos = totalSinImpuestos.Add(det.PrecioTotalSinImpuesto())
		totalIVA = totalIVA.Add(det.ValorIVA())
	}

	ahora := time.Now()
	comp := &entity.Comprobante{
		ClaveAcceso:       clave,
		TipoDoc:           pkgsri.DocFactura,
		RUCEmisor:         uc.cfg.Emisor.RUC,
		Ambiente:          uc.cfg.Ambiente,
		Establecimiento:   uc.cfg.Establecimiento,
		PuntoEmision:      uc.cfg.PuntoEmision,
		Secuencial:        campos.Secuencial,
		FechaEmision:      fecha,
		Estado:            entity.ComprobanteGenerado,
		XMLFirmado:        string(xmlSinFirma), // se reemplaza al firmar
		TotalSinImpuestos: totalSinImpuestos,
		TotalIVA:          totalIVA,
		ImporteTotal:      totalSinImpuestos.Add(totalIVA).Add(sol.Propina),
		CreatedAt:         ahora,
		UpdatedAt:         ahora,
	}
	if err := uc.repo.Create(ctx, comp); err != nil {
		return nil, err
	}
	return comp, nil
}

// procesar continúa desde GENERADO: firma, envía y sondea. Siempre deja el
// estado persistido coherente con la última fase alcanzada.
func (uc *EmitirUseCase) procesar(ctx context.Context, comp *entity.Comprobante) (*entity.Comprobante, error) {
	firmado, err := uc.firmador.Firmar([]byte(comp.XMLFirmado), uc.cfg.CertificadoP12, uc.cfg.ClaveCertificado)
	if err != nil {
		uc.metricas.RegistrarFirma(false)
		uc.marcarError(ctx, comp, "firma", err)
		return nil, err
	}
	uc.metricas.RegistrarFirma(true)

	comp.XMLFirmado = string(firmado)
	comp.Estado = entity.ComprobanteFirmado
	if err := uc.actualizar(ctx, comp); err != nil {
		return nil, err
	}

	// ENVIADO marca que el XML salió hacia recepción; si el SRI no responde,
	// el comprobante queda distinguible de uno que nunca se envió.
	comp.Estado = entity.ComprobanteEnviado
	if err := uc.actualizar(ctx, comp); err != nil {
		return nil, err
	}

	recepcion, err := uc.cliente.EnviarComprobante(ctx, firmado)
	if err != nil {
		uc.marcarError(ctx, comp, "recepcion", err)
		return nil, err
	}

	if !recepcion.Recibida() {
		comp.Estado = entity.ComprobanteDevuelto
		comp.Mensajes = serializarMensajes(recepcion.Mensajes)
		if err := uc.actualizar(ctx, comp); err != nil {
			return nil, err
		}
		uc.log.Warn().
			Str("clave_acceso", comp.ClaveAcceso).
			Str("mensajes", comp.Mensajes).
			Msg("comprobante devuelto por recepción")
		return comp, nil
	}

	comp.Estado = entity.ComprobanteRecibido
	if err := uc.actualizar(ctx, comp); err != nil {
		return nil, err
	}

	aut, err := uc.cliente.EsperarAutorizacion(ctx, comp.ClaveAcceso,
		uc.cfg.MaxEsperaAutorizacion, uc.cfg.IntervaloSondeo)
	if err != nil {
		if errors.Is(err, domain.ErrTiempoAgotado) {
			// El comprobante sigue en cola del SRI; queda RECIBIDA y se
			// puede reconsultar con Autorizar.
			return comp, err
		}
		uc.marcarError(ctx, comp, "autorizacion", err)
		return nil, err
	}

	uc.aplicarAutorizacion(comp, aut)
	if err := uc.actualizar(ctx, comp); err != nil {
		return nil, err
	}
	return comp, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// Consultas
// ══════════════════════════════════════════════════════════════════════════════

// ConsultarEstado devuelve los campos de estado del comprobante.
func (uc *EmitirUseCase) ConsultarEstado(ctx context.Context, id string) (*entity.Comprobante, error) {
	return uc.repo.GetEstado(ctx, id)
}

// Obtener devuelve el comprobante completo, XML firmado incluido.
func (uc *EmitirUseCase) Obtener(ctx context.Context, id string) (*entity.Comprobante, error) {
	return uc.repo.GetByID(ctx, id)
}

// Pendientes lista los comprobantes que aún no alcanzan un estado terminal.
func (uc *EmitirUseCase) Pendientes(ctx context.Context, limite int) ([]*entity.Comprobante, error) {
	return uc.repo.ListPendientes(ctx, limite)
}

// Autorizar reconsulta la autorización de un comprobante ya recibido y
// persiste el desenlace si es terminal.
func (uc *EmitirUseCase) Autorizar(ctx context.Context, id string) (*entity.Comprobante, error) {
	comp, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if comp.Terminal() {
		return comp, nil
	}

	resultado, err := uc.cliente.ConsultarAutorizacion(ctx, comp.ClaveAcceso)
	if err != nil {
		return nil, err
	}
	aut, ok := resultado.Terminal()
	if !ok {
		return comp, nil
	}

	uc.aplicarAutorizacion(comp, aut)
	if err := uc.actualizar(ctx, comp); err != nil {
		return nil, err
	}
	return comp, nil
}

// Firmar firma un comprobante arbitrario con el certificado configurado,
// sin persistir ni enviar nada.
func (uc *EmitirUseCase) Firmar(xmlBytes []byte) ([]byte, error) {
	firmado, err := uc.firmador.Firmar(xmlBytes, uc.cfg.CertificadoP12, uc.cfg.ClaveCertificado)
	uc.metricas.RegistrarFirma(err == nil)
	return firmado, err
}

// ══════════════════════════════════════════════════════════════════════════════
// Internos
// ══════════════════════════════════════════════════════════════════════════════

func (uc *EmitirUseCase) aplicarAutorizacion(comp *entity.Comprobante, aut *infrasri.Autorizacion) {
	if aut.Estado == pkgsri.EstadoAutorizado {
		comp.Estado = entity.ComprobanteAutorizado
	} else {
		comp.Estado = entity.ComprobanteNoAutorizado
	}
	comp.NumeroAutorizacion = aut.NumeroAutorizacion
	comp.FechaAutorizacion = aut.FechaAutorizacion
	comp.Mensajes = serializarMensajes(aut.Mensajes)
}

func (uc *EmitirUseCase) actualizar(ctx context.Context, comp *entity.Comprobante) error {
	comp.UpdatedAt = time.Now()
	if err := uc.repo.Update(ctx, comp); err != nil {
		return fmt.Errorf("persistir estado %s: %w", comp.Estado, err)
	}
	return nil
}

// marcarError deja el comprobante en ERROR_PROCESO con el detalle del fallo.
// Usa un contexto nuevo si el del caller ya está cancelado, para no perder
// el estado.
func (uc *EmitirUseCase) marcarError(ctx context.Context, comp *entity.Comprobante, fase string, causa error) {
	comp.Estado = entity.ComprobanteErrorProceso
	comp.Mensajes = serializarMensajes([]infrasri.Mensaje{{
		Identificador: fase,
		Tipo:          "ERROR",
		Mensaje:       causa.Error(),
	}})
	comp.UpdatedAt = time.Now()

	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}
	if err := uc.repo.Update(ctx, comp); err != nil {
		uc.log.Error().Err(err).
			Str("comprobante_id", comp.ID).
			Msg("no se pudo persistir ERROR_PROCESO")
	}
}

func serializarMensajes(mensajes []infrasri.Mensaje) string {
	if len(mensajes) == 0 {
		return ""
	}
	b, err := json.Marshal(mensajes)
	if err != nil {
		return ""
	}
	return string(b)
}
