package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kevinvillajim/SRIAPI/internal/domain"
	"github.com/kevinvillajim/SRIAPI/internal/domain/entity"
	"github.com/kevinvillajim/SRIAPI/internal/domain/repository"
)

var _ repository.ComprobanteRepository = (*ComprobanteRepo)(nil)

// ComprobanteRepo implementación de ComprobanteRepository (usable con pool o tx).
type ComprobanteRepo struct {
	q Querier
}

// NewComprobanteRepository construye el adaptador. Pasar pool o tx (Querier).
func NewComprobanteRepository(q Querier) *ComprobanteRepo {
	return &ComprobanteRepo{q: q}
}

const columnasComprobante = `
	id, clave_acceso, tipo_doc, ruc_emisor, ambiente, establecimiento,
	punto_emision, secuencial, fecha_emision, estado, xml_firmado,
	numero_autorizacion, fecha_autorizacion, mensajes,
	total_sin_impuestos, total_iva, importe_total, created_at, updated_at`

// Create persiste el comprobante recién generado.
func (r *ComprobanteRepo) Create(ctx context.Context, c *entity.Comprobante) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	query := `
		INSERT INTO comprobantes (id, clave_acceso, tipo_doc, ruc_emisor, ambiente, establecimiento,
			punto_emision, secuencial, fecha_emision, estado, xml_firmado,
			numero_autorizacion, fecha_autorizacion, mensajes,
			total_sin_impuestos, total_iva, importe_total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`
	_, err := r.q.Exec(ctx, query,
		c.ID, c.ClaveAcceso, c.TipoDoc, c.RUCEmisor, c.Ambiente, c.Establecimiento,
		c.PuntoEmision, c.Secuencial, c.FechaEmision, c.Estado, nullIfEmpty(c.XMLFirmado),
		nullIfEmpty(c.NumeroAutorizacion), nullIfEmpty(c.FechaAutorizacion), nullIfEmpty(c.Mensajes),
		c.TotalSinImpuestos, c.TotalIVA, c.ImporteTotal, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("clave de acceso %s ya registrada: %w", c.ClaveAcceso, domain.ErrDuplicate)
		}
		return fmt.Errorf("insert comprobante: %w", err)
	}
	return nil
}

// Update actualiza los campos mutables del ciclo de emisión.
func (r *ComprobanteRepo) Update(ctx context.Context, c *entity.Comprobante) error {
	query := `
		UPDATE comprobantes
		SET estado = $2, xml_firmado = $3, numero_autorizacion = $4,
			fecha_autorizacion = $5, mensajes = $6, updated_at = NOW()
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		c.ID, c.Estado, nullIfEmpty(c.XMLFirmado),
		nullIfEmpty(c.NumeroAutorizacion), nullIfEmpty(c.FechaAutorizacion), nullIfEmpty(c.Mensajes),
	)
	if err != nil {
		return fmt.Errorf("update comprobante: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("comprobante %s: %w", c.ID, domain.ErrNotFound)
	}
	return nil
}

// GetByID obtiene el comprobante completo.
func (r *ComprobanteRepo) GetByID(ctx context.Context, id string) (*entity.Comprobante, error) {
	query := `SELECT` + columnasComprobante + ` FROM comprobantes WHERE id = $1`
	return r.escanearUno(r.q.QueryRow(ctx, query, id), id)
}

// GetByClaveAcceso obtiene el comprobante por su clave de acceso.
func (r *ComprobanteRepo) GetByClaveAcceso(ctx context.Context, claveAcceso string) (*entity.Comprobante, error) {
	query := `SELECT` + columnasComprobante + ` FROM comprobantes WHERE clave_acceso = $1`
	return r.escanearUno(r.q.QueryRow(ctx, query, claveAcceso), claveAcceso)
}

// GetEstado devuelve solo los campos de estado, sin el XML firmado.
func (r *ComprobanteRepo) GetEstado(ctx context.Context, id string) (*entity.Comprobante, error) {
	query := `
		SELECT id, clave_acceso, estado, numero_autorizacion, fecha_autorizacion, mensajes, updated_at
		FROM comprobantes WHERE id = $1`
	c := &entity.Comprobante{}
	var numeroAut, fechaAut, mensajes *string
	err := r.q.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.ClaveAcceso, &c.Estado, &numeroAut, &fechaAut, &mensajes, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("comprobante %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get estado comprobante: %w", err)
	}
	c.NumeroAutorizacion = derefOrEmpty(numeroAut)
	c.FechaAutorizacion = derefOrEmpty(fechaAut)
	c.Mensajes = derefOrEmpty(mensajes)
	return c, nil
}

// ListPendientes devuelve comprobantes sin estado terminal, más antiguos primero.
func (r *ComprobanteRepo) ListPendientes(ctx context.Context, limite int) ([]*entity.Comprobante, error) {
	if limite <= 0 {
		limite = 100
	}
	query := `SELECT` + columnasComprobante + `
		FROM comprobantes
		WHERE estado IN ($1, $2, $3, $4)
		ORDER BY created_at ASC
		LIMIT $5`
	rows, err := r.q.Query(ctx, query,
		entity.ComprobanteGenerado, entity.ComprobanteFirmado,
		entity.ComprobanteEnviado, entity.ComprobanteRecibido, limite)
	if err != nil {
		return nil, fmt.Errorf("list comprobantes pendientes: %w", err)
	}
	defer rows.Close()

	var pendientes []*entity.Comprobante
	for rows.Next() {
		c, err := escanearComprobante(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comprobante pendiente: %w", err)
		}
		pendientes = append(pendientes, c)
	}
	return pendientes, rows.Err()
}

// pgxScanner abstrae pgx.Row y pgx.Rows para reutilizar el escaneo.
type pgxScanner interface {
	Scan(dest ...any) error
}

func (r *ComprobanteRepo) escanearUno(row pgx.Row, ref string) (*entity.Comprobante, error) {
	c, err := escanearComprobante(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("comprobante %s: %w", ref, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get comprobante: %w", err)
	}
	return c, nil
}

func escanearComprobante(s pgxScanner) (*entity.Comprobante, error) {
	c := &entity.Comprobante{}
	var xmlFirmado, numeroAut, fechaAut, mensajes *string
	err := s.Scan(
		&c.ID, &c.ClaveAcceso, &c.TipoDoc, &c.RUCEmisor, &c.Ambiente, &c.Establecimiento,
		&c.PuntoEmision, &c.Secuencial, &c.FechaEmision, &c.Estado, &xmlFirmado,
		&numeroAut, &fechaAut, &mensajes,
		&c.TotalSinImpuestos, &c.TotalIVA, &c.ImporteTotal, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.XMLFirmado = derefOrEmpty(xmlFirmado)
	c.NumeroAutorizacion = derefOrEmpty(numeroAut)
	c.FechaAutorizacion = derefOrEmpty(fechaAut)
	c.Mensajes = derefOrEmpty(mensajes)
	return c, nil
}
