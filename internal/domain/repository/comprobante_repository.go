package repository

import (
	"context"

	"github.com/kevinvillajim/SRIAPI/internal/domain/entity"
)

// ComprobanteRepository define el puerto de persistencia para Comprobante.
type ComprobanteRepository interface {
	Create(ctx context.Context, c *entity.Comprobante) error
	// Update actualiza los campos mutables del ciclo: estado, xml_firmado,
	// numero_autorizacion, fecha_autorizacion, mensajes.
	Update(ctx context.Context, c *entity.Comprobante) error
	GetByID(ctx context.Context, id string) (*entity.Comprobante, error)
	GetByClaveAcceso(ctx context.Context, claveAcceso string) (*entity.Comprobante, error)
	// GetEstado devuelve solo los campos de estado (ligero, para polling).
	GetEstado(ctx context.Context, id string) (*entity.Comprobante, error)
	// ListPendientes devuelve comprobantes sin estado terminal, más antiguos
	// primero, para reanudación tras un reinicio.
	ListPendientes(ctx context.Context, limite int) ([]*entity.Comprobante, error)
}
