package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinvillajim/SRIAPI/internal/application/comprobantes"
	"github.com/kevinvillajim/SRIAPI/internal/application/dto"
	"github.com/kevinvillajim/SRIAPI/internal/domain"
	"github.com/kevinvillajim/SRIAPI/internal/domain/entity"
	apphttp "github.com/kevinvillajim/SRIAPI/internal/interfaces/http"
)

// repoConsulta sirve solo los caminos de lectura del handler.
type repoConsulta struct {
	comprobantes []*entity.Comprobante
}

func (r *repoConsulta) Create(ctx context.Context, c *entity.Comprobante) error { return nil }

func (r *repoConsulta) Update(ctx context.Context, c *entity.Comprobante) error { return nil }

func (r *repoConsulta) GetByID(ctx context.Context, id string) (*entity.Comprobante, error) {
	for _, c := range r.comprobantes {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *repoConsulta) GetByClaveAcceso(ctx context.Context, clave string) (*entity.Comprobante, error) {
	return nil, domain.ErrNotFound
}

func (r *repoConsulta) GetEstado(ctx context.Context, id string) (*entity.Comprobante, error) {
	return r.GetByID(ctx, id)
}

func (r *repoConsulta) ListPendientes(ctx context.Context, limite int) ([]*entity.Comprobante, error) {
	var out []*entity.Comprobante
	for _, c := range r.comprobantes {
		if c.Terminal() {
			continue
		}
		out = append(out, c)
		if len(out) == limite {
			break
		}
	}
	return out, nil
}

func buildComprobanteApp(repo *repoConsulta) *fiber.App {
	uc := comprobantes.NewEmitirUseCase(repo, nil, nil, nil, nil, comprobantes.Config{}, nil, nil)
	h := apphttp.NewComprobanteHandler(uc)
	app := fiber.New()
	app.Get("/comprobantes/pendientes", h.Pendientes)
	app.Get("/comprobantes/:id", h.Obtener)
	app.Get("/comprobantes/:id/estado", h.Estado)
	return app
}

func comprobanteEnEstado(id, estado string) *entity.Comprobante {
	return &entity.Comprobante{
		ID:          id,
		ClaveAcceso: "1501202401179214673900110010010000000011234567811",
		Estado:      estado,
		Secuencial:  "000000001",
		UpdatedAt:   time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestComprobanteHandler_PendientesConMetadatosDePagina(t *testing.T) {
	repo := &repoConsulta{comprobantes: []*entity.Comprobante{
		comprobanteEnEstado("c1", entity.ComprobanteFirmado),
		comprobanteEnEstado("c2", entity.ComprobanteEnviado),
		comprobanteEnEstado("c3", entity.ComprobanteAutorizado),
	}}
	app := buildComprobanteApp(repo)

	req := httptest.NewRequest(http.MethodGet, "/comprobantes/pendientes", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var lista dto.ListaComprobantesResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&lista))

	require.Len(t, lista.Data, 2, "los terminales no son pendientes")
	assert.Equal(t, 20, lista.Page.Limit)
	assert.Zero(t, lista.Page.Offset)
	assert.Equal(t, 2, lista.Page.Total)
}

func TestComprobanteHandler_PendientesRespetaLimit(t *testing.T) {
	repo := &repoConsulta{comprobantes: []*entity.Comprobante{
		comprobanteEnEstado("c1", entity.ComprobanteFirmado),
		comprobanteEnEstado("c2", entity.ComprobanteEnviado),
		comprobanteEnEstado("c3", entity.ComprobanteRecibido),
	}}
	app := buildComprobanteApp(repo)

	req := httptest.NewRequest(http.MethodGet, "/comprobantes/pendientes?limit=2", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var lista dto.ListaComprobantesResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&lista))
	assert.Len(t, lista.Data, 2)
	assert.Equal(t, 2, lista.Page.Limit)
	assert.Equal(t, 2, lista.Page.Total)
}

func TestComprobanteHandler_ObtenerNoEncontrado(t *testing.T) {
	app := buildComprobanteApp(&repoConsulta{})

	req := httptest.NewRequest(http.MethodGet, "/comprobantes/no-existe", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	var out dto.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "NOT_FOUND", out.Code)
}
