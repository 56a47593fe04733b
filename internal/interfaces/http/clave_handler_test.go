package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinvillajim/SRIAPI/internal/application/dto"
	domainsri "github.com/kevinvillajim/SRIAPI/internal/domain/sri"
	apphttp "github.com/kevinvillajim/SRIAPI/internal/interfaces/http"
)

func buildClaveApp() *fiber.App {
	app := fiber.New()
	h := apphttp.NewClaveHandler(domainsri.NewGeneradorClave(nil))
	app.Post("/claves", h.Generar)
	app.Get("/claves/:clave", h.Validar)
	return app
}

func TestClaveHandler_GenerarYValidar(t *testing.T) {
	app := buildClaveApp()

	cuerpo, err := json.Marshal(dto.ClaveRequest{
		TipoComprobante: "01",
		RUC:             "1792146739001",
		Ambiente:        "1",
		Establecimiento: "001",
		PuntoEmision:    "001",
		Secuencial:      "123",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/claves", bytes.NewReader(cuerpo))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var generada dto.ClaveResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&generada))
	require.Len(t, generada.ClaveAcceso, 49)
	assert.True(t, generada.Valida)

	// La clave recién generada debe descomponerse con sus campos originales.
	req = httptest.NewRequest(http.MethodGet, "/claves/"+generada.ClaveAcceso, nil)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var campos dto.ClaveResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&campos))
	assert.True(t, campos.Valida)
	assert.Equal(t, "1792146739001", campos.RUC)
	assert.Equal(t, "000000123", campos.Secuencial)
	assert.Equal(t, "01", campos.TipoComprobante)
}

func TestClaveHandler_Generar_RUCInvalido(t *testing.T) {
	app := buildClaveApp()

	cuerpo, _ := json.Marshal(dto.ClaveRequest{
		TipoComprobante: "01",
		RUC:             "123", // no tiene 13 dígitos
		Ambiente:        "1",
		Establecimiento: "001",
		PuntoEmision:    "001",
		Secuencial:      "1",
	})
	req := httptest.NewRequest(http.MethodPost, "/claves", bytes.NewReader(cuerpo))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestClaveHandler_Validar_DigitoIncorrecto(t *testing.T) {
	app := buildClaveApp()

	// 49 dígitos con verificador forzado a un valor incorrecto.
	clave := "1501202401179214673900110010010000000011234567810"
	req := httptest.NewRequest(http.MethodGet, "/claves/"+clave, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out dto.ClaveResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.False(t, out.Valida)
}

func TestClaveHandler_Validar_LargoIncorrecto(t *testing.T) {
	app := buildClaveApp()

	req := httptest.NewRequest(http.MethodGet, "/claves/123", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
