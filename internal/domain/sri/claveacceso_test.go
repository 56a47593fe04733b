package sri_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinvillajim/SRIAPI/internal/domain"
	"github.com/kevinvillajim/SRIAPI/internal/domain/sri"
)

// ──────────────────────────────────────────────────────────────────────────────
// TestGenerarClave_VectorConocido valida el armado exacto de la clave de acceso
// para parámetros conocidos.
//
// Este test es el "canario en la mina" de la integración SRI: si alguien cambia
// el orden de concatenación, el formato de fecha o el relleno del secuencial,
// el prefijo deja de coincidir y el test falla de inmediato.
//
// Vector:
//
//	fecha 15/01/2024, tipo "01", RUC "1792146739001", ambiente 1,
//	establecimiento "001", punto "001", secuencial "000000001"
//	⇒ los primeros 24 dígitos son "150120240117921467390011"
// ──────────────────────────────────────────────────────────────────────────────

const (
	testPrefijoEsperado = "150120240117921467390011"
	testRUC             = "1792146739001"
	testNonce           = "12345678"
)

// fuenteFija es una FuenteNumerica determinista para los tests.
type fuenteFija struct{ digitos string }

func (f fuenteFija) Digitos(n int) (string, error) { return f.digitos[:n], nil }

func buildTestParams() sri.ClaveParams {
	return sri.ClaveParams{
		FechaEmision:    time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		TipoComprobante: "01",
		RUC:             testRUC,
		Ambiente:        "1",
		Establecimiento: "001",
		PuntoEmision:    "001",
		Secuencial:      "000000001",
		TipoEmision:     "1",
	}
}

func TestGenerarClave_VectorConocido(t *testing.T) {
	gen := sri.NewGeneradorClave(fuenteFija{testNonce})

	clave, err := gen.Generar(buildTestParams())
	require.NoError(t, err, "Generar no debe retornar error con parámetros válidos")

	assert.Len(t, clave, 49, "la clave de acceso debe tener exactamente 49 dígitos")
	assert.Equal(t, testPrefijoEsperado, clave[:24],
		"los primeros 24 dígitos deben coincidir con el vector de referencia")
	assert.True(t, sri.Validar(clave), "Validar(Generar(p)) debe ser siempre true")
}

// TestGenerarClave_Determinista verifica que con fuente fija la misma entrada
// produce siempre la misma clave.
func TestGenerarClave_Determinista(t *testing.T) {
	gen := sri.NewGeneradorClave(fuenteFija{testNonce})

	c1, err1 := gen.Generar(buildTestParams())
	c2, err2 := gen.Generar(buildTestParams())

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, c1, c2, "mismos parámetros y mismo nonce deben producir la misma clave")
}

// TestGenerarClave_FuenteCriptografica verifica la ley de ida y vuelta con el
// nonce aleatorio real: toda clave generada valida.
func TestGenerarClave_FuenteCriptografica(t *testing.T) {
	gen := sri.NewGeneradorClave(nil)

	for i := 0; i < 50; i++ {
		clave, err := gen.Generar(buildTestParams())
		require.NoError(t, err)
		require.Len(t, clave, 49)
		assert.True(t, sri.Validar(clave), "clave generada debe validar: %s", clave)
	}
}

// TestGenerarClave_SecuencialCorto verifica el relleno con ceros a la izquierda.
func TestGenerarClave_SecuencialCorto(t *testing.T) {
	gen := sri.NewGeneradorClave(fuenteFija{testNonce})
	p := buildTestParams()
	p.Secuencial = "7"

	clave, err := gen.Generar(p)
	require.NoError(t, err)
	assert.Equal(t, "000000007", clave[30:39], "el secuencial debe rellenarse a 9 dígitos")
}

// ── Detección de errores de un solo dígito (propiedad módulo 11) ──────────────

// TestValidar_MutacionDeUnDigito verifica que cambiar cualquier dígito de los
// primeros 48 invalida la clave (detección de errores simples del módulo 11).
func TestValidar_MutacionDeUnDigito(t *testing.T) {
	gen := sri.NewGeneradorClave(fuenteFija{testNonce})
	clave, err := gen.Generar(buildTestParams())
	require.NoError(t, err)
	require.True(t, sri.Validar(clave))

	for pos := 0; pos < 48; pos++ {
		original := clave[pos]
		mutado := byte('0' + (original-'0'+1)%10)
		corrupta := clave[:pos] + string(mutado) + clave[pos+1:]
		assert.False(t, sri.Validar(corrupta),
			"mutar el dígito en la posición %d debe invalidar la clave", pos)
	}
}

func TestValidar_EntradasMalformadas(t *testing.T) {
	assert.False(t, sri.Validar(""), "clave vacía no debe validar")
	assert.False(t, sri.Validar("123"), "clave corta no debe validar")
	assert.False(t, sri.Validar(testPrefijoEsperado), "clave de 24 dígitos no debe validar")
	clave48mas1letra := testPrefijoEsperado + testPrefijoEsperado + "X"
	assert.False(t, sri.Validar(clave48mas1letra), "clave con letra no debe validar")
}

// ── Parsear ──────────────────────────────────────────────────────────────────

// TestParsear_RoundTrip verifica que los campos recuperados de la clave coinciden
// con los parámetros originales (el nonce es opaco pero debe ser el inyectado).
func TestParsear_RoundTrip(t *testing.T) {
	gen := sri.NewGeneradorClave(fuenteFija{testNonce})
	p := buildTestParams()
	clave, err := gen.Generar(p)
	require.NoError(t, err)

	campos, err := sri.Parsear(clave)
	require.NoError(t, err)

	assert.Equal(t, p.FechaEmision, campos.FechaEmision)
	assert.Equal(t, p.TipoComprobante, campos.TipoComprobante)
	assert.Equal(t, p.RUC, campos.RUC)
	assert.Equal(t, p.Ambiente, campos.Ambiente)
	assert.Equal(t, p.Establecimiento, campos.Establecimiento)
	assert.Equal(t, p.PuntoEmision, campos.PuntoEmision)
	assert.Equal(t, "000000001", campos.Secuencial)
	assert.Equal(t, testNonce, campos.CodigoNumerico)
	assert.Equal(t, p.TipoEmision, campos.TipoEmision)
	assert.Equal(t, clave[48], campos.DigitoVerificador)
}

func TestParsear_ClaveInvalida(t *testing.T) {
	_, err := sri.Parsear("0000")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// ── Errores de validación: deben reportar TODAS las violaciones ───────────────

func TestGenerarClave_ReportaTodasLasViolaciones(t *testing.T) {
	gen := sri.NewGeneradorClave(fuenteFija{testNonce})

	p := sri.ClaveParams{
		// FechaEmision cero, tipo inválido, RUC corto, ambiente inválido,
		// establecimiento corto, punto vacío, secuencial largo, emisión inválida.
		TipoComprobante: "99",
		RUC:             "123",
		Ambiente:        "3",
		Establecimiento: "1",
		PuntoEmision:    "",
		Secuencial:      "1234567890",
		TipoEmision:     "0",
	}
	_, err := gen.Generar(p)
	require.Error(t, err)

	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr, "el error debe ser *domain.ValidationError")
	assert.Len(t, vErr.Violaciones, 8,
		"deben reportarse las 8 violaciones, no solo la primera: %v", vErr.Violaciones)
}

func TestGenerarClave_TipoComprobanteFueraDeCatalogo(t *testing.T) {
	gen := sri.NewGeneradorClave(fuenteFija{testNonce})
	p := buildTestParams()
	p.TipoComprobante = "02" // dos dígitos pero no existe en el catálogo

	_, err := gen.Generar(p)
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Len(t, vErr.Violaciones, 1)
}

// ── DigitoVerificador directo ─────────────────────────────────────────────────

func TestDigitoVerificador_BaseInvalida(t *testing.T) {
	_, err := sri.DigitoVerificador("123")
	assert.Error(t, err, "base de menos de 48 dígitos debe fallar")

	base := testPrefijoEsperado + testPrefijoEsperado // 48 chars
	require.Len(t, base, 48)
	_, err = sri.DigitoVerificador(base[:47] + "X")
	assert.Error(t, err, "base con caracteres no numéricos debe fallar")
}
