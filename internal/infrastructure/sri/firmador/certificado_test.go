package firmador_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinvillajim/SRIAPI/internal/domain"
	"github.com/kevinvillajim/SRIAPI/internal/infrastructure/sri/firmador"
)

// ── CargarPKCS12: clasificación de fallos ─────────────────────────────────────

func TestCargarPKCS12_ContenedorVacio(t *testing.T) {
	_, err := firmador.CargarPKCS12(nil, "clave")
	assert.ErrorIs(t, err, domain.ErrCertificadoCorrupto)
}

func TestCargarPKCS12_ContenedorCorrupto(t *testing.T) {
	_, err := firmador.CargarPKCS12([]byte("esto no es un PKCS#12"), "clave")
	assert.ErrorIs(t, err, domain.ErrCertificadoCorrupto,
		"basura de entrada debe clasificarse como corrupto, no como contraseña incorrecta")
}

// ── Vigencia ──────────────────────────────────────────────────────────────────

func TestVigente_DentroDeLaVentana(t *testing.T) {
	cd := nuevoCertificadoPrueba(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	assert.NoError(t, cd.Vigente(time.Now()))
}

func TestVigente_AunNoVigente(t *testing.T) {
	cd := nuevoCertificadoPrueba(t, time.Now().Add(time.Hour), time.Now().Add(48*time.Hour))
	err := cd.Vigente(time.Now())
	assert.ErrorIs(t, err, domain.ErrCertificadoNoVigente)
}

func TestVigente_Expirado(t *testing.T) {
	cd := nuevoCertificadoPrueba(t, time.Now().Add(-48*time.Hour), time.Now().Add(-time.Hour))
	err := cd.Vigente(time.Now())
	assert.ErrorIs(t, err, domain.ErrCertificadoExpirado)
}

// TestFirmar_CertificadoExpiradoNoFirma: la validación de vigencia ocurre en
// Firmar antes de cualquier otra cosa; FirmarConCertificado asume material ya
// validado por el caller.
func TestVigente_BloqueaAntesDeFirmar(t *testing.T) {
	cd := nuevoCertificadoPrueba(t, time.Now().Add(-48*time.Hour), time.Now().Add(-time.Hour))
	err := cd.Vigente(time.Now())
	require.Error(t, err)
}

// ── Material extraído ─────────────────────────────────────────────────────────

// TestModuloYExponente_CodificacionMinima: big-endian sin ceros a la izquierda.
func TestModuloYExponente_CodificacionMinima(t *testing.T) {
	cd := nuevoCertificadoPrueba(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))

	modulo := cd.Modulo()
	require.NotEmpty(t, modulo)
	assert.NotZero(t, modulo[0], "el módulo no debe llevar cero inicial")
	assert.Len(t, modulo, 256, "llave de 2048 bits ⇒ módulo de 256 bytes")

	exponente := cd.Exponente()
	require.NotEmpty(t, exponente)
	assert.NotZero(t, exponente[0], "el exponente no debe llevar cero inicial")
}

func TestCertificadoBase64_EnvueltoA76Columnas(t *testing.T) {
	cd := nuevoCertificadoPrueba(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	b64 := cd.CertificadoBase64()
	for _, linea := range strings.Split(b64, "\n") {
		assert.LessOrEqual(t, len(linea), 76, "ninguna línea debe superar 76 columnas")
	}
}

func TestNumeroSerie_Decimal(t *testing.T) {
	cd := nuevoCertificadoPrueba(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	assert.Equal(t, "987654321", cd.NumeroSerie())
}

func TestPEMyDER(t *testing.T) {
	cd := nuevoCertificadoPrueba(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	assert.NotEmpty(t, cd.DER())
	assert.True(t, strings.HasPrefix(string(cd.PEM()), "-----BEGIN CERTIFICATE-----"))
}

// ── Política de nombre del emisor ─────────────────────────────────────────────

// TestPoliticaRDN_OrdenFijo: CN, OU, O, L, C separados por coma.
func TestPoliticaRDN_OrdenFijo(t *testing.T) {
	cd := nuevoCertificadoPrueba(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	politica := firmador.NuevaPoliticaRDN(map[string]string{})

	nombre := politica.NombreEmisor(cd.Certificado)
	assert.Equal(t,
		"CN=PRUEBAS FIRMA SRI,OU=CERTIFICACION,O=CA DE PRUEBAS,L=QUITO,C=EC",
		nombre)
}

// TestPoliticaRDN_Override: una variante anual conocida se resuelve por tabla,
// no por formato.
func TestPoliticaRDN_Override(t *testing.T) {
	cd := nuevoCertificadoPrueba(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	politica := firmador.NuevaPoliticaRDN(map[string]string{
		"PRUEBAS FIRMA SRI": "CN=LITERAL EXACTO, C=EC",
	})
	assert.Equal(t, "CN=LITERAL EXACTO, C=EC", politica.NombreEmisor(cd.Certificado))
}
