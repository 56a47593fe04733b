package firmador_test

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinvillajim/SRIAPI/internal/infrastructure/sri/firmador"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test: certificado autofirmado, reloj fijo y fuente de dígitos fija
// para obtener firmas byte a byte reproducibles.
// ──────────────────────────────────────────────────────────────────────────────

const facturaSinFirmar = `<?xml version="1.0" encoding="UTF-8"?>` +
	`<factura id="comprobante" version="1.1.0">` +
	`<infoTributaria><ambiente>1</ambiente><ruc>1792146739001</ruc>` +
	`<claveAcceso>1501202401179214673900110010010000000011234567811</claveAcceso>` +
	`</infoTributaria>` +
	`<infoFactura><importeTotal>115.00</importeTotal></infoFactura>` +
	`</factura>`

type relojFijo struct{ t time.Time }

func (r relojFijo) Ahora() time.Time { return r.t }

type fuenteSecuencial struct{ contador int }

func (f *fuenteSecuencial) Digitos(n int) (string, error) {
	f.contador++
	return strings.Repeat(string(rune('0'+f.contador%10)), n), nil
}

// nuevoCertificadoPrueba genera un par llave/certificado autofirmado con los
// atributos de emisor que usa la política RDN.
func nuevoCertificadoPrueba(t *testing.T, notBefore, notAfter time.Time) *firmador.CertificadoDigital {
	t.Helper()
	llave, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	plantilla := x509.Certificate{
		SerialNumber: big.NewInt(987654321),
		Subject: pkix.Name{
			CommonName:         "PRUEBAS FIRMA SRI",
			OrganizationalUnit: []string{"CERTIFICACION"},
			Organization:       []string{"CA DE PRUEBAS"},
			Locality:           []string{"QUITO"},
			Country:            []string{"EC"},
		},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature,
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, &plantilla, &plantilla, &llave.PublicKey, llave)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return &firmador.CertificadoDigital{Certificado: cert, Llave: llave}
}

func nuevoServicioFijo() *firmador.ServicioFirma {
	reloj := relojFijo{time.Date(2024, 1, 15, 10, 30, 0, 0, time.FixedZone("ECT", -5*3600))}
	return firmador.NewServicioFirma(reloj, &fuenteSecuencial{}, nil)
}

func firmarPrueba(t *testing.T, cd *firmador.CertificadoDigital) []byte {
	t.Helper()
	firmado, err := nuevoServicioFijo().FirmarConCertificado([]byte(facturaSinFirmar), cd)
	require.NoError(t, err)
	return firmado
}

// ──────────────────────────────────────────────────────────────────────────────
// Estructura de la firma
// ──────────────────────────────────────────────────────────────────────────────

// TestFirmar_UnaFirmaComoUltimoHijo verifica que el resultado tiene exactamente
// una ds:Signature y que es el último hijo del elemento raíz.
func TestFirmar_UnaFirmaComoUltimoHijo(t *testing.T) {
	cd := nuevoCertificadoPrueba(t, time.Now().Add(-time.Hour), time.Now().Add(24*time.Hour))
	firmado := firmarPrueba(t, cd)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(firmado))

	hijos := doc.Root().ChildElements()
	require.NotEmpty(t, hijos)

	var firmas int
	for _, h := range hijos {
		if h.Tag == "Signature" {
			firmas++
		}
	}
	assert.Equal(t, 1, firmas, "debe haber exactamente una firma")
	assert.Equal(t, "Signature", hijos[len(hijos)-1].Tag, "la firma debe ser el último hijo")
}

// TestFirmar_TresReferencesEnOrdenFijo verifica el orden fijo (SignedProperties,
// KeyInfo, comprobante) y que la Reference del KeyInfo no lleva Transforms.
func TestFirmar_TresReferencesEnOrdenFijo(t *testing.T) {
	cd := nuevoCertificadoPrueba(t, time.Now().Add(-time.Hour), time.Now().Add(24*time.Hour))
	firmado := firmarPrueba(t, cd)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(firmado))

	signedInfo := buscarElemento(t, doc.Root(), "SignedInfo")
	var refs []*etree.Element
	for _, h := range signedInfo.ChildElements() {
		if h.Tag == "Reference" {
			refs = append(refs, h)
		}
	}
	require.Len(t, refs, 3, "SignedInfo debe tener exactamente tres References")

	assert.Equal(t, firmador.TypeSignedProperties, refs[0].SelectAttrValue("Type", ""),
		"la primera Reference apunta a SignedProperties")
	assert.True(t, strings.HasPrefix(refs[1].SelectAttrValue("URI", ""), "#Certificate"),
		"la segunda Reference apunta al KeyInfo")
	assert.Equal(t, "#comprobante", refs[2].SelectAttrValue("URI", ""),
		"la tercera Reference apunta al comprobante")

	for _, h := range refs[1].ChildElements() {
		assert.NotEqual(t, "Transforms", h.Tag,
			"la Reference del KeyInfo no debe llevar Transforms (ni siquiera vacío)")
	}
}

// TestFirmar_DigestDelDocumentoVerificable: el DigestValue de la tercera
// Reference debe coincidir con el SHA-1 de la forma canónica del comprobante
// firmado una vez removida la firma (propiedad de la firma envuelta).
func TestFirmar_DigestDelDocumentoVerificable(t *testing.T) {
	cd := nuevoCertificadoPrueba(t, time.Now().Add(-time.Hour), time.Now().Add(24*time.Hour))
	firmado := firmarPrueba(t, cd)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(firmado))

	canonico, err := firmador.CanonicalizarSinFirmas(doc)
	require.NoError(t, err)
	esperado := firmador.DigestSHA1(canonico)

	signedInfo := buscarElemento(t, doc.Root(), "SignedInfo")
	var refs []*etree.Element
	for _, h := range signedInfo.ChildElements() {
		if h.Tag == "Reference" {
			refs = append(refs, h)
		}
	}
	require.Len(t, refs, 3)
	dv := buscarElemento(t, refs[2], "DigestValue")
	assert.Equal(t, esperado, dv.Text(), "el digest del comprobante debe ser re-verificable")
}

// TestFirmar_SignatureValueVerificable verifica la firma RSA/SHA-1 sobre la
// forma canónica del SignedInfo del documento ya firmado.
func TestFirmar_SignatureValueVerificable(t *testing.T) {
	cd := nuevoCertificadoPrueba(t, time.Now().Add(-time.Hour), time.Now().Add(24*time.Hour))
	firmado := firmarPrueba(t, cd)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(firmado))

	signedInfo := buscarElemento(t, doc.Root(), "SignedInfo")
	canonico, err := firmador.Canonicalizar(signedInfo)
	require.NoError(t, err)

	svTexto := buscarElemento(t, doc.Root(), "SignatureValue").Text()
	svTexto = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, svTexto)
	firma, err := base64.StdEncoding.DecodeString(svTexto)
	require.NoError(t, err)

	h := sha1.Sum(canonico)
	assert.NoError(t, rsa.VerifyPKCS1v15(&cd.Llave.PublicKey, crypto.SHA1, h[:], firma),
		"SignatureValue debe verificar contra el SignedInfo canónico")
}

// TestFirmar_SalidaReproducible: con certificado, reloj y fuente numérica
// fijos, firmar dos veces produce bytes idénticos.
func TestFirmar_SalidaReproducible(t *testing.T) {
	cd := nuevoCertificadoPrueba(t, time.Now().Add(-time.Hour), time.Now().Add(24*time.Hour))

	f1, err := nuevoServicioFijo().FirmarConCertificado([]byte(facturaSinFirmar), cd)
	require.NoError(t, err)
	f2, err := nuevoServicioFijo().FirmarConCertificado([]byte(facturaSinFirmar), cd)
	require.NoError(t, err)

	assert.Equal(t, f1, f2, "la firma debe ser determinista bajo entradas fijas")
}

// TestFirmar_ReFirmarEliminaFirmasPrevias: firmar una entrada ya firmada
// produce de nuevo exactamente una firma.
func TestFirmar_ReFirmarEliminaFirmasPrevias(t *testing.T) {
	cd := nuevoCertificadoPrueba(t, time.Now().Add(-time.Hour), time.Now().Add(24*time.Hour))
	firmado := firmarPrueba(t, cd)

	reFirmado, err := nuevoServicioFijo().FirmarConCertificado(firmado, cd)
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(reFirmado))
	var firmas int
	for _, h := range doc.Root().ChildElements() {
		if h.Tag == "Signature" {
			firmas++
		}
	}
	assert.Equal(t, 1, firmas)
}

// TestFirmar_SigningTimeDelReloj verifica que el SigningTime sale del reloj
// inyectado, con zona horaria.
func TestFirmar_SigningTimeDelReloj(t *testing.T) {
	cd := nuevoCertificadoPrueba(t, time.Now().Add(-time.Hour), time.Now().Add(24*time.Hour))
	firmado := firmarPrueba(t, cd)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(firmado))
	st := buscarElemento(t, doc.Root(), "SigningTime")
	assert.Equal(t, "2024-01-15T10:30:00-05:00", st.Text())
}

// TestFirmar_MaterialIncompleto: sin llave o sin certificado no hay firma.
func TestFirmar_MaterialIncompleto(t *testing.T) {
	_, err := nuevoServicioFijo().FirmarConCertificado([]byte(facturaSinFirmar), nil)
	assert.Error(t, err)

	cd := nuevoCertificadoPrueba(t, time.Now().Add(-time.Hour), time.Now().Add(24*time.Hour))
	cd.Llave = nil
	_, err = nuevoServicioFijo().FirmarConCertificado([]byte(facturaSinFirmar), cd)
	assert.Error(t, err)
}

func TestFirmar_XMLInvalido(t *testing.T) {
	cd := nuevoCertificadoPrueba(t, time.Now().Add(-time.Hour), time.Now().Add(24*time.Hour))
	_, err := nuevoServicioFijo().FirmarConCertificado([]byte("esto no es XML <"), cd)
	assert.Error(t, err)
}

// buscarElemento hace una búsqueda en profundidad por tag local.
func buscarElemento(t *testing.T, el *etree.Element, tag string) *etree.Element {
	t.Helper()
	if el.Tag == tag {
		return el
	}
	for _, h := range el.ChildElements() {
		if found := buscarElementoOpcional(h, tag); found != nil {
			return found
		}
	}
	t.Fatalf("elemento %q no encontrado", tag)
	return nil
}

func buscarElementoOpcional(el *etree.Element, tag string) *etree.Element {
	if el.Tag == tag {
		return el
	}
	for _, h := range el.ChildElements() {
		if found := buscarElementoOpcional(h, tag); found != nil {
			return found
		}
	}
	return nil
}
