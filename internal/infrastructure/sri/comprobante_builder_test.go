package sri

import (
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinvillajim/SRIAPI/internal/domain"
	pkgsri "github.com/kevinvillajim/SRIAPI/pkg/sri"
)

func contextoFacturaPrueba() *ComprobanteBuildContext {
	return &ComprobanteBuildContext{
		ClaveAcceso:     claveAccesoPrueba,
		Ambiente:        pkgsri.AmbientePruebas,
		TipoEmision:     pkgsri.EmisionNormal,
		Secuencial:      "000000001",
		Establecimiento: "001",
		PuntoEmision:    "001",
		FechaEmision:    time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Emisor: &Emisor{
			RUC:                  "1792146739001",
			RazonSocial:          "BUSINESSCONNECT S.A.S.",
			NombreComercial:      "BusinessConnect",
			DireccionMatriz:      "Av. Amazonas N21-252 y Carrión",
			ObligadoContabilidad: true,
		},
		Comprador: &Comprador{
			TipoIdentificacion: pkgsri.IdentificacionCedula,
			Identificacion:     "1710034065",
			RazonSocial:        "CONSUMIDOR PRUEBA",
			Email:              "comprador@example.com",
		},
		Detalles: []DetalleFactura{
			{
				CodigoPrincipal: "PRD-001",
				Descripcion:     "Servicio de consultoría",
				Cantidad:        decimal.NewFromInt(2),
				PrecioUnitario:  decimal.NewFromInt(100),
				CodigoIVA:       pkgsri.TarifaIVA15,
				TarifaIVA:       decimal.NewFromInt(15),
			},
			{
				CodigoPrincipal: "PRD-002",
				Descripcion:     "Libro técnico",
				Cantidad:        decimal.NewFromInt(1),
				PrecioUnitario:  decimal.NewFromInt(50),
				CodigoIVA:       pkgsri.TarifaIVA0,
				TarifaIVA:       decimal.Zero,
			},
		},
	}
}

func parsearFactura(t *testing.T, xmlBytes []byte) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(xmlBytes))
	raiz := doc.Root()
	require.NotNil(t, raiz)
	return raiz
}

func textoDe(t *testing.T, el *etree.Element, ruta string) string {
	t.Helper()
	hijo := el.FindElement(ruta)
	require.NotNil(t, hijo, "no existe %s", ruta)
	return hijo.Text()
}

func TestBuildEstampaClaveYCabecera(t *testing.T) {
	xmlBytes, err := NewComprobanteBuilder().Build(contextoFacturaPrueba())
	require.NoError(t, err)

	raiz := parsearFactura(t, xmlBytes)
	assert.Equal(t, "factura", raiz.Tag)
	assert.Equal(t, "comprobante", raiz.SelectAttrValue("id", ""))
	assert.Equal(t, "1.1.0", raiz.SelectAttrValue("version", ""))

	assert.Equal(t, claveAccesoPrueba, textoDe(t, raiz, "infoTributaria/claveAcceso"))
	assert.Equal(t, pkgsri.DocFactura, textoDe(t, raiz, "infoTributaria/codDoc"))
	assert.Equal(t, "1792146739001", textoDe(t, raiz, "infoTributaria/ruc"))
	assert.Equal(t, "000000001", textoDe(t, raiz, "infoTributaria/secuencial"))
	assert.Equal(t, "15/01/2024", textoDe(t, raiz, "infoFactura/fechaEmision"))
	assert.Equal(t, "SI", textoDe(t, raiz, "infoFactura/obligadoContabilidad"))
}

func TestBuildCalculaTotales(t *testing.T) {
	xmlBytes, err := NewComprobanteBuilder().Build(contextoFacturaPrueba())
	require.NoError(t, err)

	raiz := parsearFactura(t, xmlBytes)

	// 2x100 al 15% + 1x50 al 0%: base 250.00, IVA 30.00, total 280.00.
	assert.Equal(t, "250.00", textoDe(t, raiz, "infoFactura/totalSinImpuestos"))
	assert.Equal(t, "0.00", textoDe(t, raiz, "infoFactura/totalDescuento"))
	assert.Equal(t, "280.00", textoDe(t, raiz, "infoFactura/importeTotal"))
	assert.Equal(t, "DOLAR", textoDe(t, raiz, "infoFactura/moneda"))

	grupos := raiz.FindElements("infoFactura/totalConImpuestos/totalImpuesto")
	require.Len(t, grupos, 2, "un grupo por código porcentaje")
	assert.Equal(t, pkgsri.TarifaIVA15, textoDe(t, grupos[0], "codigoPorcentaje"))
	assert.Equal(t, "200.00", textoDe(t, grupos[0], "baseImponible"))
	assert.Equal(t, "30.00", textoDe(t, grupos[0], "valor"))
	assert.Equal(t, pkgsri.TarifaIVA0, textoDe(t, grupos[1], "codigoPorcentaje"))
	assert.Equal(t, "50.00", textoDe(t, grupos[1], "baseImponible"))
	assert.Equal(t, "0.00", textoDe(t, grupos[1], "valor"))
}

func TestBuildEscribeDetalles(t *testing.T) {
	xmlBytes, err := NewComprobanteBuilder().Build(contextoFacturaPrueba())
	require.NoError(t, err)

	raiz := parsearFactura(t, xmlBytes)
	detalles := raiz.FindElements("detalles/detalle")
	require.Len(t, detalles, 2)

	primero := detalles[0]
	assert.Equal(t, "PRD-001", textoDe(t, primero, "codigoPrincipal"))
	assert.Equal(t, "2.000000", textoDe(t, primero, "cantidad"))
	assert.Equal(t, "100.000000", textoDe(t, primero, "precioUnitario"))
	assert.Equal(t, "200.00", textoDe(t, primero, "precioTotalSinImpuesto"))
	assert.Equal(t, "30.00", textoDe(t, primero, "impuestos/impuesto/valor"))
}

func TestBuildAgregaEmailComoInfoAdicional(t *testing.T) {
	xmlBytes, err := NewComprobanteBuilder().Build(contextoFacturaPrueba())
	require.NoError(t, err)

	raiz := parsearFactura(t, xmlBytes)
	campos := raiz.FindElements("infoAdicional/campoAdicional")
	require.NotEmpty(t, campos)
	assert.Equal(t, "email", campos[0].SelectAttrValue("nombre", ""))
	assert.Equal(t, "comprador@example.com", campos[0].Text())
}

func TestBuildDescuentoReduceBase(t *testing.T) {
	ctx := contextoFacturaPrueba()
	ctx.Detalles = ctx.Detalles[:1]
	ctx.Detalles[0].Descuento = decimal.NewFromInt(20)

	xmlBytes, err := NewComprobanteBuilder().Build(ctx)
	require.NoError(t, err)

	raiz := parsearFactura(t, xmlBytes)
	// 2x100 - 20 = 180.00 de base; IVA 15% = 27.00.
	assert.Equal(t, "180.00", textoDe(t, raiz, "infoFactura/totalSinImpuestos"))
	assert.Equal(t, "20.00", textoDe(t, raiz, "infoFactura/totalDescuento"))
	assert.Equal(t, "207.00", textoDe(t, raiz, "infoFactura/importeTotal"))
}

func TestBuildAcumulaViolaciones(t *testing.T) {
	ctx := contextoFacturaPrueba()
	ctx.ClaveAcceso = "123"
	ctx.Emisor.RUC = "999"
	ctx.Detalles = nil

	_, err := NewComprobanteBuilder().Build(ctx)
	require.Error(t, err)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Violaciones, 3, "reporta todas las violaciones de una vez")
}

func TestBuildContextoIncompleto(t *testing.T) {
	_, err := NewComprobanteBuilder().Build(nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	ctx := contextoFacturaPrueba()
	ctx.Comprador = nil
	_, err = NewComprobanteBuilder().Build(ctx)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestBuildCantidadNoPositiva(t *testing.T) {
	ctx := contextoFacturaPrueba()
	ctx.Detalles[0].Cantidad = decimal.Zero

	_, err := NewComprobanteBuilder().Build(ctx)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestBuildSalidaFirmable(t *testing.T) {
	// El documento generado debe poder firmarse tal cual: el firmador
	// exige el atributo id sobre la raíz.
	xmlBytes, err := NewComprobanteBuilder().Build(contextoFacturaPrueba())
	require.NoError(t, err)
	assert.NoError(t, VerificarCanonico(xmlBytes))
}
