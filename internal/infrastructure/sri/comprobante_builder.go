package sri

import (
	"fmt"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/kevinvillajim/SRIAPI/internal/domain"
	pkgsri "github.com/kevinvillajim/SRIAPI/pkg/sri"
)

// ── Contexto de construcción ───────────────────────────────────────────────────

// Emisor son los datos tributarios del emisor del comprobante.
type Emisor struct {
	RUC                   string
	RazonSocial           string
	NombreComercial       string
	DireccionMatriz       string
	DireccionEstab        string
	ObligadoContabilidad  bool
	ContribuyenteEspecial string // número de resolución; vacío si no aplica
}

// Comprador identifica al receptor del comprobante.
type Comprador struct {
	TipoIdentificacion string // código de la tabla de identificaciones
	Identificacion     string
	RazonSocial        string
	Direccion          string
	Email              string
}

// DetalleFactura es una línea de la factura.
type DetalleFactura struct {
	CodigoPrincipal string
	Descripcion     string
	Cantidad        decimal.Decimal
	PrecioUnitario  decimal.Decimal
	Descuento       decimal.Decimal
	CodigoIVA       string // código porcentaje de la tabla de IVA
	TarifaIVA       decimal.Decimal
}

// PrecioTotalSinImpuesto calcula cantidad por precio menos descuento.
func (d *DetalleFactura) PrecioTotalSinImpuesto() decimal.Decimal {
	return d.Cantidad.Mul(d.PrecioUnitario).Sub(d.Descuento).Round(2)
}

// ValorIVA calcula el IVA de la línea sobre la base imponible.
func (d *DetalleFactura) ValorIVA() decimal.Decimal {
	return d.PrecioTotalSinImpuesto().Mul(d.TarifaIVA).Div(decimal.NewFromInt(100)).Round(2)
}

// CampoAdicional es una entrada de infoAdicional.
type CampoAdicional struct {
	Nombre string
	Valor  string
}

// ComprobanteBuildContext reúne todo lo necesario para armar la factura.
// La clave de acceso ya generada se estampa en infoTributaria; el documento
// resultante sale sin firma, con el id que el firmador referencia.
type ComprobanteBuildContext struct {
	ClaveAcceso     string
	Ambiente        string
	TipoEmision     string
	Secuencial      string // 9 dígitos, ya normalizado
	Establecimiento string
	PuntoEmision    string
	FechaEmision    time.Time
	Emisor          *Emisor
	Comprador       *Comprador
	Detalles        []DetalleFactura
	Propina         decimal.Decimal
	InfoAdicional   []CampoAdicional
}

// ── Constructor ────────────────────────────────────────────────────────────────

// ComprobanteBuilder arma el XML de factura versión 1.1.0 del SRI.
type ComprobanteBuilder struct{}

// NewComprobanteBuilder crea el servicio.
func NewComprobanteBuilder() *ComprobanteBuilder {
	return &ComprobanteBuilder{}
}

// Build genera el documento factura sin firmar. El elemento raíz lleva
// id="comprobante", sobre el que el firmador declara su Reference.
func (b *ComprobanteBuilder) Build(ctx *ComprobanteBuildContext) ([]byte, error) {
	if err := b.validar(ctx); err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	factura := doc.CreateElement("factura")
	factura.CreateAttr("id", "comprobante")
	factura.CreateAttr("version", "1.1.0")

	b.escribirInfoTributaria(factura, ctx)
	b.escribirInfoFactura(factura, ctx)
	b.escribirDetalles(factura, ctx)
	b.escribirInfoAdicional(factura, ctx)

	doc.WriteSettings = etree.WriteSettings{
		CanonicalEndTags: true,
		CanonicalText:    true,
		CanonicalAttrVal: true,
	}
	return doc.WriteToBytes()
}

func (b *ComprobanteBuilder) validar(ctx *ComprobanteBuildContext) error {
	if ctx == nil || ctx.Emisor == nil || ctx.Comprador == nil {
		return fmt.Errorf("faltan emisor o comprador en el contexto: %w", domain.ErrInvalidInput)
	}

	var violaciones []string
	if len(ctx.ClaveAcceso) != 49 {
		violaciones = append(violaciones, fmt.Sprintf("clave de acceso de %d caracteres, se requieren 49", len(ctx.ClaveAcceso)))
	}
	if err := pkgsri.ValidateRUC(ctx.Emisor.RUC); err != nil {
		violaciones = append(violaciones, "RUC del emisor inválido: "+err.Error())
	}
	if len(ctx.Detalles) == 0 {
		violaciones = append(violaciones, "la factura requiere al menos un detalle")
	}
	for i, det := range ctx.Detalles {
		if det.Cantidad.Sign() <= 0 {
			violaciones = append(violaciones, fmt.Sprintf("detalle %d: cantidad debe ser positiva", i+1))
		}
		if det.PrecioUnitario.Sign() < 0 {
			violaciones = append(violaciones, fmt.Sprintf("detalle %d: precio unitario negativo", i+1))
		}
	}
	if len(violaciones) > 0 {
		return domain.NewValidationError(violaciones)
	}
	return nil
}

// ── Secciones ──────────────────────────────────────────────────────────────────

func (b *ComprobanteBuilder) escribirInfoTributaria(factura *etree.Element, ctx *ComprobanteBuildContext) {
	it := factura.CreateElement("infoTributaria")
	escribirTexto(it, "ambiente", ctx.Ambiente)
	escribirTexto(it, "tipoEmision", ctx.TipoEmision)
	escribirTexto(it, "razonSocial", ctx.Emisor.RazonSocial)
	if ctx.Emisor.NombreComercial != "" {
		escribirTexto(it, "nombreComercial", ctx.Emisor.NombreComercial)
	}
	escribirTexto(it, "ruc", ctx.Emisor.RUC)
	escribirTexto(it, "claveAcceso", ctx.ClaveAcceso)
	escribirTexto(it, "codDoc", pkgsri.DocFactura)
	escribirTexto(it, "estab", ctx.Establecimiento)
	escribirTexto(it, "ptoEmi", ctx.PuntoEmision)
	escribirTexto(it, "secuencial", ctx.Secuencial)
	escribirTexto(it, "dirMatriz", ctx.Emisor.DireccionMatriz)
}

func (b *ComprobanteBuilder) escribirInfoFactura(factura *etree.Element, ctx *ComprobanteBuildContext) {
	totalSinImpuestos := decimal.Zero
	totalDescuento := decimal.Zero
	totalIVA := decimal.Zero
	for _, det := range ctx.Detalles {
		totalSinImpuestos = totalSinImpuestos.Add(det.PrecioTotalSinImpuesto())
		totalDescuento = totalDescuento.Add(det.Descuento)
		totalIVA = totalIVA.Add(det.ValorIVA())
	}
	importeTotal := totalSinImpuestos.Add(totalIVA).Add(ctx.Propina)

	inf := factura.CreateElement("infoFactura")
	escribirTexto(inf, "fechaEmision", ctx.FechaEmision.Format("02/01/2006"))
	if ctx.Emisor.DireccionEstab != "" {
		escribirTexto(inf, "dirEstablecimiento", ctx.Emisor.DireccionEstab)
	}
	if ctx.Emisor.ContribuyenteEspecial != "" {
		escribirTexto(inf, "contribuyenteEspecial", ctx.Emisor.ContribuyenteEspecial)
	}
	obligado := "NO"
	if ctx.Emisor.ObligadoContabilidad {
		obligado = "SI"
	}
	escribirTexto(inf, "obligadoContabilidad", obligado)
	escribirTexto(inf, "tipoIdentificacionComprador", ctx.Comprador.TipoIdentificacion)
	escribirTexto(inf, "razonSocialComprador", ctx.Comprador.RazonSocial)
	escribirTexto(inf, "identificacionComprador", ctx.Comprador.Identificacion)
	escribirTexto(inf, "totalSinImpuestos", montoFijo(totalSinImpuestos))
	escribirTexto(inf, "totalDescuento", montoFijo(totalDescuento))

	// Totales de impuestos agrupados por código porcentaje.
	tci := inf.CreateElement("totalConImpuestos")
	for _, grupo := range b.agruparImpuestos(ctx.Detalles) {
		ti := tci.CreateElement("totalImpuesto")
		escribirTexto(ti, "codigo", pkgsri.ImpuestoIVA)
		escribirTexto(ti, "codigoPorcentaje", grupo.codigo)
		escribirTexto(ti, "baseImponible", montoFijo(grupo.base))
		escribirTexto(ti, "valor", montoFijo(grupo.valor))
	}

	escribirTexto(inf, "propina", montoFijo(ctx.Propina))
	escribirTexto(inf, "importeTotal", montoFijo(importeTotal))
	escribirTexto(inf, "moneda", "DOLAR")
}

type grupoImpuesto struct {
	codigo string
	base   decimal.Decimal
	valor  decimal.Decimal
}

// agruparImpuestos consolida las líneas por código porcentaje de IVA
// preservando el orden de primera aparición.
func (b *ComprobanteBuilder) agruparImpuestos(detalles []DetalleFactura) []grupoImpuesto {
	var orden []string
	grupos := map[string]*grupoImpuesto{}
	for _, det := range detalles {
		g, ok := grupos[det.CodigoIVA]
		if !ok {
			g = &grupoImpuesto{codigo: det.CodigoIVA}
			grupos[det.CodigoIVA] = g
			orden = append(orden, det.CodigoIVA)
		}
		g.base = g.base.Add(det.PrecioTotalSinImpuesto())
		g.valor = g.valor.Add(det.ValorIVA())
	}
	out := make([]grupoImpuesto, 0, len(orden))
	for _, codigo := range orden {
		out = append(out, *grupos[codigo])
	}
	return out
}

func (b *ComprobanteBuilder) escribirDetalles(factura *etree.Element, ctx *ComprobanteBuildContext) {
	detalles := factura.CreateElement("detalles")
	for _, det := range ctx.Detalles {
		d := detalles.CreateElement("detalle")
		escribirTexto(d, "codigoPrincipal", det.CodigoPrincipal)
		escribirTexto(d, "descripcion", det.Descripcion)
		escribirTexto(d, "cantidad", det.Cantidad.StringFixed(6))
		escribirTexto(d, "precioUnitario", det.PrecioUnitario.StringFixed(6))
		escribirTexto(d, "descuento", montoFijo(det.Descuento))
		escribirTexto(d, "precioTotalSinImpuesto", montoFijo(det.PrecioTotalSinImpuesto()))

		imp := d.CreateElement("impuestos").CreateElement("impuesto")
		escribirTexto(imp, "codigo", pkgsri.ImpuestoIVA)
		escribirTexto(imp, "codigoPorcentaje", det.CodigoIVA)
		escribirTexto(imp, "tarifa", det.TarifaIVA.StringFixed(2))
		escribirTexto(imp, "baseImponible", montoFijo(det.PrecioTotalSinImpuesto()))
		escribirTexto(imp, "valor", montoFijo(det.ValorIVA()))
	}
}

func (b *ComprobanteBuilder) escribirInfoAdicional(factura *etree.Element, ctx *ComprobanteBuildContext) {
	campos := ctx.InfoAdicional
	if ctx.Comprador.Email != "" {
		campos = append(campos, CampoAdicional{Nombre: "email", Valor: ctx.Comprador.Email})
	}
	if ctx.Comprador.Direccion != "" {
		campos = append(campos, CampoAdicional{Nombre: "direccion", Valor: ctx.Comprador.Direccion})
	}
	if len(campos) == 0 {
		return
	}
	ia := factura.CreateElement("infoAdicional")
	for _, campo := range campos {
		ca := ia.CreateElement("campoAdicional")
		ca.CreateAttr("nombre", campo.Nombre)
		ca.SetText(campo.Valor)
	}
}

// ExtraerClaveAcceso localiza la claveAcceso estampada en infoTributaria de
// un comprobante ya construido (firmado o no).
func ExtraerClaveAcceso(documento []byte) (string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(documento); err != nil {
		return "", fmt.Errorf("%w: XML ilegible: %v", domain.ErrInvalidInput, err)
	}
	elem := doc.FindElement("//infoTributaria/claveAcceso")
	if elem == nil {
		return "", fmt.Errorf("%w: el comprobante no tiene claveAcceso", domain.ErrInvalidInput)
	}
	clave := elem.Text()
	if len(clave) != 49 {
		return "", fmt.Errorf("%w: claveAcceso de %d dígitos", domain.ErrInvalidInput, len(clave))
	}
	return clave, nil
}

func escribirTexto(padre *etree.Element, nombre, valor string) {
	padre.CreateElement(nombre).SetText(valor)
}

func montoFijo(d decimal.Decimal) string {
	return d.StringFixed(2)
}
