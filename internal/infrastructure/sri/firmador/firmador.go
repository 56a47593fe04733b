// Servicio de firma digital XAdES-BES para comprobantes electrónicos SRI.
// Añade <ds:Signature> como último hijo del elemento raíz del comprobante.

package firmador

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/beevik/etree"

	domsri "github.com/kevinvillajim/SRIAPI/internal/domain/sri"
	pkgsri "github.com/kevinvillajim/SRIAPI/pkg/sri"
)

// Reloj abstrae la hora de firma para que los tests puedan fijarla y obtener
// salidas byte a byte reproducibles.
type Reloj interface {
	Ahora() time.Time
}

// RelojSistema usa time.Now.
type RelojSistema struct{}

// Ahora implementa Reloj.
func (RelojSistema) Ahora() time.Time { return time.Now() }

// ServicioFirma implementa pkg/sri.Firmador. Orquesta la canonicalización, la
// cadena de digests y el ensamblaje de la firma envuelta. Es un transform puro:
// con reloj y fuente numérica fijos, firmar dos veces la misma entrada produce
// exactamente los mismos bytes.
type ServicioFirma struct {
	reloj    Reloj
	fuente   domsri.FuenteNumerica
	politica PoliticaNombreEmisor
}

// NewServicioFirma construye el servicio. Cualquier dependencia nil usa su
// implementación por defecto (reloj del sistema, crypto/rand, política RDN con
// los overrides conocidos).
func NewServicioFirma(reloj Reloj, fuente domsri.FuenteNumerica, politica PoliticaNombreEmisor) *ServicioFirma {
	if reloj == nil {
		reloj = RelojSistema{}
	}
	if fuente == nil {
		fuente = domsri.FuenteCriptografica{}
	}
	if politica == nil {
		politica = NuevaPoliticaRDN(nil)
	}
	return &ServicioFirma{reloj: reloj, fuente: fuente, politica: politica}
}

// Firmar implementa pkg/sri.Firmador: carga el PKCS#12, verifica su vigencia y
// firma el comprobante. Todo fallo de certificado ocurre antes de tocar la red.
func (s *ServicioFirma) Firmar(xmlBytes []byte, p12 []byte, clave string) ([]byte, error) {
	cd, err := CargarPKCS12(p12, clave)
	if err != nil {
		return nil, err
	}
	if err := cd.Vigente(s.reloj.Ahora()); err != nil {
		return nil, err
	}
	return s.FirmarConCertificado(xmlBytes, cd)
}

// contextoFirma agrupa el estado transitorio de una operación de firma:
// identificadores de elementos, digests y material del certificado. Se crea y
// destruye dentro de una sola llamada; nunca se comparte entre comprobantes.
type contextoFirma struct {
	idFirma       string
	idSignedInfo  string
	idSignedProps string
	idSigValue    string
	idCertificado string
	idObjeto      string
	idReferencia  string

	digestDocumento  string
	digestKeyInfo    string
	digestSignedProp string
}

// FirmarConCertificado firma el comprobante con material ya cargado y validado.
// Si el XML trae firmas previas se eliminan: la salida siempre tiene
// exactamente una ds:Signature como último hijo de la raíz.
func (s *ServicioFirma) FirmarConCertificado(xmlBytes []byte, cd *CertificadoDigital) ([]byte, error) {
	if cd == nil || cd.Certificado == nil || cd.Llave == nil {
		return nil, fmt.Errorf("firmador: material de certificado incompleto")
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("firmador: parsear comprobante: %w", err)
	}
	raiz := doc.Root()
	if raiz == nil {
		return nil, fmt.Errorf("firmador: comprobante sin elemento raíz")
	}
	removerFirmas(raiz)
	if raiz.SelectAttrValue("id", "") == "" {
		raiz.CreateAttr("id", ComprobanteElementID)
	}

	ctx, err := s.nuevoContexto()
	if err != nil {
		return nil, err
	}

	// 1) Digest del comprobante sin firma (la firma envuelta se excluye a sí misma).
	canonicoDoc, err := CanonicalizarSinFirmas(doc)
	if err != nil {
		return nil, err
	}
	ctx.digestDocumento = DigestSHA1(canonicoDoc)

	// 2) Esqueleto de la firma en su orden final. Los digests se calculan sobre
	//    los subárboles ya colgados para que hereden los namespaces ds y etsi.
	firma := raiz.CreateElement(PrefijoDS + ":Signature")
	firma.CreateAttr("xmlns:"+PrefijoDS, NamespaceDS)
	firma.CreateAttr("xmlns:"+PrefijoXAdES, NamespaceXAdES)
	firma.CreateAttr("Id", "Signature"+ctx.idFirma)

	signedInfo := firma.CreateElement(PrefijoDS + ":SignedInfo")
	sigValue := firma.CreateElement(PrefijoDS + ":SignatureValue")
	keyInfo := firma.CreateElement(PrefijoDS + ":KeyInfo")
	objeto := firma.CreateElement(PrefijoDS + ":Object")

	// 3) SignedProperties (XAdES) y su digest.
	signedProps, err := s.construirSignedProperties(objeto, ctx, cd)
	if err != nil {
		return nil, err
	}
	ctx.digestSignedProp, err = DigestElemento(signedProps)
	if err != nil {
		return nil, err
	}

	// 4) KeyInfo (certificado X.509 + módulo y exponente RSA) y su digest.
	s.construirKeyInfo(keyInfo, ctx, cd)
	ctx.digestKeyInfo, err = DigestElemento(keyInfo)
	if err != nil {
		return nil, err
	}

	// 5) SignedInfo con las tres References en orden fijo, su canonicalización
	//    y la firma RSA-SHA1 del resultado.
	s.construirSignedInfo(signedInfo, ctx)
	canonicoSI, err := Canonicalizar(signedInfo)
	if err != nil {
		return nil, err
	}
	valor, err := firmarRSASHA1(cd.Llave, canonicoSI)
	if err != nil {
		return nil, err
	}
	sigValue.CreateAttr("Id", "SignatureValue"+ctx.idSigValue)
	sigValue.SetText(envolverBase64(valor))

	doc.WriteSettings = etree.WriteSettings{CanonicalEndTags: true, CanonicalText: true, CanonicalAttrVal: true}
	return doc.WriteToBytes()
}

// nuevoContexto genera los identificadores numéricos de los elementos de la firma.
func (s *ServicioFirma) nuevoContexto() (*contextoFirma, error) {
	ctx := &contextoFirma{}
	for _, destino := range []*string{
		&ctx.idFirma, &ctx.idSignedInfo, &ctx.idSignedProps, &ctx.idSigValue,
		&ctx.idCertificado, &ctx.idObjeto, &ctx.idReferencia,
	} {
		d, err := s.fuente.Digitos(6)
		if err != nil {
			return nil, fmt.Errorf("firmador: generar identificadores: %w", err)
		}
		*destino = d
	}
	return ctx, nil
}

// construirSignedProperties arma etsi:QualifyingProperties/etsi:SignedProperties
// dentro del ds:Object y devuelve el elemento SignedProperties.
func (s *ServicioFirma) construirSignedProperties(objeto *etree.Element, ctx *contextoFirma, cd *CertificadoDigital) (*etree.Element, error) {
	objeto.CreateAttr("Id", fmt.Sprintf("Signature%s-Object%s", ctx.idFirma, ctx.idObjeto))

	qp := objeto.CreateElement(PrefijoXAdES + ":QualifyingProperties")
	qp.CreateAttr("Target", "#Signature"+ctx.idFirma)

	sp := qp.CreateElement(PrefijoXAdES + ":SignedProperties")
	sp.CreateAttr("Id", fmt.Sprintf("Signature%s-SignedProperties%s", ctx.idFirma, ctx.idSignedProps))

	ssp := sp.CreateElement(PrefijoXAdES + ":SignedSignatureProperties")
	ssp.CreateElement(PrefijoXAdES + ":SigningTime").
		SetText(s.reloj.Ahora().Format("2006-01-02T15:04:05-07:00"))

	sc := ssp.CreateElement(PrefijoXAdES + ":SigningCertificate")
	cert := sc.CreateElement(PrefijoXAdES + ":Cert")

	cdg := cert.CreateElement(PrefijoXAdES + ":CertDigest")
	cdg.CreateElement(PrefijoDS+":DigestMethod").CreateAttr("Algorithm", AlgSHA1)
	cdg.CreateElement(PrefijoDS + ":DigestValue").SetText(DigestSHA1(cd.DER()))

	is := cert.CreateElement(PrefijoXAdES + ":IssuerSerial")
	is.CreateElement(PrefijoDS + ":X509IssuerName").SetText(s.politica.NombreEmisor(cd.Certificado))
	is.CreateElement(PrefijoDS + ":X509SerialNumber").SetText(cd.NumeroSerie())

	sdop := sp.CreateElement(PrefijoXAdES + ":SignedDataObjectProperties")
	dof := sdop.CreateElement(PrefijoXAdES + ":DataObjectFormat")
	dof.CreateAttr("ObjectReference", "#Reference-ID-"+ctx.idReferencia)
	dof.CreateElement(PrefijoXAdES + ":Description").SetText("contenido comprobante")
	dof.CreateElement(PrefijoXAdES + ":MimeType").SetText("text/xml")

	return sp, nil
}

// construirKeyInfo arma ds:KeyInfo: certificado X.509 en DER/Base64 envuelto y
// la llave pública RSA como Modulus y Exponent explícitos (codificación
// big-endian mínima).
func (s *ServicioFirma) construirKeyInfo(keyInfo *etree.Element, ctx *contextoFirma, cd *CertificadoDigital) {
	keyInfo.CreateAttr("Id", "Certificate"+ctx.idCertificado)

	x509Data := keyInfo.CreateElement(PrefijoDS + ":X509Data")
	x509Data.CreateElement(PrefijoDS + ":X509Certificate").SetText(cd.CertificadoBase64())

	kv := keyInfo.CreateElement(PrefijoDS + ":KeyValue")
	rkv := kv.CreateElement(PrefijoDS + ":RSAKeyValue")
	rkv.CreateElement(PrefijoDS + ":Modulus").SetText(cd.ModuloBase64())
	rkv.CreateElement(PrefijoDS + ":Exponent").SetText(cd.ExponenteBase64())
}

// construirSignedInfo arma ds:SignedInfo con exactamente tres References en
// orden fijo: SignedProperties, KeyInfo y comprobante. La Reference del KeyInfo
// NO lleva elemento Transforms: un envoltorio vacío es inválido contra el
// esquema y el SRI lo rechaza.
func (s *ServicioFirma) construirSignedInfo(signedInfo *etree.Element, ctx *contextoFirma) {
	signedInfo.CreateAttr("Id", "Signature-SignedInfo"+ctx.idSignedInfo)

	signedInfo.CreateElement(PrefijoDS+":CanonicalizationMethod").CreateAttr("Algorithm", AlgC14N)
	signedInfo.CreateElement(PrefijoDS+":SignatureMethod").CreateAttr("Algorithm", AlgRSASHA1)

	// Reference 1: SignedProperties (transform = método de canonicalización).
	refSP := signedInfo.CreateElement(PrefijoDS + ":Reference")
	refSP.CreateAttr("Id", "SignedPropertiesID"+ctx.idSignedProps)
	refSP.CreateAttr("Type", TypeSignedProperties)
	refSP.CreateAttr("URI", fmt.Sprintf("#Signature%s-SignedProperties%s", ctx.idFirma, ctx.idSignedProps))
	trSP := refSP.CreateElement(PrefijoDS + ":Transforms")
	trSP.CreateElement(PrefijoDS+":Transform").CreateAttr("Algorithm", AlgC14N)
	refSP.CreateElement(PrefijoDS+":DigestMethod").CreateAttr("Algorithm", AlgSHA1)
	refSP.CreateElement(PrefijoDS + ":DigestValue").SetText(ctx.digestSignedProp)

	// Reference 2: KeyInfo, sin Transforms.
	refKI := signedInfo.CreateElement(PrefijoDS + ":Reference")
	refKI.CreateAttr("URI", "#Certificate"+ctx.idCertificado)
	refKI.CreateElement(PrefijoDS+":DigestMethod").CreateAttr("Algorithm", AlgSHA1)
	refKI.CreateElement(PrefijoDS + ":DigestValue").SetText(ctx.digestKeyInfo)

	// Reference 3: comprobante completo con transform de firma envuelta.
	refDoc := signedInfo.CreateElement(PrefijoDS + ":Reference")
	refDoc.CreateAttr("Id", "Reference-ID-"+ctx.idReferencia)
	refDoc.CreateAttr("URI", "#"+ComprobanteElementID)
	trDoc := refDoc.CreateElement(PrefijoDS + ":Transforms")
	trDoc.CreateElement(PrefijoDS+":Transform").CreateAttr("Algorithm", TransformEnveloped)
	refDoc.CreateElement(PrefijoDS+":DigestMethod").CreateAttr("Algorithm", AlgSHA1)
	refDoc.CreateElement(PrefijoDS + ":DigestValue").SetText(ctx.digestDocumento)
}

// firmarRSASHA1 firma los bytes canónicos con RSA/SHA-1 (PKCS#1 v1.5) y
// devuelve la firma en Base64.
func firmarRSASHA1(llave *rsa.PrivateKey, canonico []byte) (string, error) {
	h := crypto.SHA1.New()
	h.Write(canonico)
	firma, err := rsa.SignPKCS1v15(rand.Reader, llave, crypto.SHA1, h.Sum(nil))
	if err != nil {
		return "", fmt.Errorf("firmador: firmar SignedInfo: %w", err)
	}
	return base64.StdEncoding.EncodeToString(firma), nil
}

var _ pkgsri.Firmador = (*ServicioFirma)(nil)
