// Constantes para firma XAdES-BES (Ficha Técnica de Comprobantes Electrónicos SRI).

package firmador

// Namespaces y algoritmos XMLDSig / XAdES. El SRI exige RSA-SHA1 y SHA-1
// (no SHA-256) en el esquema offline; no es negociable con el validador remoto.
const (
	NamespaceDS    = "http://www.w3.org/2000/09/xmldsig#"
	NamespaceXAdES = "http://uri.etsi.org/01903/v1.3.2#"

	AlgC14N            = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	AlgRSASHA1         = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	AlgSHA1            = "http://www.w3.org/2000/09/xmldsig#sha1"
	TransformEnveloped = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"

	// TypeSignedProperties marca la Reference que apunta a las SignedProperties.
	TypeSignedProperties = "http://uri.etsi.org/01903#SignedProperties"
)

// ComprobanteElementID es el valor del atributo id del elemento raíz del
// comprobante; la Reference del documento apunta a "#comprobante".
const ComprobanteElementID = "comprobante"

// Prefijos de los namespaces de firma dentro del comprobante firmado.
const (
	PrefijoDS    = "ds"
	PrefijoXAdES = "etsi"
)
