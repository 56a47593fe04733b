package firmador

import (
	"crypto/x509"
	"strings"
)

// PoliticaNombreEmisor decide el texto de ds:X509IssuerName. El validador del
// SRI compara este string literalmente contra el que él mismo reconstruye, y
// algunas variantes anuales de las certificadoras requieren un formato literal
// distinto al RDN estándar; por eso la normalización es una política
// intercambiable y no un caso especial en el ensamblador.
type PoliticaNombreEmisor interface {
	NombreEmisor(cert *x509.Certificate) string
}

// PoliticaRDN formatea el emisor en el orden fijo CN, OU, O, L, C separado por
// comas, con una tabla de overrides literales por CN del emisor.
type PoliticaRDN struct {
	overrides map[string]string
}

// OverridesConocidos contiene los nombres literales que ciertas variantes
// anuales de las certificadoras exigen al validador.
// TODO: retirar la entrada del BCE cuando el SRI documente el formato esperado.
var OverridesConocidos = map[string]string{
	// Los certificados del Banco Central emitidos bajo la raíz 2016 solo pasan
	// con espacio después de cada coma.
	"AC BANCO CENTRAL DEL ECUADOR": "CN=AC BANCO CENTRAL DEL ECUADOR, L=QUITO, OU=ENTIDAD DE CERTIFICACION DE INFORMACION-ECIBCE, O=BANCO CENTRAL DEL ECUADOR, C=EC",
}

// NuevaPoliticaRDN crea la política. Con overrides nil se usa OverridesConocidos.
func NuevaPoliticaRDN(overrides map[string]string) *PoliticaRDN {
	if overrides == nil {
		overrides = OverridesConocidos
	}
	return &PoliticaRDN{overrides: overrides}
}

// NombreEmisor implementa PoliticaNombreEmisor.
func (p *PoliticaRDN) NombreEmisor(cert *x509.Certificate) string {
	emisor := cert.Issuer
	if literal, ok := p.overrides[emisor.CommonName]; ok {
		return literal
	}

	var partes []string
	if emisor.CommonName != "" {
		partes = append(partes, "CN="+emisor.CommonName)
	}
	for _, ou := range emisor.OrganizationalUnit {
		partes = append(partes, "OU="+ou)
	}
	for _, o := range emisor.Organization {
		partes = append(partes, "O="+o)
	}
	for _, l := range emisor.Locality {
		partes = append(partes, "L="+l)
	}
	for _, c := range emisor.Country {
		partes = append(partes, "C="+c)
	}
	return strings.Join(partes, ",")
}

var _ PoliticaNombreEmisor = (*PoliticaRDN)(nil)
