package comprobantes

import (
	domainsri "github.com/kevinvillajim/SRIAPI/internal/domain/sri"
	infrasri "github.com/kevinvillajim/SRIAPI/internal/infrastructure/sri"
)

// ConstructorComprobante arma el XML del comprobante a partir del contexto
// de emisión. Lo implementa el builder de infraestructura; en tests se
// inyecta un doble.
type ConstructorComprobante interface {
	Build(ctx *infrasri.ComprobanteBuildContext) ([]byte, error)
}

// GeneradorClaves produce claves de acceso de 49 dígitos.
type GeneradorClaves interface {
	Generar(p domainsri.ClaveParams) (string, error)
}
