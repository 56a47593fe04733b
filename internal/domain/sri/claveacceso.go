// Package sri: generación y validación de la clave de acceso de comprobantes
// electrónicos según la Ficha Técnica del SRI (Ecuador).
// La clave tiene 49 dígitos: fecha(8) + tipo(2) + RUC(13) + ambiente(1) +
// establecimiento(3) + punto de emisión(3) + secuencial(9) + código numérico(8) +
// tipo de emisión(1) + dígito verificador módulo 11(1).

package sri

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"time"

	"github.com/kevinvillajim/SRIAPI/internal/domain"
	pkgsri "github.com/kevinvillajim/SRIAPI/pkg/sri"
)

// FuenteNumerica provee secuencias de dígitos decimales. La implementación por
// defecto usa crypto/rand; los tests inyectan una fuente determinista para poder
// afirmar salidas exactas.
type FuenteNumerica interface {
	// Digitos devuelve exactamente n dígitos ASCII '0'-'9'.
	Digitos(n int) (string, error)
}

// FuenteCriptografica genera dígitos con crypto/rand.
type FuenteCriptografica struct{}

// Digitos implementa FuenteNumerica.
func (FuenteCriptografica) Digitos(n int) (string, error) {
	out := make([]byte, n)
	for i := range out {
		v, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("sri: fuente aleatoria: %w", err)
		}
		out[i] = byte('0' + v.Int64())
	}
	return string(out), nil
}

// ClaveParams contiene los campos que componen la clave de acceso, en el orden
// exigido por la ficha técnica. El código numérico (nonce de 8 dígitos) lo
// aporta la FuenteNumerica del generador, no el caller.
type ClaveParams struct {
	FechaEmision    time.Time
	TipoComprobante string // 2 dígitos, catálogo de tipos (01, 04, 05, ...)
	RUC             string // 13 dígitos
	Ambiente        string // "1" pruebas | "2" producción
	Establecimiento string // 3 dígitos
	PuntoEmision    string // 3 dígitos
	Secuencial      string // hasta 9 dígitos; se rellena con ceros a la izquierda
	TipoEmision     string // "1" normal | "2" indisponibilidad
}

// ClaveCampos es el resultado de Parsear: los campos de una clave ya emitida.
// El código numérico es opaco (no se interpreta).
type ClaveCampos struct {
	FechaEmision      time.Time
	TipoComprobante   string
	RUC               string
	Ambiente          string
	Establecimiento   string
	PuntoEmision      string
	Secuencial        string
	CodigoNumerico    string
	TipoEmision       string
	DigitoVerificador byte
}

var (
	patronDosDigitos  = regexp.MustCompile(`^\d{2}$`)
	patronTresDigitos = regexp.MustCompile(`^\d{3}$`)
	patronRUC         = regexp.MustCompile(`^\d{13}$`)
	patronSecuencial  = regexp.MustCompile(`^\d{1,9}$`)
	patronClave       = regexp.MustCompile(`^\d{49}$`)
)

// GeneradorClave construye claves de acceso de 49 dígitos.
type GeneradorClave struct {
	fuente FuenteNumerica
}

// NewGeneradorClave crea el generador. Con fuente nil usa crypto/rand.
func NewGeneradorClave(fuente FuenteNumerica) *GeneradorClave {
	if fuente == nil {
		fuente = FuenteCriptografica{}
	}
	return &GeneradorClave{fuente: fuente}
}

// Generar valida todos los campos, arma los 48 dígitos, calcula el dígito
// verificador módulo 11 y devuelve la clave completa de 49 dígitos.
// Si hay campos inválidos retorna *domain.ValidationError con TODAS las
// violaciones, no solo la primera.
func (g *GeneradorClave) Generar(p ClaveParams) (string, error) {
	if err := validarParams(p); err != nil {
		return "", err
	}

	nonce, err := g.fuente.Digitos(8)
	if err != nil {
		return "", err
	}

	base := p.FechaEmision.Format("02012006") +
		p.TipoComprobante +
		p.RUC +
		p.Ambiente +
		p.Establecimiento +
		p.PuntoEmision +
		fmt.Sprintf("%09s", p.Secuencial) +
		nonce +
		p.TipoEmision

	dv, err := DigitoVerificador(base)
	if err != nil {
		return "", err
	}
	return base + string(dv), nil
}

// validarParams acumula todas las violaciones de patrón de los campos.
func validarParams(p ClaveParams) error {
	var violaciones []string
	if p.FechaEmision.IsZero() {
		violaciones = append(violaciones, "fechaEmision es obligatoria")
	}
	if !patronDosDigitos.MatchString(p.TipoComprobante) {
		violaciones = append(violaciones, fmt.Sprintf("tipoComprobante debe ser 2 dígitos, recibido %q", p.TipoComprobante))
	} else if !pkgsri.ValidDocumentTypeCodes[p.TipoComprobante] {
		violaciones = append(violaciones, fmt.Sprintf("tipoComprobante %q no está en el catálogo del SRI", p.TipoComprobante))
	}
	if !patronRUC.MatchString(p.RUC) {
		violaciones = append(violaciones, fmt.Sprintf("ruc debe ser 13 dígitos, recibido %q", p.RUC))
	}
	if p.Ambiente != pkgsri.AmbientePruebas && p.Ambiente != pkgsri.AmbienteProduccion {
		violaciones = append(violaciones, fmt.Sprintf("ambiente debe ser 1 o 2, recibido %q", p.Ambiente))
	}
	if !patronTresDigitos.MatchString(p.Establecimiento) {
		violaciones = append(violaciones, fmt.Sprintf("establecimiento debe ser 3 dígitos, recibido %q", p.Establecimiento))
	}
	if !patronTresDigitos.MatchString(p.PuntoEmision) {
		violaciones = append(violaciones, fmt.Sprintf("puntoEmision debe ser 3 dígitos, recibido %q", p.PuntoEmision))
	}
	if !patronSecuencial.MatchString(p.Secuencial) {
		violaciones = append(violaciones, fmt.Sprintf("secuencial debe ser de 1 a 9 dígitos, recibido %q", p.Secuencial))
	}
	if p.TipoEmision != pkgsri.EmisionNormal && p.TipoEmision != pkgsri.EmisionIndisponibilidad {
		violaciones = append(violaciones, fmt.Sprintf("tipoEmision debe ser 1 o 2, recibido %q", p.TipoEmision))
	}
	if len(violaciones) > 0 {
		return domain.NewValidationError(violaciones)
	}
	return nil
}

// DigitoVerificador calcula el dígito módulo 11 de los 48 dígitos base.
// Pesos 7,6,5,4,3,2 ciclando de izquierda a derecha; r = suma mod 11;
// dígito = 11−r, con 11→0 y 10→1.
func DigitoVerificador(base string) (byte, error) {
	if len(base) != 48 {
		return 0, fmt.Errorf("sri: la base de la clave debe tener 48 dígitos, tiene %d", len(base))
	}
	weights := [6]int{7, 6, 5, 4, 3, 2}
	var sum int
	for i := 0; i < len(base); i++ {
		c := base[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("sri: la base de la clave contiene un carácter no numérico en la posición %d", i)
		}
		sum += int(c-'0') * weights[i%6]
	}
	dv := 11 - sum%11
	switch dv {
	case 11:
		dv = 0
	case 10:
		dv = 1
	}
	return byte('0' + dv), nil
}

// Validar recomputa el dígito verificador sobre los primeros 48 dígitos y lo
// compara con el último. Retorna true solo si la clave tiene 49 dígitos y el
// verificador coincide.
func Validar(clave string) bool {
	if !patronClave.MatchString(clave) {
		return false
	}
	dv, err := DigitoVerificador(clave[:48])
	if err != nil {
		return false
	}
	return dv == clave[48]
}

// Parsear separa una clave de 49 dígitos en sus campos originales.
// Exige que el dígito verificador sea correcto.
func Parsear(clave string) (*ClaveCampos, error) {
	if !Validar(clave) {
		return nil, fmt.Errorf("%w: clave de acceso inválida", domain.ErrInvalidInput)
	}
	fecha, err := time.Parse("02012006", clave[0:8])
	if err != nil {
		return nil, fmt.Errorf("%w: fecha de emisión inválida en la clave", domain.ErrInvalidInput)
	}
	return &ClaveCampos{
		FechaEmision:      fecha,
		TipoComprobante:   clave[8:10],
		RUC:               clave[10:23],
		Ambiente:          clave[23:24],
		Establecimiento:   clave[24:27],
		PuntoEmision:      clave[27:30],
		Secuencial:        clave[30:39],
		CodigoNumerico:    clave[39:47],
		TipoEmision:       clave[47:48],
		DigitoVerificador: clave[48],
	}, nil
}
