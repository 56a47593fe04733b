// Carga del contenedor PKCS#12 (.p12/.pfx) y extracción del material de firma.

package firmador

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"golang.org/x/crypto/pkcs12"

	"github.com/kevinvillajim/SRIAPI/internal/domain"
)

// CertificadoDigital contiene el material extraído de un PKCS#12: certificado
// hoja, llave privada RSA y cadena opcional. Vive lo que dura una operación de
// firma; este paquete no lo persiste.
type CertificadoDigital struct {
	Certificado *x509.Certificate
	Llave       *rsa.PrivateKey
	Cadena      []*x509.Certificate
}

// CargarPKCS12 decodifica el contenedor con la contraseña dada.
// Contraseña incorrecta → domain.ErrCertificadoContrasena; cualquier otro fallo
// de parseo → domain.ErrCertificadoCorrupto. Los contenedores con cadena de
// certificación (más de dos safe bags) se cargan por la ruta ToPEM.
func CargarPKCS12(data []byte, clave string) (*CertificadoDigital, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: contenedor vacío", domain.ErrCertificadoCorrupto)
	}

	priv, cert, err := pkcs12.Decode(data, clave)
	if err == nil {
		llave, ok := priv.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: la llave privada no es RSA", domain.ErrCertificadoCorrupto)
		}
		return &CertificadoDigital{Certificado: cert, Llave: llave}, nil
	}
	if errors.Is(err, pkcs12.ErrIncorrectPassword) {
		return nil, domain.ErrCertificadoContrasena
	}

	// Decode exige exactamente dos safe bags; los .p12 de las certificadoras
	// ecuatorianas suelen incluir la cadena completa. ToPEM los acepta.
	blocks, errPEM := pkcs12.ToPEM(data, clave)
	if errPEM != nil {
		if errors.Is(errPEM, pkcs12.ErrIncorrectPassword) {
			return nil, domain.ErrCertificadoContrasena
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrCertificadoCorrupto, err)
	}
	return armarDesdePEM(blocks)
}

// armarDesdePEM reconstruye llave, certificado hoja y cadena desde los bloques
// PEM de un contenedor con cadena. La hoja es el certificado cuya llave pública
// corresponde a la llave privada.
func armarDesdePEM(blocks []*pem.Block) (*CertificadoDigital, error) {
	var llave *rsa.PrivateKey
	var certs []*x509.Certificate
	for _, b := range blocks {
		switch b.Type {
		case "PRIVATE KEY":
			if llave != nil {
				continue
			}
			if k, err := x509.ParsePKCS1PrivateKey(b.Bytes); err == nil {
				llave = k
				continue
			}
			ki, err := x509.ParsePKCS8PrivateKey(b.Bytes)
			if err != nil {
				return nil, fmt.Errorf("%w: llave privada ilegible: %v", domain.ErrCertificadoCorrupto, err)
			}
			k, ok := ki.(*rsa.PrivateKey)
			if !ok {
				return nil, fmt.Errorf("%w: la llave privada no es RSA", domain.ErrCertificadoCorrupto)
			}
			llave = k
		case "CERTIFICATE":
			c, err := x509.ParseCertificate(b.Bytes)
			if err != nil {
				return nil, fmt.Errorf("%w: certificado ilegible: %v", domain.ErrCertificadoCorrupto, err)
			}
			certs = append(certs, c)
		}
	}
	if llave == nil || len(certs) == 0 {
		return nil, fmt.Errorf("%w: el contenedor no trae llave y certificado", domain.ErrCertificadoCorrupto)
	}

	cd := &CertificadoDigital{Llave: llave}
	for _, c := range certs {
		pub, ok := c.PublicKey.(*rsa.PublicKey)
		if ok && cd.Certificado == nil && pub.N.Cmp(llave.N) == 0 {
			cd.Certificado = c
			continue
		}
		cd.Cadena = append(cd.Cadena, c)
	}
	if cd.Certificado == nil {
		return nil, fmt.Errorf("%w: ningún certificado corresponde a la llave privada", domain.ErrCertificadoCorrupto)
	}
	return cd, nil
}

// Vigente verifica la ventana de validez del certificado contra ahora.
func (c *CertificadoDigital) Vigente(ahora time.Time) error {
	if ahora.Before(c.Certificado.NotBefore) {
		return fmt.Errorf("%w: válido desde %s", domain.ErrCertificadoNoVigente,
			c.Certificado.NotBefore.Format(time.RFC3339))
	}
	if ahora.After(c.Certificado.NotAfter) {
		return fmt.Errorf("%w: venció el %s", domain.ErrCertificadoExpirado,
			c.Certificado.NotAfter.Format(time.RFC3339))
	}
	return nil
}

// DER devuelve el certificado hoja en DER.
func (c *CertificadoDigital) DER() []byte { return c.Certificado.Raw }

// PEM devuelve el certificado hoja en PEM.
func (c *CertificadoDigital) PEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: c.Certificado.Raw})
}

// CertificadoBase64 devuelve el DER en Base64 con saltos de línea cada 76
// columnas, el formato que el SRI espera dentro de ds:X509Certificate.
func (c *CertificadoDigital) CertificadoBase64() string {
	return envolverBase64(base64.StdEncoding.EncodeToString(c.Certificado.Raw))
}

// Modulo devuelve el módulo RSA en su codificación big-endian mínima
// (sin ceros a la izquierda, como exige ds:RSAKeyValue).
func (c *CertificadoDigital) Modulo() []byte { return c.Llave.PublicKey.N.Bytes() }

// ModuloBase64 devuelve el módulo en Base64 envuelto a 76 columnas.
func (c *CertificadoDigital) ModuloBase64() string {
	return envolverBase64(base64.StdEncoding.EncodeToString(c.Modulo()))
}

// Exponente devuelve el exponente público en su codificación big-endian mínima.
func (c *CertificadoDigital) Exponente() []byte {
	return big.NewInt(int64(c.Llave.PublicKey.E)).Bytes()
}

// ExponenteBase64 devuelve el exponente en Base64.
func (c *CertificadoDigital) ExponenteBase64() string {
	return base64.StdEncoding.EncodeToString(c.Exponente())
}

// NumeroSerie devuelve el serial del certificado en decimal, como va en
// ds:X509SerialNumber.
func (c *CertificadoDigital) NumeroSerie() string {
	return c.Certificado.SerialNumber.String()
}

// envolverBase64 inserta saltos de línea cada 76 caracteres.
func envolverBase64(s string) string {
	const cols = 76
	if len(s) <= cols {
		return s
	}
	var sb strings.Builder
	for len(s) > cols {
		sb.WriteString(s[:cols])
		sb.WriteByte('\n')
		s = s[cols:]
	}
	sb.WriteString(s)
	return sb.String()
}
