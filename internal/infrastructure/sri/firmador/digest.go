package firmador

import (
	"crypto/sha1"
	"encoding/base64"

	"github.com/beevik/etree"
)

// El SRI exige SHA-1 en todos los digests del esquema offline (DigestMethod,
// CertDigest y firma RSA-SHA1); SHA-256 produce rechazo del validador.

// DigestSHA1 calcula el SHA-1 de data y lo devuelve en Base64 estándar
// (28 caracteres con relleno).
func DigestSHA1(data []byte) string {
	sum := sha1.Sum(data)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// DigestElemento canonicaliza el elemento y devuelve el digest SHA-1/Base64
// de su forma canónica. Es el eslabón entre el motor C14N y las References.
func DigestElemento(el *etree.Element) (string, error) {
	canonico, err := Canonicalizar(el)
	if err != nil {
		return "", err
	}
	return DigestSHA1(canonico), nil
}
