package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrDuplicate    = errors.New("recurso duplicado")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")
	ErrConflict     = errors.New("conflicto con el estado actual")
)

// Errores del material criptográfico. Todos son fatales y se producen antes de
// cualquier llamada de red, de modo que una entrada inválida nunca deja efectos
// parciales en el SRI.
var (
	// ErrCertificadoContrasena indica contraseña incorrecta del PKCS#12.
	// Se distingue del contenedor corrupto para que el caller no asuma
	// que el archivo está dañado.
	ErrCertificadoContrasena = errors.New("contraseña del certificado incorrecta")
	// ErrCertificadoCorrupto indica que el contenedor PKCS#12 no pudo parsearse.
	ErrCertificadoCorrupto = errors.New("certificado corrupto o formato no soportado")
	// ErrCertificadoExpirado indica que la vigencia del certificado ya terminó.
	ErrCertificadoExpirado = errors.New("certificado expirado")
	// ErrCertificadoNoVigente indica que la vigencia del certificado aún no empieza.
	ErrCertificadoNoVigente = errors.New("certificado aún no vigente")
)

// ErrCanonicalizacion indica entrada XML que no pudo canonicalizarse (fatal).
var ErrCanonicalizacion = errors.New("error de canonicalización XML")

// ErrTiempoAgotado indica que el sondeo de autorización superó el tiempo máximo
// sin llegar a un estado terminal.
var ErrTiempoAgotado = errors.New("tiempo de espera de autorización agotado")

// ValidationError agrupa todas las violaciones de validación de entrada,
// no solo la primera, para que el caller pueda corregirlas de una vez.
// Nunca se reintenta.
type ValidationError struct {
	Violaciones []string
}

func (e *ValidationError) Error() string {
	return "validación: " + strings.Join(e.Violaciones, "; ")
}

// NewValidationError construye el error con la lista de violaciones.
func NewValidationError(violaciones []string) *ValidationError {
	return &ValidationError{Violaciones: violaciones}
}

// TransportError envuelve un fallo de transporte contra el WS del SRI
// (timeout, conexión, 5xx). Retryable indica si la política de reintentos
// puede volver a intentarlo; Intentos cuántos se consumieron antes de rendirse.
type TransportError struct {
	Operacion string // "recepcion" | "autorizacion"
	Intentos  int
	Retryable bool
	Ultimo    time.Duration // espera aplicada antes del último intento
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transporte %s: %d intentos agotados: %v", e.Operacion, e.Intentos, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
