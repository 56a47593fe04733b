package sri

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"time"
)

// PoliticaReintento gobierna los reintentos de transporte contra el SRI.
// Solo se reintentan fallos de transporte (red, timeout, 5xx); un rechazo
// de negocio nunca se reintenta.
type PoliticaReintento struct {
	// MaxIntentos es el total de intentos, incluido el primero.
	MaxIntentos int

	// Base es la espera del primer reintento.
	Base time.Duration

	// Tope acota la espera exponencial antes del jitter.
	Tope time.Duration
}

// PoliticaPorDefecto devuelve la política estándar: 5 intentos,
// backoff exponencial de 1s con tope de 30s.
func PoliticaPorDefecto() PoliticaReintento {
	return PoliticaReintento{
		MaxIntentos: 5,
		Base:        time.Second,
		Tope:        30 * time.Second,
	}
}

// Espera calcula la pausa antes del reintento número intento (base cero).
// El jitter es aditivo y el resultado nunca es menor que la espera
// anterior, para que la serie sea no decreciente.
func (p PoliticaReintento) Espera(intento int, anterior time.Duration) time.Duration {
	base := p.Base
	if base <= 0 {
		base = time.Second
	}
	tope := p.Tope
	if tope <= 0 {
		tope = 30 * time.Second
	}

	espera := base
	for i := 0; i < intento; i++ {
		espera *= 2
		if espera >= tope {
			espera = tope
			break
		}
	}

	if espera < tope {
		espera += time.Duration(rand.Int63n(int64(espera)/2 + 1))
		if espera > tope {
			espera = tope
		}
	}
	if espera < anterior {
		espera = anterior
	}
	return espera
}

// Dormidor abstrae la espera entre reintentos para poder simularla en tests.
type Dormidor interface {
	// Dormir bloquea durante d o hasta que el contexto se cancele.
	Dormir(ctx context.Context, d time.Duration) error
}

type dormidorReal struct{}

func (dormidorReal) Dormir(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// esReintentable clasifica una falla de llamada HTTP. Errores de red y
// respuestas 5xx se reintentan; cualquier 4xx es definitivo.
func esReintentable(status int, err error) bool {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		var netErr net.Error
		if errors.As(err, &netErr) {
			return true
		}
		// Errores de transporte sin tipar (conexión rechazada, reset).
		return true
	}
	return status >= http.StatusInternalServerError
}

var _ Dormidor = dormidorReal{}
