package sri

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"

	"github.com/kevinvillajim/SRIAPI/internal/infrastructure/sri/firmador"
)

// DivergenciaC14N describe el primer byte en que la forma canónica propia
// difiere de la forma de referencia.
type DivergenciaC14N struct {
	Posicion   int
	Propia     []byte // ventana alrededor del punto de divergencia
	Referencia []byte
}

func (d *DivergenciaC14N) Error() string {
	return fmt.Sprintf("divergencia canónica en byte %d: propia %q vs referencia %q",
		d.Posicion, d.Propia, d.Referencia)
}

// VerificarCanonico canonicaliza el documento con el motor propio y con
// ucarion/c14n como referencia independiente, y reporta la primera
// divergencia byte a byte. Es una herramienta de diagnóstico: las entradas
// firmadas no pasan por aquí en el camino normal.
//
// Los dos motores ubican las declaraciones de namespace en elementos
// distintos: el propio las emite donde fueron declaradas y la referencia las
// difiere al primer elemento que usa el prefijo. Para que esa diferencia de
// ubicación no cuente como divergencia, la salida propia se reprocesa por la
// referencia antes de comparar; una divergencia real del infoset (nodos,
// atributos, texto) sobrevive al reprocesado.
func VerificarCanonico(documento []byte) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(documento); err != nil {
		return fmt.Errorf("diagnóstico: XML ilegible: %w", err)
	}
	raiz := doc.Root()
	if raiz == nil {
		return fmt.Errorf("diagnóstico: documento sin elemento raíz")
	}

	propia, err := firmador.Canonicalizar(raiz)
	if err != nil {
		return fmt.Errorf("diagnóstico: canonicalizador propio: %w", err)
	}

	referencia, err := canonicalizarReferencia(documento)
	if err != nil {
		return fmt.Errorf("diagnóstico: canonicalizador de referencia: %w", err)
	}
	if bytes.Equal(propia, referencia) {
		return nil
	}

	propiaNormalizada, err := canonicalizarReferencia(propia)
	if err != nil {
		return fmt.Errorf("diagnóstico: normalizar salida propia: %w", err)
	}
	if div := primeraDivergencia(propiaNormalizada, referencia); div != nil {
		return div
	}
	return nil
}

// canonicalizarReferencia pasa el documento por ucarion/c14n.
func canonicalizarReferencia(documento []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(documento))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

// primeraDivergencia devuelve nil si ambas formas coinciden; si no, el
// punto de divergencia con una ventana de contexto a cada lado.
func primeraDivergencia(propia, referencia []byte) *DivergenciaC14N {
	n := len(propia)
	if len(referencia) < n {
		n = len(referencia)
	}
	pos := -1
	for i := 0; i < n; i++ {
		if propia[i] != referencia[i] {
			pos = i
			break
		}
	}
	if pos == -1 {
		if len(propia) == len(referencia) {
			return nil
		}
		pos = n
	}
	return &DivergenciaC14N{
		Posicion:   pos,
		Propia:     ventana(propia, pos),
		Referencia: ventana(referencia, pos),
	}
}

func ventana(b []byte, pos int) []byte {
	const radio = 24
	ini := pos - radio
	if ini < 0 {
		ini = 0
	}
	fin := pos + radio
	if fin > len(b) {
		fin = len(b)
	}
	out := make([]byte, fin-ini)
	copy(out, b[ini:fin])
	return out
}
