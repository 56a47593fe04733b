// Package firmador implementa la firma XAdES-BES envuelta que exige el SRI:
// canonicalización XML determinista, cadena de digests SHA-1, carga del
// contenedor PKCS#12 y ensamblaje del nodo ds:Signature.
//
// La canonicalización sigue el perfil C14N 20010315 tal como lo interpreta el
// validador del SRI: la aceptación del comprobante depende de igualdad a nivel
// de bytes entre lo que se firmó y lo que el validador re-canonicaliza.

package firmador

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/beevik/etree"

	"github.com/kevinvillajim/SRIAPI/internal/domain"
)

// Canonicalizar serializa el subárbol de forma determinista: declaraciones de
// namespace (heredadas más locales, deduplicadas, ordenadas por nombre
// calificado) antes que el resto de atributos (ordenados por namespace y luego
// nombre local), escapes por contexto, y recursión sobre los hijos.
// Dos árboles estructuralmente iguales con atributos en distinto orden de
// entrada producen exactamente los mismos bytes.
func Canonicalizar(el *etree.Element) ([]byte, error) {
	if el == nil {
		return nil, fmt.Errorf("%w: elemento nulo", domain.ErrCanonicalizacion)
	}
	var buf bytes.Buffer
	heredado := ambitoHeredado(el)
	if err := renderizar(&buf, el, heredado, map[string]string{}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CanonicalizarSinFirmas canonicaliza el documento eliminando primero todo
// subárbol ds:Signature de una copia: el digest de una firma envuelta debe
// excluir a la propia firma. Sobre un documento sin firmas equivale a
// Canonicalizar(raíz).
func CanonicalizarSinFirmas(doc *etree.Document) ([]byte, error) {
	if doc == nil || doc.Root() == nil {
		return nil, fmt.Errorf("%w: documento sin raíz", domain.ErrCanonicalizacion)
	}
	copia := doc.Copy()
	removerFirmas(copia.Root())
	return Canonicalizar(copia.Root())
}

// removerFirmas elimina recursivamente todo elemento Signature (cualquier prefijo).
func removerFirmas(el *etree.Element) {
	for _, hijo := range el.ChildElements() {
		if hijo.Tag == "Signature" {
			el.RemoveChild(hijo)
			continue
		}
		removerFirmas(hijo)
	}
}

// ambitoHeredado recolecta las declaraciones de namespace visibles desde los
// ancestros del elemento, de fuera hacia dentro (la más cercana gana).
func ambitoHeredado(el *etree.Element) map[string]string {
	var cadena []*etree.Element
	for p := el.Parent(); p != nil; p = p.Parent() {
		cadena = append([]*etree.Element{p}, cadena...)
	}
	ambito := map[string]string{}
	for _, ancestro := range cadena {
		for _, a := range ancestro.Attr {
			if prefijo, ok := prefijoDeclarado(a); ok {
				ambito[prefijo] = a.Value
			}
		}
	}
	return ambito
}

// prefijoDeclarado identifica atributos xmlns / xmlns:p y devuelve el prefijo
// declarado ("" para el namespace por defecto).
func prefijoDeclarado(a etree.Attr) (string, bool) {
	if a.Space == "xmlns" {
		return a.Key, true
	}
	if a.Space == "" && a.Key == "xmlns" {
		return "", true
	}
	return "", false
}

// renderizar emite la forma canónica de el en buf. heredado son las
// declaraciones que el ápice debe re-emitir; emitido las ya escritas por un
// ancestro dentro del subárbol canonicalizado (no se re-declaran).
func renderizar(buf *bytes.Buffer, el *etree.Element, heredado, emitido map[string]string) error {
	// 1. Declaraciones de namespace: heredadas (solo en el ápice) + locales,
	//    fusionadas y deduplicadas contra lo ya emitido.
	decls := map[string]string{}
	for prefijo, uri := range heredado {
		decls[prefijo] = uri
	}
	for _, a := range el.Attr {
		if prefijo, ok := prefijoDeclarado(a); ok {
			decls[prefijo] = a.Value
		}
	}
	var nombres []string
	for prefijo, uri := range decls {
		if emitido[prefijo] == uri {
			delete(decls, prefijo)
			continue
		}
		nombres = append(nombres, nombreDeclaracion(prefijo))
	}
	sort.Strings(nombres)

	// 2. Atributos regulares, ordenados por namespace y luego nombre local.
	ambito := ambitoActual(emitido, decls)
	var attrs []etree.Attr
	for _, a := range el.Attr {
		if _, ok := prefijoDeclarado(a); ok {
			continue
		}
		attrs = append(attrs, a)
	}
	sort.SliceStable(attrs, func(i, j int) bool {
		// Los atributos sin prefijo no pertenecen al namespace por defecto.
		var ui, uj string
		if attrs[i].Space != "" {
			ui = ambito[attrs[i].Space]
		}
		if attrs[j].Space != "" {
			uj = ambito[attrs[j].Space]
		}
		if ui != uj {
			return ui < uj
		}
		return attrs[i].Key < attrs[j].Key
	})

	nombre := nombreElemento(el)
	buf.WriteByte('<')
	buf.WriteString(nombre)
	for _, n := range nombres {
		prefijo := ""
		if n != "xmlns" {
			prefijo = strings.TrimPrefix(n, "xmlns:")
		}
		buf.WriteByte(' ')
		buf.WriteString(n)
		buf.WriteString(`="`)
		buf.WriteString(escaparAtributo(decls[prefijo]))
		buf.WriteByte('"')
	}
	for _, a := range attrs {
		buf.WriteByte(' ')
		if a.Space != "" {
			buf.WriteString(a.Space)
			buf.WriteByte(':')
		}
		buf.WriteString(a.Key)
		buf.WriteString(`="`)
		buf.WriteString(escaparAtributo(a.Value))
		buf.WriteByte('"')
	}
	buf.WriteByte('>')

	// 3. Hijos: texto escapado, elementos recursivos; comentarios e
	//    instrucciones de procesamiento se descartan.
	emitidoHijos := emitido
	if len(decls) > 0 {
		emitidoHijos = make(map[string]string, len(emitido)+len(decls))
		for k, v := range emitido {
			emitidoHijos[k] = v
		}
		for k, v := range decls {
			emitidoHijos[k] = v
		}
	}
	for _, token := range el.Child {
		switch t := token.(type) {
		case *etree.CharData:
			buf.WriteString(escaparTexto(t.Data))
		case *etree.Element:
			if err := renderizar(buf, t, nil, emitidoHijos); err != nil {
				return err
			}
		case *etree.Comment, *etree.ProcInst, *etree.Directive:
			// fuera de la forma canónica
		}
	}

	// Los elementos vacíos siempre se cierran con etiqueta explícita.
	buf.WriteString("</")
	buf.WriteString(nombre)
	buf.WriteByte('>')
	return nil
}

func nombreElemento(el *etree.Element) string {
	if el.Space != "" {
		return el.Space + ":" + el.Tag
	}
	return el.Tag
}

func nombreDeclaracion(prefijo string) string {
	if prefijo == "" {
		return "xmlns"
	}
	return "xmlns:" + prefijo
}

// ambitoActual resuelve prefijo→URI con lo emitido más las declaraciones nuevas.
func ambitoActual(emitido, decls map[string]string) map[string]string {
	ambito := make(map[string]string, len(emitido)+len(decls))
	for k, v := range emitido {
		ambito[k] = v
	}
	for k, v := range decls {
		ambito[k] = v
	}
	return ambito
}

var (
	reemplazadorAtributo = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		`"`, "&quot;",
		"\t", "&#x9;",
		"\n", "&#xA;",
		"\r", "&#xD;",
	)
	reemplazadorTexto = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\r", "&#xD;",
	)
)

// escaparAtributo escapa valores de atributo: & < " TAB LF CR.
func escaparAtributo(s string) string { return reemplazadorAtributo.Replace(s) }

// escaparTexto escapa contenido de texto: & < > CR.
func escaparTexto(s string) string { return reemplazadorTexto.Replace(s) }
