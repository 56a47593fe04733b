package sri

// Firmador firma un comprobante XML y devuelve el XML con la firma envuelta
// como último hijo del elemento raíz.
type Firmador interface {
	// Firmar toma el XML del comprobante (sin firma) y el contenedor PKCS#12
	// con su contraseña, y retorna el XML con el nodo ds:Signature añadido.
	// Si el XML ya trae firmas previas, se eliminan antes de firmar.
	Firmar(xmlBytes []byte, p12 []byte, clave string) ([]byte, error)
}
