// sri-firmar firma un comprobante XML local con un certificado PKCS#12 y,
// opcionalmente, lo envía al SRI y espera su autorización.
//
// Uso:
//
//	sri-firmar -xml factura.xml -cert firma.p12 -clave secreta [-out firmado.xml]
//	sri-firmar -xml factura.xml -cert firma.p12 -clave secreta -enviar -ambiente 1
//	sri-firmar -cert firma.p12 -clave secreta -diagnostico
//
// En modo -diagnostico no firma nada: inspecciona el certificado y, si se
// pasa -xml, verifica que el documento canonicaliza de forma estable.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	infrasri "github.com/kevinvillajim/SRIAPI/internal/infrastructure/sri"
	"github.com/kevinvillajim/SRIAPI/internal/infrastructure/sri/firmador"
	"github.com/kevinvillajim/SRIAPI/pkg/logger"
)

func main() {
	var (
		xmlPath     = flag.String("xml", "", "ruta del comprobante XML a firmar")
		certPath    = flag.String("cert", "", "ruta del contenedor PKCS#12 (.p12)")
		certClave   = flag.String("clave", "", "contraseña del certificado")
		outPath     = flag.String("out", "", "ruta de salida del XML firmado (defecto: stdout)")
		enviar      = flag.Bool("enviar", false, "enviar el comprobante firmado a recepción del SRI")
		esperar     = flag.Bool("esperar", false, "tras enviar, sondear la autorización")
		ambiente    = flag.String("ambiente", "1", "ambiente SRI: 1 pruebas, 2 producción")
		maxEspera   = flag.Duration("max-espera", 2*time.Minute, "tiempo máximo de sondeo de autorización")
		diagnostico = flag.Bool("diagnostico", false, "inspeccionar certificado y canonicalización sin firmar")
	)
	flag.Parse()

	if *certPath == "" {
		fallar("falta -cert con la ruta del .p12")
	}
	p12, err := os.ReadFile(*certPath)
	if err != nil {
		fallar("leer certificado: %v", err)
	}

	if *diagnostico {
		diagnosticar(p12, *certClave, *xmlPath)
		return
	}

	if *xmlPath == "" {
		fallar("falta -xml con el comprobante a firmar")
	}
	documento, err := os.ReadFile(*xmlPath)
	if err != nil {
		fallar("leer XML: %v", err)
	}

	svc := firmador.NewServicioFirma(nil, nil, nil)
	firmado, err := svc.Firmar(documento, p12, *certClave)
	if err != nil {
		fallar("firmar: %v", err)
	}

	if *outPath != "" {
		if err := os.WriteFile(*outPath, firmado, 0o644); err != nil {
			fallar("escribir salida: %v", err)
		}
		fmt.Fprintf(os.Stderr, "firmado escrito en %s (%d bytes)\n", *outPath, len(firmado))
	} else if !*enviar {
		os.Stdout.Write(firmado)
	}

	if !*enviar {
		return
	}

	log := logger.New(logger.Config{Env: "development", Level: "info"})
	cliente := infrasri.NewClienteSOAP(infrasri.ConfigCliente{Ambiente: *ambiente}, nil, log)

	ctx := context.Background()
	recepcion, err := cliente.EnviarComprobante(ctx, firmado)
	if err != nil {
		fallar("enviar a recepción: %v", err)
	}
	fmt.Printf("recepción: %s\n", recepcion.Estado)
	for _, m := range recepcion.Mensajes {
		fmt.Printf("  [%s] %s: %s\n", m.Tipo, m.Identificador, m.Mensaje)
	}
	if !recepcion.Recibida() || !*esperar {
		return
	}

	clave, err := infrasri.ExtraerClaveAcceso(firmado)
	if err != nil {
		fallar("extraer clave de acceso: %v", err)
	}
	aut, err := cliente.EsperarAutorizacion(ctx, clave, *maxEspera, 0)
	if err != nil {
		fallar("sondear autorización: %v", err)
	}
	fmt.Printf("autorización: %s\n", aut.Estado)
	if aut.NumeroAutorizacion != "" {
		fmt.Printf("  número: %s\n  fecha: %s\n", aut.NumeroAutorizacion, aut.FechaAutorizacion)
	}
	for _, m := range aut.Mensajes {
		fmt.Printf("  [%s] %s: %s\n", m.Tipo, m.Identificador, m.Mensaje)
	}
}

// diagnosticar inspecciona el material criptográfico y la canonicalización
// sin producir una firma.
func diagnosticar(p12 []byte, clave, xmlPath string) {
	fmt.Println("DIAGNÓSTICO DE CERTIFICADO SRI")
	fmt.Println("------------------------------")

	cd, err := firmador.CargarPKCS12(p12, clave)
	if err != nil {
		fallar("decodificar PKCS#12: %v", err)
	}
	cert := cd.Certificado
	fmt.Printf("titular:  %s\n", cert.Subject.String())
	fmt.Printf("emisor:   %s\n", cert.Issuer.String())
	fmt.Printf("serie:    %s\n", cd.NumeroSerie())
	fmt.Printf("vigencia: %s a %s\n",
		cert.NotBefore.Format("2006-01-02"), cert.NotAfter.Format("2006-01-02"))
	if err := cd.Vigente(time.Now()); err != nil {
		fmt.Printf("ADVERTENCIA: %v\n", err)
	} else {
		fmt.Println("el certificado está vigente")
	}

	if xmlPath == "" {
		return
	}
	documento, err := os.ReadFile(xmlPath)
	if err != nil {
		fallar("leer XML: %v", err)
	}
	if err := infrasri.VerificarCanonico(documento); err != nil {
		fallar("canonicalización: %v", err)
	}
	fmt.Println("el documento canonicaliza de forma estable")
}

func fallar(formato string, args ...any) {
	fmt.Fprintf(os.Stderr, formato+"\n", args...)
	os.Exit(1)
}
