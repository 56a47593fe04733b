package sri

import (
	"fmt"
	"unicode"
)

// Coeficientes módulo 11 para RUC de sociedades privadas (tercer dígito 9)
// y entidades públicas (tercer dígito 6). Se aplican de izquierda a derecha.
var (
	rucPrivadaWeights = [9]int{4, 3, 2, 7, 6, 5, 4, 3, 2}
	rucPublicaWeights = [8]int{3, 2, 7, 6, 5, 4, 3, 2}
)

// ValidateRUC valida un RUC ecuatoriano de 13 dígitos: provincia, tercer dígito,
// dígito verificador (módulo 10 para personas naturales, módulo 11 para
// sociedades y entidades públicas) y sufijo de establecimiento.
// Acepta el RUC con o sin separadores ("1792146739001", "1792146739-001").
func ValidateRUC(ruc string) error {
	digits := extractDigits(ruc)
	if len(digits) != 13 {
		return fmt.Errorf("sri: RUC debe tener 13 dígitos, se encontraron %d", len(digits))
	}

	provincia := int(digits[0]-'0')*10 + int(digits[1]-'0')
	if (provincia < 1 || provincia > 24) && provincia != 30 {
		return fmt.Errorf("sri: código de provincia del RUC inválido: %02d", provincia)
	}

	tercer := digits[2] - '0'
	switch {
	case tercer == 6:
		// Entidad pública: verificador en la posición 9, sufijo 0001.
		if string(digits[9:]) != "0001" {
			return fmt.Errorf("sri: RUC público debe terminar en 0001")
		}
		if err := checkModulo11(digits[:8], rucPublicaWeights[:], digits[8]); err != nil {
			return err
		}
	case tercer == 9:
		// Sociedad privada: verificador en la posición 10, sufijo 001.
		if string(digits[10:]) != "001" {
			return fmt.Errorf("sri: RUC de sociedad debe terminar en 001")
		}
		if err := checkModulo11(digits[:9], rucPrivadaWeights[:], digits[9]); err != nil {
			return err
		}
	case tercer < 6:
		// Persona natural: los 10 primeros dígitos son una cédula.
		if string(digits[10:]) != "001" {
			return fmt.Errorf("sri: RUC de persona natural debe terminar en 001")
		}
		if err := ValidateCedula(string(digits[:10])); err != nil {
			return err
		}
	default:
		return fmt.Errorf("sri: tercer dígito del RUC inválido: %c", digits[2])
	}
	return nil
}

// ValidateCedula valida una cédula ecuatoriana de 10 dígitos con el algoritmo
// módulo 10 (coeficientes 2,1 alternados, productos mayores a 9 restan 9).
func ValidateCedula(cedula string) error {
	digits := extractDigits(cedula)
	if len(digits) != 10 {
		return fmt.Errorf("sri: cédula debe tener 10 dígitos, se encontraron %d", len(digits))
	}
	provincia := int(digits[0]-'0')*10 + int(digits[1]-'0')
	if (provincia < 1 || provincia > 24) && provincia != 30 {
		return fmt.Errorf("sri: código de provincia de la cédula inválido: %02d", provincia)
	}
	var sum int
	for i := 0; i < 9; i++ {
		d := int(digits[i] - '0')
		if i%2 == 0 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	expected := (10 - sum%10) % 10
	if int(digits[9]-'0') != expected {
		return fmt.Errorf("sri: dígito verificador de la cédula inválido: esperado %d, recibido %c", expected, digits[9])
	}
	return nil
}

// checkModulo11 verifica el dígito verificador módulo 11 sobre base con los pesos dados.
func checkModulo11(base []byte, weights []int, verificador byte) error {
	var sum int
	for i, d := range base {
		sum += int(d-'0') * weights[i]
	}
	remainder := sum % 11
	expected := 11 - remainder
	if remainder == 0 {
		expected = 0
	}
	if expected == 10 {
		return fmt.Errorf("sri: RUC sin dígito verificador válido (residuo 1)")
	}
	if int(verificador-'0') != expected {
		return fmt.Errorf("sri: dígito verificador del RUC inválido: esperado %d, recibido %c", expected, verificador)
	}
	return nil
}

func extractDigits(s string) []byte {
	var out []byte
	for _, r := range s {
		if unicode.IsDigit(r) {
			out = append(out, byte(r))
		}
	}
	return out
}
