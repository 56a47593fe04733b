package dto

// PageRequest recoge limit/offset del query string. Los listados de
// comprobantes acotan limit a 100 filas.
type PageRequest struct {
	Limit  int `query:"limit" validate:"min=1,max=100"`
	Offset int `query:"offset" validate:"min=0"`
}

// DefaultPage normaliza valores ausentes o negativos.
func (p *PageRequest) DefaultPage() {
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}

// PageResponse acompaña a los listados con la página solicitada y el
// número de filas realmente devueltas.
type PageResponse struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

// NewPage arma los metadatos de página de una respuesta de listado.
func NewPage(req PageRequest, total int) PageResponse {
	return PageResponse{Limit: req.Limit, Offset: req.Offset, Total: total}
}

// ErrorResponse cuerpo de error HTTP.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
