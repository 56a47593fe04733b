package dto

// LoginRequest credenciales para el intercambio de token.
type LoginRequest struct {
	Usuario    string `json:"usuario" validate:"required"`
	Contrasena string `json:"contrasena" validate:"required"`
}

// LoginResponse token emitido y su contexto.
type LoginResponse struct {
	Token     string `json:"token"`
	Usuario   string `json:"usuario"`
	RUCEmisor string `json:"ruc_emisor"`
}
