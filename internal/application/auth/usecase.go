// Package auth implementa el intercambio de credenciales por token JWT.
// Las credenciales viven en la configuración del servicio: esta API opera
// para un solo emisor y no mantiene tabla de usuarios.
package auth

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/kevinvillajim/SRIAPI/internal/application/dto"
	"github.com/kevinvillajim/SRIAPI/internal/domain"
	"github.com/kevinvillajim/SRIAPI/pkg/jwt"
)

// Config credenciales y parámetros de emisión de tokens.
type Config struct {
	Usuario        string
	HashContrasena string // bcrypt de la contraseña; nunca la contraseña plana
	RUCEmisor      string
	Secret         string
	ExpMinutes     int
	Issuer         string
}

// AuthUseCase caso de uso de autenticación: login contra credenciales
// de configuración.
type AuthUseCase struct {
	cfg Config
}

// NewAuthUseCase construye el caso de uso de auth.
func NewAuthUseCase(cfg Config) *AuthUseCase {
	return &AuthUseCase{cfg: cfg}
}

// Login verifica usuario/contraseña y genera el JWT con usuario y RUC.
func (uc *AuthUseCase) Login(in dto.LoginRequest) (*dto.LoginResponse, error) {
	if in.Usuario != uc.cfg.Usuario {
		return nil, domain.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(uc.cfg.HashContrasena), []byte(in.Contrasena)); err != nil {
		return nil, domain.ErrUnauthorized
	}
	token, err := jwt.Generate(uc.cfg.Secret, in.Usuario, uc.cfg.RUCEmisor, uc.cfg.Issuer, uc.cfg.ExpMinutes)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{
		Token:     token,
		Usuario:   in.Usuario,
		RUCEmisor: uc.cfg.RUCEmisor,
	}, nil
}
