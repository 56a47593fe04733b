// Package docs registra la especificación OpenAPI del servicio con swag.
// El JSON servido en /docs se genera con `swag init -g cmd/api/main.go`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "title": "{{.Title}}",
        "description": "{{escape .Description}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "paths": {
        "/api/auth/token": {
            "post": {
                "tags": ["auth"],
                "summary": "Obtener token de acceso",
                "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}
            }
        },
        "/api/comprobantes": {
            "post": {
                "tags": ["comprobantes"],
                "summary": "Emitir una factura electrónica",
                "security": [{"BearerAuth": []}],
                "responses": {"202": {"description": "Accepted"}, "400": {"description": "Bad Request"}}
            }
        },
        "/api/comprobantes/firmar": {
            "post": {
                "tags": ["comprobantes"],
                "summary": "Firmar un comprobante XML sin emitirlo",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}
            }
        },
        "/api/comprobantes/pendientes": {
            "get": {
                "tags": ["comprobantes"],
                "summary": "Listar comprobantes sin estado terminal",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/comprobantes/{id}": {
            "get": {
                "tags": ["comprobantes"],
                "summary": "Consultar un comprobante por ID",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/api/comprobantes/{id}/estado": {
            "get": {
                "tags": ["comprobantes"],
                "summary": "Consultar solo el estado de un comprobante",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/api/comprobantes/{id}/xml": {
            "get": {
                "tags": ["comprobantes"],
                "summary": "Descargar el XML firmado",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/api/comprobantes/{id}/autorizar": {
            "post": {
                "tags": ["comprobantes"],
                "summary": "Reconsultar la autorización de un comprobante",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/api/claves": {
            "post": {
                "tags": ["claves"],
                "summary": "Generar una clave de acceso de 49 dígitos",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}
            }
        },
        "/api/claves/{clave}": {
            "get": {
                "tags": ["claves"],
                "summary": "Validar y descomponer una clave de acceso",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}
            }
        }
    }
}`

// SwaggerInfo mantiene los metadatos exportados de la especificación.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "SRI API",
	Description:      "Emisión de comprobantes electrónicos contra el SRI (Ecuador)",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
