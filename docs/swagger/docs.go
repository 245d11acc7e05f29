// Package swagger holds the generated API specification registered with swag.
package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "API Support",
            "email": "support@lotus-reconciler.local"
        },
        "license": {
            "name": "MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/orders": {
            "post": {
                "description": "Place an order with the upstream provider, idempotent on local_order_id.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Place external order",
                "parameters": [
                    {
                        "description": "Placement request",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/handler.PlaceOrderRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.OrderResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/orders/{id}": {
            "get": {
                "produces": ["application/json"],
                "summary": "Get tracked order by local order ID",
                "parameters": [
                    {"type": "integer", "description": "Local order ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.OrderResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/admin/poll": {
            "post": {
                "produces": ["application/json"],
                "summary": "Run one reconciliation poll cycle now",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.PollResponse"}}
                }
            }
        },
        "/provider/account": {
            "get": {
                "produces": ["application/json"],
                "summary": "Get upstream account credit",
                "responses": {
                    "200": {"description": "OK"},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/provider/products": {
            "get": {
                "produces": ["application/json"],
                "summary": "Get upstream product catalog",
                "responses": {
                    "200": {"description": "OK"},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/provider/orders": {
            "get": {
                "produces": ["application/json"],
                "summary": "List orders as reported by the upstream provider",
                "responses": {
                    "200": {"description": "OK"},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handler.PlaceOrderRequest": {
            "type": "object",
            "properties": {
                "local_order_id": {"type": "integer"},
                "product_id": {"type": "integer"},
                "note": {"type": "string"}
            }
        },
        "handler.OrderResponse": {
            "type": "object",
            "properties": {
                "local_order_id": {"type": "integer"},
                "external_order_id": {"type": "integer"},
                "status": {"type": "string"},
                "content": {"type": "string"},
                "delivery": {"type": "string"}
            }
        },
        "handler.PollResponse": {
            "type": "object",
            "properties": {
                "polled": {"type": "integer"},
                "completed": {"type": "integer"},
                "failed": {"type": "integer"}
            }
        },
        "handler.ErrorResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "ray_id": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Lotus Reconciler API",
	Description:      "Provider order reconciliation service: placement webhook, status polling and upstream catalog access.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
