// Package docs registers the OpenAPI document served at /swagger.
// Regenerate with: swag init -g cmd/server/main.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/generate": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Generation"],
                "summary": "Generate an animation from a prompt",
                "operationId": "generateAnimation",
                "parameters": [
                    {"description": "Prompt", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.GenerateRequest"}}
                ],
                "responses": {
                    "200": {"description": "Generated or cached animation", "schema": {"$ref": "#/definitions/handlers.GenerateResponse"}},
                    "400": {"description": "Invalid body or prompt", "schema": {"$ref": "#/definitions/handlers.GenerateResponse"}},
                    "429": {"description": "Too many requests", "schema": {"$ref": "#/definitions/handlers.GenerateResponse"}},
                    "500": {"description": "Generation failed", "schema": {"$ref": "#/definitions/handlers.GenerateResponse"}}
                }
            }
        },
        "/gallery": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Generation"],
                "summary": "Recently generated animations",
                "operationId": "gallery",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.GalleryResponse"}},
                    "304": {"description": "Not Modified"},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handlers.GenerateResponse"}}
                }
            }
        },
        "/chats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Chats"],
                "summary": "List chats (paginated)",
                "operationId": "listChats",
                "parameters": [
                    {"type": "integer", "default": 1, "minimum": 1, "description": "Page number", "name": "page", "in": "query"},
                    {"type": "integer", "default": 20, "maximum": 100, "minimum": 1, "description": "Items per page", "name": "page_size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListChatsResponse"}},
                    "304": {"description": "Not Modified"},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Chats"],
                "summary": "Create a new chat",
                "operationId": "createChat",
                "parameters": [
                    {"description": "Create chat payload", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CreateChatRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/domain.Chat"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/chats/{id}": {
            "delete": {
                "tags": ["Chats"],
                "summary": "Delete a chat",
                "operationId": "deleteChat",
                "parameters": [
                    {"type": "string", "format": "uuid", "description": "Chat ID (UUID)", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Chat not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/chats/{id}/title": {
            "put": {
                "consumes": ["application/json"],
                "tags": ["Chats"],
                "summary": "Rename a chat",
                "operationId": "updateChatTitle",
                "parameters": [
                    {"type": "string", "format": "uuid", "description": "Chat ID (UUID)", "name": "id", "in": "path", "required": true},
                    {"description": "New title", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.UpdateChatTitleRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Chat not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/chats/{id}/messages": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Messages"],
                "summary": "List messages in a chat",
                "operationId": "listMessages",
                "parameters": [
                    {"type": "string", "format": "uuid", "description": "Chat ID (UUID)", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListMessagesResponse"}},
                    "404": {"description": "Chat not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Messages"],
                "summary": "Append a transcript entry",
                "operationId": "postMessage",
                "parameters": [
                    {"type": "string", "description": "Idempotency key for safe retries", "name": "Idempotency-Key", "in": "header"},
                    {"type": "string", "format": "uuid", "description": "Chat ID (UUID)", "name": "id", "in": "path", "required": true},
                    {"description": "Transcript entry", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.PostMessageRequest"}}
                ],
                "responses": {
                    "200": {"description": "Replayed message", "schema": {"$ref": "#/definitions/handlers.PostMessageResponse"}},
                    "201": {"description": "Stored message", "schema": {"$ref": "#/definitions/handlers.PostMessageResponse"}},
                    "404": {"description": "Chat not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/billing/plans": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Billing"],
                "summary": "Subscription plans",
                "operationId": "listPlans",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.PlansResponse"}}}
            }
        },
        "/billing/checkout": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Billing"],
                "summary": "Start a subscription checkout",
                "operationId": "createCheckout",
                "parameters": [
                    {"description": "Plan to buy", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CheckoutRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.CheckoutResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Plan not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "503": {"description": "Payments not configured", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/billing/subscription": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Billing"],
                "summary": "Current subscription of the caller",
                "operationId": "getSubscription",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/services.Subscription"}}}
            }
        }
    },
    "definitions": {
        "domain.Chat": {
            "type": "object",
            "properties": {
                "created_at": {"type": "string"},
                "id": {"type": "string"},
                "title": {"type": "string"},
                "updated_at": {"type": "string"},
                "user_id": {"type": "string"}
            }
        },
        "domain.Message": {
            "type": "object",
            "properties": {
                "chat_id": {"type": "string"},
                "created_at": {"type": "string"},
                "id": {"type": "string"},
                "is_error": {"type": "boolean"},
                "is_response": {"type": "boolean"},
                "text": {"type": "string"},
                "updated_at": {"type": "string"},
                "video_url": {"type": "string"}
            }
        },
        "domain.Plan": {
            "type": "object",
            "properties": {
                "currency": {"type": "string"},
                "description": {"type": "string"},
                "features": {"type": "array", "items": {"type": "string"}},
                "id": {"type": "string"},
                "interval": {"type": "string"},
                "name": {"type": "string"},
                "popular": {"type": "boolean"},
                "price_minor": {"type": "integer"},
                "tier": {"type": "string"}
            }
        },
        "domain.PromptCache": {
            "type": "object",
            "properties": {
                "created_at": {"type": "string"},
                "prompt": {"type": "string"},
                "video_url": {"type": "string"}
            }
        },
        "handlers.CheckoutRequest": {
            "type": "object",
            "required": ["plan_id"],
            "properties": {"plan_id": {"type": "string", "example": "pro-plan"}}
        },
        "handlers.CheckoutResponse": {
            "type": "object",
            "properties": {"client_secret": {"type": "string"}}
        },
        "handlers.CreateChatRequest": {
            "type": "object",
            "properties": {"title": {"type": "string", "example": "Bouncing logo ideas"}}
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "not_found"},
                "message": {"type": "string", "example": "resource not found"},
                "request_id": {"type": "string"}
            }
        },
        "handlers.GalleryResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "videos": {"type": "array", "items": {"$ref": "#/definitions/domain.PromptCache"}}
            }
        },
        "handlers.GenerateRequest": {
            "type": "object",
            "properties": {"prompt": {"type": "string", "example": "A red ball bouncing on a wooden floor"}}
        },
        "handlers.GenerateResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "success": {"type": "boolean"},
                "text": {"type": "string"},
                "videoUrl": {"type": "string"}
            }
        },
        "handlers.ListChatsResponse": {
            "type": "object",
            "properties": {
                "chats": {"type": "array", "items": {"$ref": "#/definitions/domain.Chat"}},
                "pagination": {"$ref": "#/definitions/handlers.Pagination"}
            }
        },
        "handlers.ListMessagesResponse": {
            "type": "object",
            "properties": {
                "messages": {"type": "array", "items": {"$ref": "#/definitions/domain.Message"}},
                "pagination": {"$ref": "#/definitions/handlers.Pagination"}
            }
        },
        "handlers.Pagination": {
            "type": "object",
            "properties": {
                "has_next": {"type": "boolean"},
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total": {"type": "integer"},
                "total_pages": {"type": "integer"}
            }
        },
        "handlers.PlansResponse": {
            "type": "object",
            "properties": {"plans": {"type": "array", "items": {"$ref": "#/definitions/domain.Plan"}}}
        },
        "handlers.PostMessageRequest": {
            "type": "object",
            "required": ["text"],
            "properties": {
                "is_error": {"type": "boolean"},
                "is_response": {"type": "boolean"},
                "text": {"type": "string"},
                "video_url": {"type": "string"}
            }
        },
        "handlers.PostMessageResponse": {
            "type": "object",
            "properties": {"message": {"$ref": "#/definitions/domain.Message"}}
        },
        "handlers.UpdateChatTitleRequest": {
            "type": "object",
            "required": ["title"],
            "properties": {"title": {"type": "string", "maxLength": 255, "minLength": 1}}
        },
        "services.Subscription": {
            "type": "object",
            "properties": {
                "subscription_id": {"type": "string"},
                "tier": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "AnimAI Studio API",
	Description:      "Prompt-to-animation generation, gallery, chat history and billing.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
