package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Dear Future Capsule API",
        "description": "Time capsule service: seal messages and media until an unlock instant.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Capsules", "description": "Sealing, resolving and listing time capsules"},
        {"name": "Media", "description": "Signed media downloads"}
    ],
    "paths": {
        "/capsules": {
            "post": {
                "tags": ["Capsules"],
                "summary": "Seal a new time capsule",
                "consumes": ["application/json", "multipart/form-data"],
                "parameters": [
                    {"name": "title", "in": "formData", "required": true, "type": "string"},
                    {"name": "message", "in": "formData", "required": true, "type": "string"},
                    {"name": "unlockAt", "in": "formData", "required": true, "type": "string", "description": "RFC3339 instant, must be in the future"},
                    {"name": "visibility", "in": "formData", "required": true, "type": "string", "enum": ["private", "public", "shareable"]},
                    {"name": "file", "in": "formData", "required": false, "type": "file", "description": "Single image or video attachment"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failure", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/capsules/{id}": {
            "get": {
                "tags": ["Capsules"],
                "summary": "Resolve a capsule by id",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found or not visible", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Capsules"],
                "summary": "Delete a capsule and its media",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "403": {"description": "Not the owner"},
                    "404": {"description": "Not found or not visible"}
                }
            }
        },
        "/capsules/shared/{slug}": {
            "get": {
                "tags": ["Capsules"],
                "summary": "Resolve a capsule through its share link",
                "parameters": [
                    {"name": "slug", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown slug", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/capsules/user/{ownerId}": {
            "get": {
                "tags": ["Capsules"],
                "summary": "List the owner's capsules",
                "parameters": [
                    {"name": "ownerId", "in": "path", "required": true, "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Listing restricted to the owner"}
                }
            }
        },
        "/capsules/user/{ownerId}/export": {
            "get": {
                "tags": ["Capsules"],
                "summary": "Export the owner's unlocked capsules",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "ownerId", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Export payload"}
                }
            }
        },
        "/media/{id}": {
            "get": {
                "tags": ["Media"],
                "summary": "Download capsule media via signed token",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Media stream"},
                    "401": {"description": "Invalid or expired token"}
                }
            }
        }
    },
    "definitions": {
        "CapsuleView": {
            "type": "object",
            "properties": {
                "state": {"type": "string", "enum": ["not_found", "locked", "unlocked"]},
                "id": {"type": "string"},
                "slug": {"type": "string"},
                "title": {"type": "string"},
                "message": {"type": "string", "description": "Only present when unlocked"},
                "mediaRef": {"type": "string", "description": "Only present when unlocked"},
                "mediaUrl": {"type": "string"},
                "visibility": {"type": "string"},
                "createdAt": {"type": "string", "format": "date-time"},
                "unlockAt": {"type": "string", "format": "date-time"},
                "secondsRemaining": {"type": "integer"},
                "countdown": {"$ref": "#/definitions/CountdownParts"},
                "isOwner": {"type": "boolean"}
            }
        },
        "CountdownParts": {
            "type": "object",
            "properties": {
                "days": {"type": "integer"},
                "hours": {"type": "integer"},
                "minutes": {"type": "integer"},
                "seconds": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "field": {"type": "string"},
                            "message": {"type": "string"}
                        }
                    }
                }
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
