// Package docs is generated by swaggo/swag. Regenerate with
// swag init -g cmd/api/main.go -o docs.
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
        "/entries": {
            "get": {
                "produces": ["application/json"],
                "tags": ["entries"],
                "summary": "List directory entries",
                "parameters": [
                    {"type": "string", "name": "q", "in": "query"},
                    {"type": "string", "name": "type", "in": "query"},
                    {"type": "string", "name": "license", "in": "query"},
                    {"type": "string", "name": "country", "in": "query"},
                    {"type": "number", "name": "min_rating", "in": "query"},
                    {"type": "boolean", "name": "promo_only", "in": "query"},
                    {"type": "boolean", "name": "verified", "in": "query"},
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/entries/facets": {
            "get": {
                "produces": ["application/json"],
                "tags": ["entries"],
                "summary": "Distinct licences and countries",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/entries/{entry}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["entries"],
                "summary": "Entry detail by slug or id",
                "parameters": [{"type": "string", "name": "entry", "in": "path", "required": true, "description": "Entry slug or id"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/entries/{entry}/reviews": {
            "get": {
                "produces": ["application/json"],
                "tags": ["reviews"],
                "summary": "Reviews of an entry",
                "parameters": [{"type": "string", "name": "entry", "in": "path", "required": true, "description": "Entry slug or id"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            },
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["reviews"],
                "summary": "Submit a review",
                "parameters": [{"type": "string", "name": "entry", "in": "path", "required": true, "description": "Entry slug or id"}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "429": {"description": "Too Many Requests"}}
            }
        },
        "/reviews/{reviewID}": {
            "delete": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["reviews"],
                "summary": "Delete a review",
                "parameters": [{"type": "string", "name": "reviewID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}
            }
        },
        "/me": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Current user profile",
                "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}
            }
        },
        "/admin/dashboard": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "All entries and reviews",
                "responses": {"200": {"description": "OK"}, "504": {"description": "Gateway Timeout"}}
            }
        },
        "/admin/entries": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Create an entry",
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}}
            }
        },
        "/admin/entries/{entryID}": {
            "patch": {
                "security": [{"ApiKeyAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Update an entry",
                "parameters": [{"type": "string", "name": "entryID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            },
            "delete": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Delete an entry with its reviews",
                "parameters": [{"type": "string", "name": "entryID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/admin/entries/{entryID}/logo": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Upload an entry logo",
                "parameters": [
                    {"type": "string", "name": "entryID", "in": "path", "required": true},
                    {"type": "file", "name": "logo", "in": "formData", "required": true}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/admin/entries/{entryID}/recompute": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Recompute the rating aggregate",
                "parameters": [{"type": "string", "name": "entryID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/maintenance/seed": {
            "post": {
                "produces": ["application/json"],
                "tags": ["maintenance"],
                "summary": "Insert the demo catalogue",
                "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}
            }
        },
        "/maintenance/make-admin": {
            "get": {
                "produces": ["application/json"],
                "tags": ["maintenance"],
                "summary": "Admin status by email",
                "parameters": [{"type": "string", "name": "email", "in": "query", "required": true}],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["maintenance"],
                "summary": "Grant admin by email",
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/maintenance/backfill-slugs": {
            "post": {
                "produces": ["application/json"],
                "tags": ["maintenance"],
                "summary": "Give every entry without a slug one",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ops"],
                "summary": "Table counts",
                "responses": {"200": {"description": "OK"}, "503": {"description": "Service Unavailable"}}
            }
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "",
	Host:             "",
	BasePath:         "/v1",
	Schemes:          []string{},
	Title:            "Casino Directory API",
	Description:      "Casinos, sister sites, blogs and review sites with user reviews.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
