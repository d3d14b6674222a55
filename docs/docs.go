// Package docs holds the OpenAPI document built from the handler
// annotations. Regenerate with: swag init -g main.go -o docs
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
        "/health": {"get": {"tags": ["Health"], "summary": "Health check", "produces": ["application/json"], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}}}}},
        "/api/refresh": {"post": {"tags": ["Projects"], "summary": "Reload all queries", "produces": ["application/json"], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}}}}},
        "/api/projects": {
            "get": {"tags": ["Projects"], "summary": "List contractor projects with derived milestone status", "produces": ["application/json"],
                "parameters": [{"type": "boolean", "description": "reload before answering", "name": "refresh", "in": "query"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}}, "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.APIResponse"}}}},
            "post": {"tags": ["Agency"], "summary": "Create a project", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"description": "project form", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.CreateProjectRequest"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/models.APIResponse"}}, "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.APIResponse"}}}}
        },
        "/api/projects/stats": {"get": {"tags": ["Projects"], "summary": "Project statistics", "produces": ["application/json"], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}}, "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.APIResponse"}}}}},
        "/api/projects/{id}": {"get": {"tags": ["Projects"], "summary": "Get a project", "produces": ["application/json"],
            "parameters": [{"type": "string", "description": "project id", "name": "id", "in": "path", "required": true}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}}, "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.APIResponse"}}}}},
        "/api/projects/{id}/submission": {"post": {"tags": ["Contractor"], "summary": "Submit project evidence", "consumes": ["multipart/form-data"], "produces": ["application/json"],
            "parameters": [
                {"type": "string", "description": "project id", "name": "id", "in": "path", "required": true},
                {"type": "string", "description": "what was delivered", "name": "description", "in": "formData", "required": true},
                {"type": "file", "description": "PNG or JPEG, at most 1 MB; repeatable", "name": "evidence", "in": "formData", "required": true}
            ],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}}, "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.APIResponse"}}, "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.APIResponse"}}}}},
        "/api/submissions": {"get": {"tags": ["Agency"], "summary": "Submitted projects for review", "produces": ["application/json"], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}}}}},
        "/api/milestones/rejected": {"get": {"tags": ["Projects"], "summary": "Rejected milestones", "produces": ["application/json"], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}}}}},
        "/api/contractors": {"get": {"tags": ["Agency"], "summary": "Registered contractors", "produces": ["application/json"], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}}}}},
        "/api/session": {"get": {"tags": ["Session"], "summary": "Current session", "produces": ["application/json"], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}}}}},
        "/api/session/role": {"post": {"tags": ["Session"], "summary": "Resolve role for a path", "consumes": ["application/json"], "produces": ["application/json"],
            "parameters": [{"description": "navigation path", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.RoleRequest"}}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}}}}},
        "/api/workflows/{kind}": {"get": {"tags": ["Workflows"], "summary": "Workflow progress", "produces": ["application/json"],
            "parameters": [{"type": "string", "description": "submission or create_project", "name": "kind", "in": "path", "required": true}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}}}}},
        "/api/workflows/{kind}/retry": {"post": {"tags": ["Workflows"], "summary": "Retry a failed workflow", "produces": ["application/json"],
            "parameters": [{"type": "string", "description": "submission or create_project", "name": "kind", "in": "path", "required": true}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}}, "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.APIResponse"}}}}},
        "/api/evidence/{cid}": {"get": {"tags": ["Agency"], "summary": "Evidence URL", "produces": ["application/json"],
            "parameters": [
                {"type": "string", "description": "evidence CID", "name": "cid", "in": "path", "required": true},
                {"type": "boolean", "description": "time-limited signed URL", "name": "signed", "in": "query"},
                {"type": "integer", "description": "signed URL lifetime in seconds", "name": "ttl", "in": "query"}
            ],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}}, "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/models.APIResponse"}}}}},
        "/api/transactions/{hash}/qr": {"get": {"tags": ["Workflows"], "summary": "Transaction QR code", "produces": ["image/png"],
            "parameters": [{"type": "string", "description": "transaction hash", "name": "hash", "in": "path", "required": true}],
            "responses": {"200": {"description": "OK", "schema": {"type": "file"}}}}}
    },
    "definitions": {
        "models.APIResponse": {"type": "object", "properties": {
            "success": {"type": "boolean"},
            "data": {},
            "error": {"$ref": "#/definitions/models.ErrorResponse"},
            "meta": {"type": "object", "additionalProperties": true}
        }},
        "models.ErrorResponse": {"type": "object", "properties": {
            "error": {"type": "string"},
            "message": {"type": "string"},
            "code": {"type": "integer"},
            "hint": {"type": "string"},
            "fields": {"type": "object", "additionalProperties": true},
            "timestamp": {"type": "string"}
        }},
        "models.CreateProjectRequest": {"type": "object", "properties": {
            "description": {"type": "string"},
            "budget": {"type": "string"},
            "contractor_address": {"type": "string"},
            "start_date": {"type": "string"},
            "end_date": {"type": "string"}
        }},
        "models.RoleRequest": {"type": "object", "properties": {"path": {"type": "string"}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Procurement Client API",
	Description:      "Read projects and drive evidence submission and project creation against the procurement contract.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
