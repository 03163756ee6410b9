// Package docs registers the OpenAPI description served at /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "Hunter Maintainers",
            "url": "https://github.com/raysh454/hunter"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/healthz": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Liveness probe",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.HealthResponse"}}
                }
            }
        },
        "/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["pipeline"],
                "summary": "Current or last cycle status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.CycleStatus"}}
                }
            }
        },
        "/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["pipeline"],
                "summary": "Cumulative pipeline counters",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.StatsResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/cycles": {
            "post": {
                "description": "Runs one cycle in the background. Without a scope the next configured target is used.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Start a cycle now",
                "parameters": [
                    {"description": "Optional target", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/server.StartCycleRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/app.Job"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/server.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/jobs": {
            "get": {
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "List jobs",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/app.Job"}}}
                }
            }
        },
        "/jobs/{jobID}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Get a job",
                "parameters": [{"type": "string", "description": "Job ID", "name": "jobID", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/app.Job"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            },
            "delete": {
                "tags": ["jobs"],
                "summary": "Cancel a job",
                "parameters": [{"type": "string", "description": "Job ID", "name": "jobID", "in": "path", "required": true}],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/reports": {
            "get": {
                "produces": ["application/json"],
                "tags": ["reports"],
                "summary": "List reports",
                "parameters": [
                    {"type": "string", "description": "Report status", "name": "status", "in": "query"},
                    {"type": "string", "description": "Asset", "name": "asset", "in": "query"},
                    {"type": "integer", "description": "Maximum number of reports", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/model.Report"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/reports/{reportID}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["reports"],
                "summary": "Get a report",
                "parameters": [{"type": "string", "description": "Report ID", "name": "reportID", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.Report"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "app.Job": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "type": {"type": "string", "example": "cycle"},
                "target": {"$ref": "#/definitions/model.Target"},
                "cycle_id": {"type": "string"},
                "status": {"type": "string", "enum": ["pending", "running", "done", "failed", "canceled"]},
                "error": {"type": "string"},
                "result": {"$ref": "#/definitions/model.CycleStatus"},
                "started_at": {"type": "string", "format": "date-time"},
                "ended_at": {"type": "string", "format": "date-time"}
            }
        },
        "model.Target": {
            "type": "object",
            "properties": {
                "platform": {"type": "string", "example": "hackerone"},
                "program": {"type": "string", "example": "acme"},
                "scope": {"type": "string", "example": "*.acme.com"},
                "priority": {"type": "integer", "example": 8}
            }
        },
        "model.CycleStatus": {
            "type": "object",
            "properties": {
                "cycle_id": {"type": "string"},
                "phase": {"type": "string", "enum": ["idle", "discovering", "scanning"]},
                "target": {"$ref": "#/definitions/model.Target"},
                "started_at": {"type": "string", "format": "date-time"},
                "updated_at": {"type": "string", "format": "date-time"},
                "finished_at": {"type": "string", "format": "date-time"},
                "assets_total": {"type": "integer"},
                "assets_done": {"type": "integer"},
                "last_error": {"type": "string"}
            }
        },
        "model.AggregatedFindings": {
            "type": "object",
            "properties": {
                "asset": {"type": "string"},
                "combined_text": {"type": "string"},
                "verdict": {"type": "string"},
                "priority_score": {"type": "integer", "minimum": 0, "maximum": 10},
                "bounty_estimate": {"type": "number"},
                "adapters": {"type": "array", "items": {"type": "string"}}
            }
        },
        "model.Report": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "asset": {"type": "string"},
                "target": {"$ref": "#/definitions/model.Target"},
                "title": {"type": "string"},
                "status": {"type": "string", "enum": ["pending", "critical", "submitted", "submission_failed"]},
                "findings": {"$ref": "#/definitions/model.AggregatedFindings"},
                "fingerprint": {"type": "string"},
                "submission_note": {"type": "string"},
                "submission_ref": {"type": "string"},
                "attempts": {"type": "integer"},
                "created_at": {"type": "string", "format": "date-time"},
                "updated_at": {"type": "string", "format": "date-time"}
            }
        },
        "server.StartCycleRequest": {
            "type": "object",
            "properties": {
                "platform": {"type": "string", "example": "hackerone"},
                "program": {"type": "string", "example": "acme"},
                "scope": {"type": "string", "example": "*.acme.com"},
                "priority": {"type": "integer", "example": 8}
            }
        },
        "server.HealthResponse": {
            "type": "object",
            "properties": {"status": {"type": "string", "example": "ok"}}
        },
        "server.StatsResponse": {
            "type": "object",
            "properties": {
                "counters": {"type": "object", "additionalProperties": {"type": "integer"}},
                "dedup_degraded": {"type": "boolean", "example": false}
            }
        },
        "server.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string", "example": "not found"}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Hunter API",
	Description:      "Control and inspection surface of the hunter asset processing pipeline.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
