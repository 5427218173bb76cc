package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "School Intake API",
        "description": "Receives school partnership inquiries and files them as board records, folders, a summary PDF and an email",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Submissions", "description": "Form intake pipeline"},
        {"name": "Files", "description": "Signed downloads from local storage"},
        {"name": "Runs", "description": "Submission ledger for operators"},
        {"name": "Observability", "description": "Health, readiness and metrics"}
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": ["Observability"],
                "summary": "Liveness check",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/ready": {
            "get": {
                "tags": ["Observability"],
                "summary": "Readiness of optional dependencies",
                "responses": {
                    "200": {"description": "Ready", "schema": {"$ref": "#/definitions/ReadinessReport"}},
                    "503": {"description": "Degraded", "schema": {"$ref": "#/definitions/ReadinessReport"}}
                }
            }
        },
        "/metrics": {
            "get": {
                "tags": ["Observability"],
                "summary": "Prometheus metrics",
                "produces": ["text/plain"],
                "responses": {"200": {"description": "Prometheus exposition"}}
            }
        },
        "/api/v1/submissions": {
            "post": {
                "tags": ["Submissions"],
                "summary": "Submit a school partnership inquiry",
                "description": "Only a failure to create the parent record is reported as an error. Every later stage is best effort.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/Submission"}}
                ],
                "responses": {
                    "200": {"description": "Accepted", "schema": {"$ref": "#/definitions/SubmissionResponse"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/SubmissionResponse"}},
                    "502": {"description": "Parent record could not be created", "schema": {"$ref": "#/definitions/SubmissionResponse"}}
                }
            }
        },
        "/api/v1/files/{token}": {
            "get": {
                "tags": ["Files"],
                "summary": "Download a stored file via signed token",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File content"},
                    "404": {"description": "Unknown or expired link", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/admin/runs": {
            "get": {
                "tags": ["Runs"],
                "summary": "List submission runs",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["SUCCEEDED", "FAILED"]},
                    {"name": "school", "in": "query", "type": "string"},
                    {"name": "since", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/admin/runs/{id}": {
            "get": {
                "tags": ["Runs"],
                "summary": "Get one submission run",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/admin/runs/export": {
            "get": {
                "tags": ["Runs"],
                "summary": "Export submission runs",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {"200": {"description": "Export file"}}
            }
        },
        "/api/v1/admin/preview": {
            "post": {
                "tags": ["Runs"],
                "summary": "Preview the summary document for a payload",
                "security": [{"BearerAuth": []}],
                "produces": ["text/html", "application/pdf"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["html", "pdf"]},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/Submission"}}
                ],
                "responses": {"200": {"description": "Rendered document"}}
            }
        },
        "/api/v1/admin/metrics": {
            "get": {
                "tags": ["Observability"],
                "summary": "Pipeline counters as JSON",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        }
    },
    "definitions": {
        "Attachment": {
            "type": "object",
            "required": ["name", "mimeType", "data"],
            "properties": {
                "name": {"type": "string"},
                "mimeType": {"type": "string"},
                "data": {"type": "string", "description": "Base64 content, data URI prefix allowed"}
            }
        },
        "School": {
            "type": "object",
            "required": ["name", "contactEmail"],
            "properties": {
                "name": {"type": "string"},
                "address": {"type": "string"},
                "contactName": {"type": "string"},
                "contactEmail": {"type": "string"},
                "phone": {"type": "string"},
                "calendarText": {"type": "string"},
                "calendarFile": {"$ref": "#/definitions/Attachment"},
                "bellScheduleText": {"type": "string"},
                "bellScheduleFile": {"$ref": "#/definitions/Attachment"},
                "certification": {"type": "string"},
                "notes": {"type": "string"},
                "numberOfTeachers": {"type": "string"}
            }
        },
        "Teacher": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "duties": {"type": "string"},
                "salary": {"type": "string"},
                "schedule": {"type": "string"},
                "startDate": {"type": "string", "format": "date"},
                "endDate": {"type": "string", "format": "date"},
                "instructionalDays": {"type": "string"},
                "gradeLevels": {"type": "array", "items": {"type": "string"}},
                "subjectAreas": {"type": "array", "items": {"type": "string"}},
                "languages": {"type": "array", "items": {"type": "string"}},
                "certification": {"type": "string"},
                "modality": {"type": "string"},
                "scheduleFile": {"$ref": "#/definitions/Attachment"}
            }
        },
        "Submission": {
            "type": "object",
            "properties": {
                "school": {"$ref": "#/definitions/School"},
                "teachers": {"type": "array", "items": {"$ref": "#/definitions/Teacher"}}
            }
        },
        "SubmissionResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "recordId": {"type": "string"},
                "runId": {"type": "string"}
            }
        },
        "ReadinessReport": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "checks": {"type": "object", "additionalProperties": {"type": "string"}},
                "checkedAt": {"type": "string", "format": "date-time"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
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
