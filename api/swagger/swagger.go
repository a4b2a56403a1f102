package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Canvas LMS Dates API",
        "description": "Assignment date windows, overrides and date-policy validation",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Dates", "description": "Date policy and dry-run validation"},
        {"name": "Assignments", "description": "Assignments and their base date windows"},
        {"name": "Overrides", "description": "Per-audience date overrides"},
        {"name": "GradingPeriods", "description": "Grading periods inside a term"},
        {"name": "Reports", "description": "Asynchronous date report exports"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/courses/{courseId}/date-policy": {
            "get": {
                "tags": ["Dates"],
                "summary": "Describe the date policy for a course",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{courseId}/date-validations": {
            "post": {
                "tags": ["Dates"],
                "summary": "Dry-run validate candidate date windows",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DateValidationRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{courseId}/assignments": {
            "get": {
                "tags": ["Assignments"],
                "summary": "List assignments in a course",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "published", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "sort", "in": "query", "type": "string"},
                    {"name": "order", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Assignments"],
                "summary": "Create assignment",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateAssignmentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Date rule violation", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assignments/{id}": {
            "get": {
                "tags": ["Assignments"],
                "summary": "Get an assignment with its overrides",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assignments/{id}/dates": {
            "patch": {
                "tags": ["Assignments"],
                "summary": "Patch the base date window",
                "description": "Absent fields keep the stored date, blank fields clear it.",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateAssignmentDatesRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Date rule violation", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assignments/{id}/effective-dates": {
            "get": {
                "tags": ["Assignments"],
                "summary": "Resolve the window applying to one audience",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "sectionId", "in": "query", "type": "string"},
                    {"name": "studentId", "in": "query", "type": "string"},
                    {"name": "groupId", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assignments/{id}/overrides": {
            "get": {
                "tags": ["Overrides"],
                "summary": "List overrides on an assignment",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Overrides"],
                "summary": "Create override",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateOverrideRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Date rule violation", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/overrides/{id}": {
            "put": {
                "tags": ["Overrides"],
                "summary": "Update override",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateOverrideRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Date rule violation", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Overrides"],
                "summary": "Delete override",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/terms/{termId}/grading-periods": {
            "get": {
                "tags": ["GradingPeriods"],
                "summary": "List grading periods in a term",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "termId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["GradingPeriods"],
                "summary": "Create grading period",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "termId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateGradingPeriodRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/generate": {
            "post": {
                "tags": ["Reports"],
                "summary": "Enqueue a report export job",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReportRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/{id}/status": {
            "get": {
                "tags": ["Reports"],
                "summary": "Report job status",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/export/{token}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Download a finished report by signed token",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File stream"},
                    "403": {"description": "Invalid or expired token"}
                }
            }
        }
    },
    "definitions": {
        "DateValidationCard": {
            "type": "object",
            "properties": {
                "key": {"type": "string"},
                "dueAt": {"type": "string"},
                "unlockAt": {"type": "string"},
                "lockAt": {"type": "string"},
                "setType": {"type": "string", "enum": ["SECTION", "ADHOC", "GROUP"]},
                "courseSectionId": {"type": "string"},
                "studentIds": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["key"]
        },
        "DateValidationRequest": {
            "type": "object",
            "properties": {
                "cards": {"type": "array", "items": {"$ref": "#/definitions/DateValidationCard"}}
            },
            "required": ["cards"]
        },
        "CreateAssignmentRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "dueAt": {"type": "string"},
                "unlockAt": {"type": "string"},
                "lockAt": {"type": "string"},
                "published": {"type": "boolean"}
            },
            "required": ["title"]
        },
        "UpdateAssignmentDatesRequest": {
            "type": "object",
            "properties": {
                "dueAt": {"type": "string"},
                "unlockAt": {"type": "string"},
                "lockAt": {"type": "string"}
            }
        },
        "CreateOverrideRequest": {
            "type": "object",
            "properties": {
                "setType": {"type": "string", "enum": ["SECTION", "ADHOC", "GROUP"]},
                "courseSectionId": {"type": "string"},
                "groupId": {"type": "string"},
                "studentIds": {"type": "array", "items": {"type": "string"}},
                "title": {"type": "string"},
                "dueAt": {"type": "string"},
                "unlockAt": {"type": "string"},
                "lockAt": {"type": "string"}
            },
            "required": ["setType"]
        },
        "UpdateOverrideRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "courseSectionId": {"type": "string"},
                "studentIds": {"type": "array", "items": {"type": "string"}},
                "dueAt": {"type": "string"},
                "unlockAt": {"type": "string"},
                "lockAt": {"type": "string"}
            }
        },
        "CreateGradingPeriodRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "startAt": {"type": "string"},
                "endAt": {"type": "string"},
                "closeAt": {"type": "string"},
                "weight": {"type": "number"}
            },
            "required": ["title", "startAt", "endAt"]
        },
        "ReportRequest": {
            "type": "object",
            "properties": {
                "type": {"type": "string", "enum": ["course_dates", "validation"]},
                "courseId": {"type": "string"},
                "format": {"type": "string", "enum": ["csv", "pdf"]}
            },
            "required": ["type", "courseId", "format"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "fields": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
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
