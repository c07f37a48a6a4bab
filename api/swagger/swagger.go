package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Maintenance Slot API",
        "description": "Maintenance schedule lifecycle and zone slot allocation",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Schedules", "description": "Maintenance task lifecycle"},
        {"name": "Zones", "description": "Zone registers and slot capacity"},
        {"name": "Reporting", "description": "Reschedule ledger and completion facts"},
        {"name": "Admin", "description": "Operator endpoints"}
    ],
    "paths": {
        "/schedules": {
            "get": {
                "tags": ["Schedules"],
                "summary": "List schedules",
                "parameters": [
                    {"name": "zoneId", "in": "query", "type": "string"},
                    {"name": "equipmentId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "description": "Comma separated statuses"},
                    {"name": "from", "in": "query", "type": "string", "format": "date"},
                    {"name": "to", "in": "query", "type": "string", "format": "date"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Schedules"],
                "summary": "Create one schedule manually",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateScheduleRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate reference, eligibility or capacity conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/bulk-assign": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Import work orders and allocate their first slots",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkAssignRequest"}}
                ],
                "responses": {"200": {"description": "Per-row report", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/schedules/{id}": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Get a schedule with its reschedule history",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/{id}/reschedules": {
            "get": {
                "tags": ["Schedules"],
                "summary": "List the reschedule ledger of one schedule",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/schedules/{id}/transitions": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Apply a lifecycle action",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TransitionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Action not allowed from the current status", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/{id}/move": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Move a schedule to a target date and slot",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MoveScheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Eligibility, capacity or concurrency conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Target date before today", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/zones": {
            "get": {
                "tags": ["Zones"],
                "summary": "List zones",
                "parameters": [{"name": "code", "in": "query", "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/zones/{zoneId}/free-slots": {
            "get": {
                "tags": ["Zones"],
                "summary": "List slot units of a zone with their occupancy",
                "parameters": [
                    {"name": "zoneId", "in": "path", "required": true, "type": "string"},
                    {"name": "from", "in": "query", "required": true, "type": "string", "format": "date"},
                    {"name": "to", "in": "query", "required": true, "type": "string", "format": "date"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/equipment": {
            "get": {
                "tags": ["Zones"],
                "summary": "List equipment",
                "parameters": [
                    {"name": "zoneId", "in": "query", "type": "string"},
                    {"name": "batch", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/reschedules": {
            "get": {
                "tags": ["Reporting"],
                "summary": "List reschedule ledger entries",
                "parameters": [
                    {"name": "zoneId", "in": "query", "type": "string"},
                    {"name": "scheduleId", "in": "query", "type": "string"},
                    {"name": "from", "in": "query", "type": "string", "format": "date"},
                    {"name": "to", "in": "query", "type": "string", "format": "date"},
                    {"name": "open", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/reschedules/export": {
            "get": {
                "tags": ["Reporting"],
                "summary": "Download the reschedule ledger",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]},
                    {"name": "zoneId", "in": "query", "type": "string"},
                    {"name": "from", "in": "query", "type": "string", "format": "date"},
                    {"name": "to", "in": "query", "type": "string", "format": "date"}
                ],
                "responses": {"200": {"description": "File"}}
            }
        },
        "/completion-facts": {
            "get": {
                "tags": ["Reporting"],
                "summary": "Read cached completion facts",
                "parameters": [
                    {"name": "equipmentNumber", "in": "query", "type": "string"},
                    {"name": "refresh", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Upstream unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/daily-tick": {
            "post": {
                "tags": ["Admin"],
                "summary": "Run the daily Planned to Pending promotion",
                "parameters": [
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/DailyTickRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        }
    },
    "definitions": {
        "TransitionRequest": {
            "type": "object",
            "required": ["action"],
            "properties": {
                "action": {"type": "string", "enum": ["VALIDATE_COMPLETED", "VALIDATE_RESCHEDULE", "CANCEL"]},
                "completionDate": {"type": "string", "format": "date"}
            }
        },
        "MoveScheduleRequest": {
            "type": "object",
            "required": ["targetDate", "targetSlot"],
            "properties": {
                "targetDate": {"type": "string", "format": "date"},
                "targetSlot": {"type": "string", "enum": ["SLOT_2300", "SLOT_0100", "SLOT_0330"]},
                "eligibilityOverride": {"type": "boolean"}
            }
        },
        "BulkAssignRow": {
            "type": "object",
            "required": ["equipmentNumber", "originDate", "workOrderRef"],
            "properties": {
                "equipmentNumber": {"type": "string"},
                "originDate": {"type": "string", "format": "date"},
                "workOrderRef": {"type": "string"},
                "referencePlanDate": {"type": "string", "format": "date"},
                "batch": {"type": "string"}
            }
        },
        "BulkAssignRequest": {
            "type": "object",
            "required": ["rows"],
            "properties": {
                "rows": {"type": "array", "items": {"$ref": "#/definitions/BulkAssignRow"}}
            }
        },
        "CreateScheduleRequest": {
            "type": "object",
            "required": ["equipmentNumber", "originDate", "timeSlot", "workOrderRef"],
            "properties": {
                "equipmentNumber": {"type": "string"},
                "originDate": {"type": "string", "format": "date"},
                "timeSlot": {"type": "string", "enum": ["SLOT_2300", "SLOT_0100", "SLOT_0330"]},
                "workOrderRef": {"type": "string"},
                "referencePlanDate": {"type": "string", "format": "date"},
                "batch": {"type": "string"},
                "eligibilityOverride": {"type": "boolean"}
            }
        },
        "DailyTickRequest": {
            "type": "object",
            "properties": {
                "today": {"type": "string", "format": "date"}
            }
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
                "confirmable": {"type": "boolean"}
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
