package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "ShulePay Approvals API",
        "description": "Parental approval workflow for school event payments",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login and session info"},
        {"name": "Approvals", "description": "Parental consent workflow"},
        {"name": "PIN", "description": "Approval PIN management"},
        {"name": "Documents", "description": "Document generation and signing"},
        {"name": "Certificates", "description": "Certificate issuance and verification"},
        {"name": "Letterheads", "description": "School letterhead management"}
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
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user info",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/approvals": {
            "get": {
                "tags": ["Approvals"],
                "summary": "List approvals visible to the caller",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "eventId", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Approvals"],
                "summary": "Request approval",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RequestApprovalRequest"}}
                ],
                "responses": {
                    "200": {"description": "Decided", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already decided"},
                    "423": {"description": "PIN locked"}
                }
            }
        },
        "/approvals/{id}": {
            "get": {
                "tags": ["Approvals"],
                "summary": "Get approval",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/approvals/{id}/reject": {
            "post": {
                "tags": ["Approvals"],
                "summary": "Reject approval",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RejectApprovalRequest"}}
                ],
                "responses": {
                    "200": {"description": "Rejected", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already decided"}
                }
            }
        },
        "/approvals/{id}/can-pay": {
            "get": {
                "tags": ["Approvals"],
                "summary": "Payment eligibility",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/events/{id}/approvals/seed": {
            "post": {
                "tags": ["Approvals"],
                "summary": "Seed pending approvals for an event",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/pins": {
            "put": {
                "tags": ["PIN"],
                "summary": "Set approval PIN",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SetPinRequest"}}
                ],
                "responses": {
                    "204": {"description": "Set"}
                }
            }
        },
        "/pins/verify": {
            "post": {
                "tags": ["PIN"],
                "summary": "Verify approval PIN",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/VerifyPinRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "423": {"description": "PIN locked"}
                }
            }
        },
        "/pins/status": {
            "get": {
                "tags": ["PIN"],
                "summary": "Approval PIN status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/pins/reset": {
            "post": {
                "tags": ["PIN"],
                "summary": "Reset a parent's PIN lockout",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ResetPinRequest"}}
                ],
                "responses": {
                    "204": {"description": "Reset"}
                }
            }
        },
        "/documents": {
            "post": {
                "tags": ["Documents"],
                "summary": "Generate document",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateDocumentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/documents/download": {
            "get": {
                "tags": ["Documents"],
                "summary": "Download finalized artifact",
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "PDF bytes"},
                    "401": {"description": "Invalid or expired token"}
                }
            }
        },
        "/documents/{id}": {
            "get": {
                "tags": ["Documents"],
                "summary": "Get document",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/documents/{id}/signatures": {
            "post": {
                "tags": ["Documents"],
                "summary": "Attach signature",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AttachSignatureRequest"}}
                ],
                "responses": {
                    "200": {"description": "Attached", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Role already signed or document finalized"}
                }
            }
        },
        "/documents/{id}/finalize": {
            "post": {
                "tags": ["Documents"],
                "summary": "Finalize document",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Finalized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Signatures incomplete"}
                }
            }
        },
        "/certificates": {
            "post": {
                "tags": ["Certificates"],
                "summary": "Issue certificate",
                "responses": {
                    "201": {"description": "Issued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/certificates/{id}/revoke": {
            "post": {
                "tags": ["Certificates"],
                "summary": "Revoke certificate",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Revoked"}
                }
            }
        },
        "/verify/{code}": {
            "get": {
                "tags": ["Certificates"],
                "summary": "Public document verification",
                "parameters": [
                    {"name": "code", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schools/{id}/letterheads": {
            "get": {
                "tags": ["Letterheads"],
                "summary": "List letterheads",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Letterheads"],
                "summary": "Upload letterhead",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "file", "in": "formData", "required": true, "type": "file"},
                    {"name": "name", "in": "formData", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schools/{id}/letterheads/{letterheadId}": {
            "delete": {
                "tags": ["Letterheads"],
                "summary": "Delete letterhead",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "letterheadId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Default letterhead", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schools/{id}/letterheads/{letterheadId}/default": {
            "put": {
                "tags": ["Letterheads"],
                "summary": "Set default letterhead",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "letterheadId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Set"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "RequestApprovalRequest": {
            "type": "object",
            "required": ["eventId", "studentId", "method"],
            "properties": {
                "eventId": {"type": "string"},
                "studentId": {"type": "string"},
                "method": {"type": "string", "enum": ["SIGNATURE", "PIN", "BOTH"]},
                "signature": {"$ref": "#/definitions/SignatureInput"},
                "pin": {"type": "string"},
                "notes": {"type": "string"}
            }
        },
        "RejectApprovalRequest": {
            "type": "object",
            "properties": {
                "reason": {"type": "string"}
            }
        },
        "SignatureInput": {
            "type": "object",
            "properties": {
                "points": {"type": "array", "items": {"type": "object"}},
                "imageBase64": {"type": "string"}
            }
        },
        "SetPinRequest": {
            "type": "object",
            "required": ["pin"],
            "properties": {
                "pin": {"type": "string"}
            }
        },
        "VerifyPinRequest": {
            "type": "object",
            "required": ["pin"],
            "properties": {
                "pin": {"type": "string"}
            }
        },
        "ResetPinRequest": {
            "type": "object",
            "required": ["parentId"],
            "properties": {
                "parentId": {"type": "string"}
            }
        },
        "GenerateDocumentRequest": {
            "type": "object",
            "required": ["eventId", "type"],
            "properties": {
                "eventId": {"type": "string"},
                "studentId": {"type": "string"},
                "parentId": {"type": "string"},
                "type": {"type": "string"},
                "title": {"type": "string"},
                "template": {"type": "string"},
                "letterheadId": {"type": "string"},
                "requiredSignatures": {"type": "array", "items": {"type": "string"}}
            }
        },
        "AttachSignatureRequest": {
            "type": "object",
            "required": ["role", "signature"],
            "properties": {
                "role": {"type": "string", "enum": ["PARENT", "ADMIN"]},
                "signature": {"$ref": "#/definitions/SignatureInput"}
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
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
