package docs

import "github.com/swaggo/swag"

const docTemplate = `{
  "swagger": "2.0",
  "info": {
    "title": "Restaurant Voice Assistant",
    "description": "Twilio voice webhooks for the phone assistant and the staff reservation API",
    "version": "1.0"
  },
  "basePath": "/",
  "securityDefinitions": {
    "AdminKey": {"type": "apiKey", "in": "header", "name": "X-Admin-Key"}
  },
  "paths": {
    "/healthz": {
      "get": {"tags": ["health"], "summary": "Health check", "produces": ["application/json"],
        "responses": {"200": {"description": "OK"}, "503": {"description": "Storage unavailable"}}}
    },
    "/twilio/voice": {
      "post": {"tags": ["twilio"], "summary": "Incoming call", "consumes": ["application/x-www-form-urlencoded"], "produces": ["text/xml"],
        "parameters": [
          {"name": "CallSid", "in": "formData", "required": true, "type": "string"},
          {"name": "From", "in": "formData", "type": "string"},
          {"name": "To", "in": "formData", "type": "string"}
        ],
        "responses": {"200": {"description": "TwiML"}, "400": {"description": "Invalid webhook payload"}}}
    },
    "/twilio/step": {
      "post": {"tags": ["twilio"], "summary": "Dialogue turn", "consumes": ["application/x-www-form-urlencoded"], "produces": ["text/xml"],
        "parameters": [
          {"name": "CallSid", "in": "formData", "required": true, "type": "string"},
          {"name": "SpeechResult", "in": "formData", "type": "string"},
          {"name": "Digits", "in": "formData", "type": "string"}
        ],
        "responses": {"200": {"description": "TwiML"}, "400": {"description": "Invalid webhook payload"}}}
    },
    "/twilio/status": {
      "post": {"tags": ["twilio"], "summary": "Call status", "consumes": ["application/x-www-form-urlencoded"],
        "parameters": [
          {"name": "CallSid", "in": "formData", "required": true, "type": "string"},
          {"name": "CallStatus", "in": "formData", "required": true, "type": "string"},
          {"name": "CallDuration", "in": "formData", "type": "integer"}
        ],
        "responses": {"204": {"description": "Accepted"}}}
    },
    "/api/reservations": {
      "get": {"tags": ["reservations"], "summary": "List reservations", "security": [{"AdminKey": []}], "produces": ["application/json"],
        "parameters": [
          {"name": "status", "in": "query", "type": "string", "enum": ["pending", "confirmed", "cancelled", "completed", "no_show"]},
          {"name": "date", "in": "query", "type": "string", "format": "date"},
          {"name": "name", "in": "query", "type": "string"},
          {"name": "phone", "in": "query", "type": "string"},
          {"name": "limit", "in": "query", "type": "integer", "minimum": 1, "maximum": 200, "default": 50},
          {"name": "offset", "in": "query", "type": "integer", "minimum": 0}
        ],
        "responses": {"200": {"description": "OK"}, "400": {"description": "Invalid filter"}}}
    },
    "/api/reservations/{id}": {
      "get": {"tags": ["reservations"], "summary": "Reservation details", "security": [{"AdminKey": []}], "produces": ["application/json"],
        "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
        "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Reservation"}}, "404": {"description": "Not found"}}}
    },
    "/api/reservations/{id}/cancel": {
      "post": {"tags": ["reservations"], "summary": "Cancel reservation", "security": [{"AdminKey": []}], "consumes": ["application/json"], "produces": ["application/json"],
        "parameters": [
          {"name": "id", "in": "path", "required": true, "type": "string"},
          {"name": "payload", "in": "body", "schema": {"type": "object", "properties": {"reason": {"type": "string", "maxLength": 500}}}}
        ],
        "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Reservation"}}, "404": {"description": "Not found"}, "409": {"description": "Already cancelled"}}}
    },
    "/api/reservations/validate": {
      "post": {"tags": ["reservations"], "summary": "Validate reservation", "description": "Runs the reservation rules and the capacity check without storing anything.", "security": [{"AdminKey": []}], "consumes": ["application/json"], "produces": ["application/json"],
        "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReservationRequest"}}],
        "responses": {"200": {"description": "Validation result"}, "400": {"description": "Invalid payload"}}}
    },
    "/api/availability": {
      "get": {"tags": ["reservations"], "summary": "Open slots", "security": [{"AdminKey": []}], "produces": ["application/json"],
        "parameters": [
          {"name": "date", "in": "query", "required": true, "type": "string", "format": "date"},
          {"name": "party_size", "in": "query", "type": "integer", "default": 2}
        ],
        "responses": {"200": {"description": "OK"}, "400": {"description": "Invalid date or party size"}}}
    },
    "/api/calls": {
      "get": {"tags": ["calls"], "summary": "List calls", "security": [{"AdminKey": []}], "produces": ["application/json"],
        "parameters": [
          {"name": "limit", "in": "query", "type": "integer", "minimum": 1, "maximum": 200, "default": 50},
          {"name": "offset", "in": "query", "type": "integer", "minimum": 0}
        ],
        "responses": {"200": {"description": "OK"}}}
    },
    "/api/calls/active": {
      "get": {"tags": ["calls"], "summary": "Live calls", "security": [{"AdminKey": []}], "produces": ["application/json"],
        "responses": {"200": {"description": "OK"}}}
    },
    "/api/menu": {
      "get": {"tags": ["menu"], "summary": "Menu", "security": [{"AdminKey": []}], "produces": ["application/json"],
        "responses": {"200": {"description": "OK"}, "404": {"description": "No menu loaded"}}}
    }
  },
  "definitions": {
    "ReservationRequest": {
      "type": "object",
      "required": ["name", "phone", "date", "time"],
      "properties": {
        "name": {"type": "string", "maxLength": 200},
        "phone": {"type": "string", "maxLength": 40},
        "date": {"type": "string", "format": "date"},
        "time": {"type": "string", "example": "19:00"},
        "party_size": {"type": "integer"},
        "notes": {"type": "string", "maxLength": 2000},
        "duration_minutes": {"type": "integer"}
      }
    },
    "Reservation": {
      "type": "object",
      "properties": {
        "id": {"type": "string"},
        "name": {"type": "string"},
        "phone": {"type": "string"},
        "start_at": {"type": "string", "format": "date-time"},
        "duration_minutes": {"type": "integer"},
        "party_size": {"type": "integer"},
        "notes": {"type": "string"},
        "status": {"type": "string"},
        "fingerprint": {"type": "string"},
        "requires_manual_confirmation": {"type": "boolean"},
        "escalation_reason": {"type": "string"},
        "source": {"type": "string"},
        "call_sid": {"type": "string"},
        "cancel_reason": {"type": "string"},
        "cancelled_at": {"type": "string", "format": "date-time"},
        "created_at": {"type": "string", "format": "date-time"},
        "updated_at": {"type": "string", "format": "date-time"}
      }
    }
  }
}`

func init() {
	swag.Register(swag.Name, &s{})
}

type s struct{}

func (s *s) ReadDoc() string {
	return docTemplate
}
