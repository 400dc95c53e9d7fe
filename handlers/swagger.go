package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers the Swagger UI and the OpenAPI document.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>collabtext API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// OpenAPI document for the REST surface. Frames exchanged on /ws are not described.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "collabtext", "version": "v1.0.0" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer", "bearerFormat": "JWT" } },
    "schemas": {
      "Credentials": { "type": "object", "properties": { "username": {"type":"string"}, "password": {"type":"string"} } },
      "User": { "type": "object", "properties": { "id": {"type":"integer"}, "username": {"type":"string"}, "role": {"type":"object","properties":{"id":{"type":"integer"},"name":{"type":"string"}}} } },
      "Document": { "type": "object", "properties": { "id": {"type":"integer"}, "name": {"type":"string"}, "creator": {"$ref":"#/components/schemas/User"} } },
      "DocumentUpdate": { "type": "object", "properties": { "id": {"type":"integer"}, "name": {"type":"string"}, "content": {"type":"string"}, "creator": {"type":"string"} } },
      "RenameRequest": { "type": "object", "properties": { "id": {"type":"integer"}, "newName": {"type":"string"} } }
    }
  },
  "security": [ { "bearer": [] } ],
  "paths": {
    "/api/auth/registration": {
      "post": { "summary": "Register and receive a token in the Authorization header", "security": [],
        "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/Credentials"} } } },
        "responses": { "200": { "description": "registered user" }, "401": { "description": "invalid input or username taken" } } }
    },
    "/api/auth/authentication": {
      "post": { "summary": "Log in and receive a token in the Authorization header", "security": [],
        "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/Credentials"} } } },
        "responses": { "200": { "description": "authenticated user" }, "401": { "description": "bad credentials" } } }
    },
    "/api/auth/validation": {
      "get": { "summary": "Check a token against the calling principal",
        "parameters": [ { "name": "token", "in": "query", "required": true, "schema": {"type":"string"} } ],
        "responses": { "200": { "description": "true or false" } } }
    },
    "/api/auth/logout": { "post": { "summary": "Revoke the presented token", "responses": { "200": { "description": "logged out" } } } },
    "/api/userInfo": { "get": { "summary": "Current user", "responses": { "200": { "description": "user" }, "404": { "description": "unknown user" } } } },
    "/api/listDocuments": { "get": { "summary": "List documents", "responses": { "200": { "description": "documents" } } } },
    "/api/getDocument/{id}": { "get": { "summary": "Document snapshot", "responses": { "200": { "description": "DocumentUpdate" }, "404": { "description": "not found" } } } },
    "/api/renameDocument": { "post": { "summary": "Rename a document", "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/RenameRequest"} } } }, "responses": { "200": { "description": "echoed request" }, "404": { "description": "not found" } } } },
    "/api/newDocument": { "post": { "summary": "Create a document", "responses": { "200": { "description": "Document" }, "404": { "description": "unknown creator" } } } },
    "/api/newDocument/{name}": { "post": { "summary": "Create a document owned by the caller", "responses": { "200": { "description": "Document" } } } },
    "/api/deleteDocument/{id}": { "delete": { "summary": "Delete a document", "responses": { "200": { "description": "deleted id" }, "404": { "description": "not found" } } } },
    "/api/downloadTxt/{id}": { "get": { "summary": "Download the body as text/plain", "responses": { "200": { "description": "attachment" }, "404": { "description": "not found" } } } },
    "/api/activeUsers/{id}": { "get": { "summary": "Usernames viewing a document", "responses": { "200": { "description": "usernames" } } } },
    "/ws": { "get": { "summary": "Websocket upgrade for live editing", "security": [], "responses": { "101": { "description": "switching protocols" }, "401": { "description": "invalid token" } } } },
    "/health": { "get": { "summary": "Liveness check", "security": [], "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "security": [], "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
