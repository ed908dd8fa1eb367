// Package docs registers the OpenAPI document served under /swagger.
// Regenerate with: swag init --v3.1 -g cmd/server/main.go -o docs
package docs

import "github.com/swaggo/swag/v2"

const docTemplate = `{
    "openapi": "3.1.0",
    "info": {
        "title": "{{.Title}}",
        "description": "{{escape .Description}}",
        "version": "{{.Version}}"
    },
    "servers": [{"url": "{{.BasePath}}"}],
    "tags": [
        {"name": "stock-units"},
        {"name": "ledger"},
        {"name": "reservations"},
        {"name": "products"},
        {"name": "sync-tasks"},
        {"name": "sweeper"},
        {"name": "system"}
    ],
    "paths": {
        "/stock-units": {
            "post": {"operationId": "createStockUnit", "tags": ["stock-units"], "summary": "Create a stock unit", "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "409": {"description": "Conflict"}}},
            "get": {"operationId": "listStockUnits", "tags": ["stock-units"], "summary": "List stock units", "responses": {"200": {"description": "OK"}}}
        },
        "/stock-units/low-stock": {
            "get": {"operationId": "listLowStockUnits", "tags": ["stock-units"], "summary": "List stock units at or below their threshold", "responses": {"200": {"description": "OK"}}}
        },
        "/stock-units/{id}": {
            "get": {"operationId": "getStockUnit", "tags": ["stock-units"], "summary": "Get a stock unit", "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/stock-units/{id}/retire": {
            "post": {"operationId": "retireStockUnit", "tags": ["stock-units"], "summary": "Retire a stock unit", "responses": {"200": {"description": "OK"}, "422": {"description": "Unprocessable Entity"}}}
        },
        "/stock-units/{id}/availability": {
            "get": {"operationId": "getStockUnitAvailability", "tags": ["stock-units"], "summary": "Get on-hand, reserved and available quantities", "responses": {"200": {"description": "OK"}}}
        },
        "/stock-units/{id}/ledger": {
            "post": {"operationId": "appendLedgerEntry", "tags": ["ledger"], "summary": "Append a ledger entry", "responses": {"201": {"description": "Created"}, "422": {"description": "Unprocessable Entity"}, "503": {"description": "Service Unavailable"}}},
            "get": {"operationId": "listLedgerEntries", "tags": ["ledger"], "summary": "Ledger history of a stock unit", "responses": {"200": {"description": "OK"}}}
        },
        "/stock-units/{id}/on-hand-at": {
            "get": {"operationId": "getOnHandAt", "tags": ["ledger"], "summary": "On-hand quantity at a point in time", "responses": {"200": {"description": "OK"}}}
        },
        "/stock-units/{id}/verify": {
            "post": {"operationId": "verifyStockUnit", "tags": ["ledger"], "summary": "Recompute on-hand from the ledger and compare", "responses": {"200": {"description": "OK"}, "500": {"description": "Integrity violation"}}}
        },
        "/reservations": {
            "post": {"operationId": "createReservation", "tags": ["reservations"], "summary": "Reserve stock", "responses": {"201": {"description": "Created"}, "422": {"description": "Insufficient stock"}}},
            "get": {"operationId": "listReservations", "tags": ["reservations"], "summary": "List reservations", "responses": {"200": {"description": "OK"}}}
        },
        "/reservations/{id}": {
            "get": {"operationId": "getReservation", "tags": ["reservations"], "summary": "Get a reservation", "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/reservations/{id}/confirm": {
            "post": {"operationId": "confirmReservation", "tags": ["reservations"], "summary": "Confirm a reservation", "responses": {"200": {"description": "OK"}, "422": {"description": "Invalid state"}}}
        },
        "/reservations/{id}/release": {
            "post": {"operationId": "releaseReservation", "tags": ["reservations"], "summary": "Release a reservation", "responses": {"200": {"description": "OK"}, "422": {"description": "Invalid state"}}}
        },
        "/products": {
            "get": {"operationId": "listProducts", "tags": ["products"], "summary": "List canonical products", "responses": {"200": {"description": "OK"}}}
        },
        "/products/merge": {
            "post": {"operationId": "mergeProducts", "tags": ["products"], "summary": "Merge incoming source records", "responses": {"200": {"description": "OK"}}}
        },
        "/products/relink": {
            "post": {"operationId": "relinkSourceRecord", "tags": ["products"], "summary": "Move a source record to another product", "responses": {"200": {"description": "OK"}}}
        },
        "/products/{id}": {
            "get": {"operationId": "getProduct", "tags": ["products"], "summary": "Get a canonical product", "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/products/{id}/reconcile": {
            "post": {"operationId": "reconcileProduct", "tags": ["products"], "summary": "Reconcile one product", "responses": {"200": {"description": "OK"}}}
        },
        "/products/{id}/push": {
            "post": {"operationId": "pushProduct", "tags": ["products"], "summary": "Enqueue sync tasks for a product", "responses": {"202": {"description": "Accepted"}}}
        },
        "/reconcile": {
            "post": {"operationId": "reconcileAll", "tags": ["products"], "summary": "Reconcile every product", "responses": {"200": {"description": "OK"}}}
        },
        "/platforms/pull": {
            "post": {"operationId": "pullPlatforms", "tags": ["products"], "summary": "Pull listings from every enabled marketplace", "responses": {"200": {"description": "OK"}, "422": {"description": "No platform configured"}}}
        },
        "/sync-tasks": {
            "get": {"operationId": "listSyncTasks", "tags": ["sync-tasks"], "summary": "List sync tasks", "responses": {"200": {"description": "OK"}}}
        },
        "/sync-tasks/{id}": {
            "get": {"operationId": "getSyncTask", "tags": ["sync-tasks"], "summary": "Get a sync task", "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/sync-tasks/{id}/retry": {
            "post": {"operationId": "retrySyncTask", "tags": ["sync-tasks"], "summary": "Retry a failed sync task", "responses": {"202": {"description": "Accepted"}, "422": {"description": "Invalid state"}}}
        },
        "/sweeper/status": {
            "get": {"operationId": "getSweeperStatus", "tags": ["sweeper"], "summary": "Expiry sweeper status", "responses": {"200": {"description": "OK"}}}
        },
        "/sweeper/run": {
            "post": {"operationId": "runSweeper", "tags": ["sweeper"], "summary": "Run the expiry sweeper now", "responses": {"202": {"description": "Accepted"}, "409": {"description": "Already running"}}}
        },
        "/system/info": {
            "get": {"operationId": "getSystemSystemInfo", "tags": ["system"], "summary": "Get system information", "responses": {"200": {"description": "OK"}}}
        },
        "/system/ping": {
            "get": {"operationId": "pingSystem", "tags": ["system"], "summary": "Ping the API", "responses": {"200": {"description": "OK"}}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Stocksync API",
	Description:      "Multi-channel inventory ledger, reservations and marketplace sync",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
