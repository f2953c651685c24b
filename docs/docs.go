// Package docs holds the swagger document served at /swagger.
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
        "/health": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "health"
                ],
                "summary": "Service health",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handlers.HealthResponse"
                        }
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {
                            "$ref": "#/definitions/handlers.HealthResponse"
                        }
                    }
                }
            }
        },
        "/api/health/proxy": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "health"
                ],
                "summary": "Proxy health",
                "description": "Sends one HEAD request through the configured proxy without retries",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/http.ProxyStatus"
                        }
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {
                            "$ref": "#/definitions/http.ProxyStatus"
                        }
                    }
                }
            }
        },
        "/api/providers": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "tiles"
                ],
                "summary": "List tile providers",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handlers.ListProvidersResponse"
                        }
                    }
                }
            }
        },
        "/api/tiles/estimate": {
            "post": {
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "tiles"
                ],
                "summary": "Estimate tile count and disk usage",
                "parameters": [
                    {
                        "description": "Area and zoom levels",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/handlers.EstimateRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/tiles.Estimate"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/handlers.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/api/tasks": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "tasks"
                ],
                "summary": "List tasks",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handlers.ListTasksResponse"
                        }
                    },
                    "500": {
                        "description": "Internal Server Error",
                        "schema": {
                            "$ref": "#/definitions/handlers.ErrorResponse"
                        }
                    }
                }
            },
            "post": {
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "tasks"
                ],
                "summary": "Create a task",
                "parameters": [
                    {
                        "description": "Task definition",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/handlers.CreateTaskRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/types.Task"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/handlers.ErrorResponse"
                        }
                    },
                    "500": {
                        "description": "Internal Server Error",
                        "schema": {
                            "$ref": "#/definitions/handlers.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/api/tasks/events": {
            "get": {
                "produces": [
                    "text/event-stream"
                ],
                "tags": [
                    "tasks"
                ],
                "summary": "Stream task updates",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/types.Task"
                            }
                        }
                    }
                }
            }
        },
        "/api/tasks/{id}": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "tasks"
                ],
                "summary": "Get a task",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Task ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/types.Task"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/handlers.ErrorResponse"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/handlers.ErrorResponse"
                        }
                    }
                }
            },
            "patch": {
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "tasks"
                ],
                "summary": "Update a task",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Task ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Fields to change",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/handlers.UpdateTaskRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/types.Task"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/handlers.ErrorResponse"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/handlers.ErrorResponse"
                        }
                    }
                }
            },
            "delete": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "tasks"
                ],
                "summary": "Delete a task",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Task ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/handlers.ErrorResponse"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/handlers.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/api/tasks/{id}/tiles": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "tasks"
                ],
                "summary": "List ledgered tiles",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Task ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "enum": [
                            "missing",
                            "non-existent"
                        ],
                        "type": "string",
                        "default": "missing",
                        "description": "Ledger kind",
                        "name": "kind",
                        "in": "query"
                    },
                    {
                        "minimum": 0,
                        "type": "integer",
                        "default": 0,
                        "description": "Rows to skip",
                        "name": "offset",
                        "in": "query"
                    },
                    {
                        "maximum": 10000,
                        "minimum": 1,
                        "type": "integer",
                        "default": 1000,
                        "description": "Page size",
                        "name": "limit",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handlers.TaskTilesResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/handlers.ErrorResponse"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/handlers.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/api/tasks/{id}/start": {
            "post": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "actions"
                ],
                "summary": "Start acquisition",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Task ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "202": {
                        "description": "Accepted",
                        "schema": {
                            "$ref": "#/definitions/handlers.ActionResponse"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/handlers.ErrorResponse"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/handlers.ConflictResponse"
                        }
                    }
                }
            }
        },
        "/api/tasks/{id}/verify": {
            "post": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "actions"
                ],
                "summary": "Start verification",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Task ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "202": {
                        "description": "Accepted",
                        "schema": {
                            "$ref": "#/definitions/handlers.ActionResponse"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/handlers.ErrorResponse"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/handlers.ConflictResponse"
                        }
                    }
                }
            }
        },
        "/api/tasks/{id}/redownload": {
            "post": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "actions"
                ],
                "summary": "Start redownload",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Task ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "202": {
                        "description": "Accepted",
                        "schema": {
                            "$ref": "#/definitions/handlers.ActionResponse"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/handlers.ErrorResponse"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/handlers.ConflictResponse"
                        }
                    }
                }
            }
        },
        "/api/tasks/{id}/retry": {
            "post": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "actions"
                ],
                "summary": "Retry a failed task",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Task ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handlers.ActionResponse"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/handlers.ErrorResponse"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/handlers.ConflictResponse"
                        }
                    }
                }
            }
        },
        "/api/tasks/{id}/mark-non-existent": {
            "post": {
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "actions"
                ],
                "summary": "Mark tiles non-existent",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Task ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Tiles to mark",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/handlers.MarkNonExistentRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handlers.ActionResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/handlers.ErrorResponse"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/handlers.ErrorResponse"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/handlers.ConflictResponse"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "handlers.LatLngRequest": {
            "type": "object",
            "properties": {
                "lat": {
                    "type": "number",
                    "maximum": 85.0511,
                    "minimum": -85.0511
                },
                "lng": {
                    "type": "number",
                    "maximum": 180,
                    "minimum": -180
                }
            }
        },
        "handlers.BoundsRequest": {
            "type": "object",
            "required": [
                "ne",
                "sw"
            ],
            "properties": {
                "ne": {
                    "$ref": "#/definitions/handlers.LatLngRequest"
                },
                "sw": {
                    "$ref": "#/definitions/handlers.LatLngRequest"
                }
            }
        },
        "handlers.CreateTaskRequest": {
            "type": "object",
            "required": [
                "bounds",
                "mapType",
                "name",
                "zoomLevels"
            ],
            "properties": {
                "bounds": {
                    "$ref": "#/definitions/handlers.BoundsRequest"
                },
                "concurrency": {
                    "type": "integer",
                    "default": 5,
                    "maximum": 20,
                    "minimum": 1
                },
                "description": {
                    "type": "string",
                    "maxLength": 2000
                },
                "downloadDelay": {
                    "type": "number",
                    "default": 0.2,
                    "maximum": 5,
                    "minimum": 0
                },
                "mapType": {
                    "type": "string",
                    "enum": [
                        "google-satellite",
                        "osm-standard",
                        "osm-topo"
                    ]
                },
                "name": {
                    "type": "string",
                    "maxLength": 255,
                    "minLength": 3
                },
                "start": {
                    "type": "boolean"
                },
                "zoomLevels": {
                    "type": "array",
                    "maxItems": 23,
                    "minItems": 1,
                    "items": {
                        "type": "integer",
                        "maximum": 22,
                        "minimum": 0
                    }
                }
            }
        },
        "handlers.UpdateTaskRequest": {
            "type": "object",
            "properties": {
                "description": {
                    "type": "string",
                    "maxLength": 2000
                },
                "name": {
                    "type": "string",
                    "maxLength": 255,
                    "minLength": 3
                }
            }
        },
        "handlers.EstimateRequest": {
            "type": "object",
            "required": [
                "bounds",
                "zoomLevels"
            ],
            "properties": {
                "bounds": {
                    "$ref": "#/definitions/handlers.BoundsRequest"
                },
                "zoomLevels": {
                    "type": "array",
                    "maxItems": 23,
                    "minItems": 1,
                    "items": {
                        "type": "integer",
                        "maximum": 22,
                        "minimum": 0
                    }
                }
            }
        },
        "handlers.MarkNonExistentRequest": {
            "type": "object",
            "required": [
                "tilesToMark"
            ],
            "properties": {
                "tilesToMark": {
                    "type": "array",
                    "maxItems": 100000,
                    "items": {
                        "$ref": "#/definitions/types.TileCoord"
                    }
                }
            }
        },
        "handlers.ListTasksResponse": {
            "type": "object",
            "properties": {
                "tasks": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/types.Task"
                    }
                },
                "total": {
                    "type": "integer"
                }
            }
        },
        "handlers.TaskTilesResponse": {
            "type": "object",
            "properties": {
                "count": {
                    "description": "Count is the number of tiles in this page",
                    "type": "integer"
                },
                "kind": {
                    "type": "string",
                    "enum": [
                        "missing",
                        "non-existent"
                    ]
                },
                "limit": {
                    "type": "integer"
                },
                "offset": {
                    "type": "integer"
                },
                "taskId": {
                    "type": "integer"
                },
                "tiles": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/types.TileCoord"
                    }
                },
                "total": {
                    "description": "Total is the number of ledger rows of kind",
                    "type": "integer"
                }
            }
        },
        "handlers.ActionResponse": {
            "type": "object",
            "properties": {
                "message": {
                    "type": "string"
                },
                "runId": {
                    "type": "string"
                },
                "task": {
                    "$ref": "#/definitions/types.Task"
                }
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {
                    "type": "string"
                },
                "fields": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/handlers.FieldError"
                    }
                }
            }
        },
        "handlers.FieldError": {
            "type": "object",
            "properties": {
                "field": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                }
            }
        },
        "handlers.ConflictResponse": {
            "type": "object",
            "properties": {
                "error": {
                    "type": "string"
                },
                "missingTiles": {
                    "type": "integer"
                },
                "op": {
                    "type": "string"
                },
                "status": {
                    "type": "string"
                },
                "verificationStatus": {
                    "type": "string"
                }
            }
        },
        "handlers.HealthResponse": {
            "type": "object",
            "properties": {
                "activeRuns": {
                    "type": "integer"
                },
                "database": {
                    "type": "string"
                },
                "status": {
                    "type": "string"
                }
            }
        },
        "handlers.ListProvidersResponse": {
            "type": "object",
            "properties": {
                "providers": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/providers.Provider"
                    }
                }
            }
        },
        "providers.Provider": {
            "type": "object",
            "properties": {
                "mapType": {
                    "type": "string"
                },
                "maxZoom": {
                    "type": "integer"
                },
                "name": {
                    "type": "string"
                },
                "urlTemplate": {
                    "type": "string"
                }
            }
        },
        "http.ProxyStatus": {
            "type": "object",
            "properties": {
                "error": {
                    "type": "string"
                },
                "httpStatus": {
                    "type": "integer"
                },
                "latencyMs": {
                    "type": "integer"
                },
                "proxy": {
                    "type": "string"
                },
                "status": {
                    "type": "string",
                    "enum": [
                        "ok",
                        "error",
                        "disabled"
                    ]
                }
            }
        },
        "tiles.Estimate": {
            "type": "object",
            "properties": {
                "bytes": {
                    "type": "integer"
                },
                "diskUsage": {
                    "type": "string"
                },
                "tileCount": {
                    "type": "integer"
                }
            }
        },
        "types.LatLng": {
            "type": "object",
            "properties": {
                "lat": {
                    "type": "number",
                    "maximum": 90,
                    "minimum": -90
                },
                "lng": {
                    "type": "number",
                    "maximum": 180,
                    "minimum": -180
                }
            }
        },
        "types.Bounds": {
            "type": "object",
            "properties": {
                "ne": {
                    "$ref": "#/definitions/types.LatLng"
                },
                "sw": {
                    "$ref": "#/definitions/types.LatLng"
                }
            }
        },
        "types.TileCoord": {
            "type": "object",
            "properties": {
                "x": {
                    "type": "integer",
                    "minimum": 0
                },
                "y": {
                    "type": "integer",
                    "minimum": 0
                },
                "z": {
                    "type": "integer",
                    "maximum": 22,
                    "minimum": 0
                }
            }
        },
        "types.Task": {
            "type": "object",
            "properties": {
                "bounds": {
                    "$ref": "#/definitions/types.Bounds"
                },
                "completedTiles": {
                    "type": "integer"
                },
                "concurrency": {
                    "type": "integer"
                },
                "createdAt": {
                    "type": "string"
                },
                "description": {
                    "type": "string"
                },
                "downloadDelay": {
                    "type": "number"
                },
                "id": {
                    "type": "integer"
                },
                "mapType": {
                    "type": "string"
                },
                "missingTiles": {
                    "type": "integer"
                },
                "name": {
                    "type": "string"
                },
                "progress": {
                    "type": "integer"
                },
                "status": {
                    "type": "string",
                    "enum": [
                        "queued",
                        "running",
                        "completed",
                        "failed"
                    ]
                },
                "totalTiles": {
                    "type": "integer"
                },
                "updatedAt": {
                    "type": "string"
                },
                "verificationProgress": {
                    "type": "integer"
                },
                "verificationStatus": {
                    "type": "string",
                    "enum": [
                        "none",
                        "running",
                        "completed",
                        "failed"
                    ]
                },
                "verifiedTiles": {
                    "type": "integer"
                },
                "zoomLevels": {
                    "type": "array",
                    "items": {
                        "type": "integer"
                    }
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Tile Service API",
	Description:      "Map tile acquisition: tasks, verification, redownload and live progress.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
