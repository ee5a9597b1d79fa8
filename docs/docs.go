package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "schemes": {{ marshal .Schemes }},
    "paths": {
        "/habits": {
            "get": {
                "tags": ["habits"],
                "summary": "List habits",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "Habits with completions and metadata"},
                    "500": {"description": "Failed to load habits"}
                }
            },
            "post": {
                "tags": ["habits"],
                "summary": "Create a habit",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {
                        "in": "body",
                        "name": "habit",
                        "required": true,
                        "schema": {"$ref": "#/definitions/CreateHabitRequest"}
                    }
                ],
                "responses": {
                    "201": {"description": "Habit created"},
                    "400": {"description": "Habit name is required"},
                    "500": {"description": "Failed to save habit"}
                }
            }
        },
        "/habits/{id}": {
            "put": {
                "tags": ["habits"],
                "summary": "Update a habit",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "id", "type": "integer", "required": true},
                    {
                        "in": "body",
                        "name": "fields",
                        "required": true,
                        "schema": {"$ref": "#/definitions/HabitUpdate"}
                    }
                ],
                "responses": {
                    "200": {"description": "Habit updated"},
                    "400": {"description": "Invalid habit ID or field"},
                    "404": {"description": "Habit not found"},
                    "500": {"description": "Failed to save changes"}
                }
            },
            "delete": {
                "tags": ["habits"],
                "summary": "Delete a habit",
                "produces": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "id", "type": "integer", "required": true}
                ],
                "responses": {
                    "200": {"description": "Habit deleted, remaining total returned"},
                    "404": {"description": "Habit not found"}
                }
            }
        },
        "/habits/{id}/toggle": {
            "patch": {
                "tags": ["habits"],
                "summary": "Toggle today's completion",
                "produces": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "id", "type": "integer", "required": true}
                ],
                "responses": {
                    "200": {"description": "Habit toggled"},
                    "404": {"description": "Habit not found"}
                }
            }
        },
        "/stats": {
            "get": {
                "tags": ["stats"],
                "summary": "Habit statistics",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "totalHabits, completedToday, totalStreak, successRate, lastUpdated"}
                }
            }
        },
        "/backup": {
            "post": {
                "tags": ["data"],
                "summary": "Create a backup file",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "Backup file name"},
                    "500": {"description": "Failed to create backup"}
                }
            }
        },
        "/export": {
            "get": {
                "tags": ["data"],
                "summary": "Download the habit document",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "habits-export-<date>.json attachment"}
                }
            }
        },
        "/import": {
            "post": {
                "tags": ["data"],
                "summary": "Replace the habit document",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {
                        "in": "body",
                        "name": "document",
                        "required": true,
                        "schema": {"$ref": "#/definitions/ImportRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "Number of imported habits"},
                    "400": {"description": "Body has no habits array"},
                    "500": {"description": "Failed to save imported data"}
                }
            }
        }
    },
    "definitions": {
        "CreateHabitRequest": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"type": "string", "example": "Read"},
                "description": {"type": "string", "example": "20 pages"},
                "frequency": {"type": "string", "example": "daily"},
                "time": {"type": "string", "example": "evening"}
            }
        },
        "HabitUpdate": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "frequency": {"type": "string"},
                "time": {"type": "string"},
                "completedToday": {"type": "boolean"},
                "streak": {"type": "integer", "minimum": 0}
            }
        },
        "ImportRequest": {
            "type": "object",
            "required": ["habits"],
            "properties": {
                "habits": {"type": "array", "items": {"type": "object"}},
                "completions": {"type": "object"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{"http"},
	Title:            "HabitKeeper API",
	Description:      "Habit tracking backed by a single JSON document",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
