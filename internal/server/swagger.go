package server

//go:generate swag init -g internal/server/server.go -o internal/server/docs

// @title Hunter API
// @version 0.1
// @description Control and inspection surface of the hunter asset processing pipeline.
// @contact.name Hunter Maintainers
// @contact.url https://github.com/raysh454/hunter
// @BasePath /
