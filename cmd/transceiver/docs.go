package main

//go:generate swag init -g cmd/transceiver/main.go -o docs

// @title           Signal Transceiver API
// @version         1.0.0
// @description     Strategy-scoped signal ledger with cursor-based subscription polling.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey APIKey
// @in header
// @name X-API-Key
// @securityDefinitions.apikey ClientKey
// @in header
// @name X-Client-Key
