package main

import (
	_ "github.com/joho/godotenv/autoload" // Autoload .env file.

	"github.com/fespa/contest-api/cmd/app"
)

// @title           FESPA Contest API
// @description     Voting and payment reconciliation API for the talent-contest platform.
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Bearer token
func main() {
	if err := app.Start(); err != nil {
		panic(err)
	}
}
