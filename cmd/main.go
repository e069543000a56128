package main

import (
	"lighthouse-api/app"
)

// @title           Lighthouse Admin API
// @version         1.0
// @description     Administration API for the Universal Lighthouse donation platform.

// @contact.name   API Support
// @contact.email  support@example.com

// @host      localhost:3000
// @BasePath  /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	app.Run()
}
