package docs

// @title           AddisRide Dispatch API
// @version         1.0
// @description     Trip dispatch service: driver and dispatcher trip creation, offer broadcast over WebSocket, trip lifecycle management, history and earnings statistics.

// @host      localhost:3000
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
