package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/sbarendse/sweepscope/pkg/sweepscope"
)

var (
	port           int
	dbPath         string
	allowedOrigins string
)

func init() {
	flag.IntVar(&port, "port", 8080, "HTTP server port")
	flag.StringVar(&dbPath, "db", getEnvOrDefault("SWEEP_DB_PATH", "sweepscope.sqlite3"), "Path to SQLite database")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	_ = godotenv.Load()
	flag.Parse()

	var origins []string
	if allowedOrigins == "*" {
		origins = []string{"*"}
	} else {
		origins = strings.Split(allowedOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
	}

	service, err := sweepscope.NewService(sweepscope.WithDBPath(dbPath))
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	config := &ServerConfig{
		Port:           port,
		DBPath:         dbPath,
		AllowedOrigins: origins,
	}

	server := NewServer(service, config)
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
