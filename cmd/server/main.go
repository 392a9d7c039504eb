// cmd/server/main.go
package main

import (
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"flipseven/internal/auth"
	"flipseven/internal/cache"
	"flipseven/internal/database"
	"flipseven/internal/handlers"
	"flipseven/internal/middleware"
)

func main() {
	auth.Init()
	database.ConnectDB()
	if err := cache.ConnectRedis(); err != nil {
		// The historian is optional; games still run without action logging.
		log.Printf("redis unavailable, action logging disabled: %v", err)
		cache.Rdb = nil
	}

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.Heartbeat("/ping"))
	r.Use(middleware.LogMiddleware(logger))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: func() []string {
			if os.Getenv("FLIPSEVEN_ENV") == "production" {
				return strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",")
			}
			return []string{"https://*", "http://*"}
		}(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	srv := handlers.NewGameServer()

	// user endpoints
	r.Post("/user/create", handlers.CreateUserHandler)
	r.Post("/user/login", handlers.LoginHandler)
	r.Post("/user/claim", handlers.ClaimEphemeralHandler)

	// lobby endpoints
	r.Post("/lobby/create", handlers.CreateLobbyHandler(srv))
	r.Get("/lobby/list", handlers.ListLobbiesHandler(srv))
	r.Get("/lobby/{lobby_id}", handlers.GetLobbyHandler(srv))
	r.Get("/lobby/ws/{lobby_id}", handlers.LobbyWSHandler(logger, srv))

	// game endpoints
	r.Get("/game/ws/{game_id}", handlers.GameWSHandler(logger, srv))
	r.Get("/game/state/{game_id}", handlers.GameStateHandler(srv))
	r.Get("/leaderboard", handlers.LeaderboardHandler)

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
