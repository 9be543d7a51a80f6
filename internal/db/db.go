package db

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/curaious/teamboard/internal/config"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

func NewConn(conf *config.Config) *sqlx.DB {
	slog.Info("Connecting to database")

	// Connect to database
	db, err := sqlx.Open("postgres", conf.DSN())
	if err != nil {
		log.Fatal(err)
	}
	err = db.Ping()
	if err != nil {
		log.Fatalln("Unable to connect to database", err.Error())
	}

	slog.Info("Connected to database")

	return db
}

// NewRedisClient connects to redis and verifies the connection with a ping.
func NewRedisClient(conf *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", conf.REDIS_HOST, conf.REDIS_PORT),
		DB:       conf.REDIS_DB,
		Username: conf.REDIS_USERNAME,
		Password: conf.REDIS_PASSWORD,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("Connected to redis", slog.String("host", conf.REDIS_HOST), slog.String("port", conf.REDIS_PORT))

	return client, nil
}
