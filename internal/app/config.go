package app

import (
	"strings"
	"time"

	"github.com/agenticcms/agenticcms-backend/internal/logger"
	"github.com/agenticcms/agenticcms-backend/internal/utils"
)

type Config struct {
	Port              string
	Environment       string
	JWTSecretKey      string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
	GenerationTimeout time.Duration
	AllowOrigins      []string
}

func LoadConfig(log *logger.Logger) Config {
	port := utils.GetEnv("PORT", "8080", log)
	environment := utils.GetEnv("APP_ENV", "development", log)
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	accessTokenTTLSeconds := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	refreshTokenTTLSeconds := utils.GetEnvAsInt("REFRESH_TOKEN_TTL", 86400, log)
	generationTimeoutSeconds := utils.GetEnvAsInt("GENERATION_TIMEOUT", 300, log)

	rawOrigins := utils.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000,http://localhost:5173", log)
	origins := make([]string, 0)
	for _, o := range strings.Split(rawOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	return Config{
		Port:              port,
		Environment:       environment,
		JWTSecretKey:      jwtSecretKey,
		AccessTokenTTL:    time.Duration(accessTokenTTLSeconds) * time.Second,
		RefreshTokenTTL:   time.Duration(refreshTokenTTLSeconds) * time.Second,
		GenerationTimeout: time.Duration(generationTimeoutSeconds) * time.Second,
		AllowOrigins:      origins,
	}
}
