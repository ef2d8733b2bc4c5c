package app

import (
	"time"

	"github.com/citrusqa/bitacora-backend/internal/platform/envutil"
)

type Config struct {
	Port            string
	JWTSecretKey    string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	UploadDir       string
}

func LoadConfig() Config {
	accessTTLSeconds := envutil.Int("ACCESS_TOKEN_TTL", 3600)
	refreshTTLSeconds := envutil.Int("REFRESH_TOKEN_TTL", 604800)
	return Config{
		Port:            envutil.String("PORT", "8080"),
		JWTSecretKey:    envutil.String("JWT_SECRET_KEY", "defaultsecret"),
		AccessTokenTTL:  time.Duration(accessTTLSeconds) * time.Second,
		RefreshTokenTTL: time.Duration(refreshTTLSeconds) * time.Second,
		UploadDir:       envutil.String("UPLOAD_DIR", "uploads"),
	}
}
