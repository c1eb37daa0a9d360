package logger

import (
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// Ключи, общие для всех записей чата.
const (
	KeyRoom = "room"
	KeyUser = "user"
	KeyErr  = "err"
)

func Room(key string) slog.Attr { return slog.String(KeyRoom, key) }

func User(username string) slog.Attr { return slog.String(KeyUser, username) }

// Err — nil превращается в пустой атрибут, который slog пропускает.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyErr, err.Error())
}

// instanceID: если не задан, берём hostname и короткий uuid.
func instanceID(v string) string {
	if v != "" {
		return v
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "chat"
	}
	return host + "-" + uuid.NewString()[:8]
}

func serviceAttrs(cfg Config) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("service", cfg.Service),
		slog.String("env", cfg.Env.String()),
		slog.String("instance_id", cfg.InstanceID),
	}
	if cfg.Version != "" {
		attrs = append(attrs, slog.String("version", cfg.Version))
	}
	return attrs
}
