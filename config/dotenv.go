package config

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadDotEnv подгружает .env.local и .env (в таком приоритете).
// godotenv.Load не перезаписывает уже заданные переменные, поэтому окружение процесса главнее.
func LoadDotEnv() []string {
	var loaded []string
	for _, f := range []string{".env.local", ".env"} {
		if _, err := os.Stat(f); err == nil {
			loaded = append(loaded, f)
		}
	}
	if len(loaded) > 0 {
		_ = godotenv.Load(loaded...)
	}
	return loaded
}
