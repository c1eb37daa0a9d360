package logger

import (
	"os"
	"strings"
)

type Env string

const (
	EnvDev   Env = "dev"
	EnvStage Env = "stage"
	EnvProd  Env = "prod"
)

var envAliases = map[string]Env{
	"prod":           EnvProd,
	"production":     EnvProd,
	"stage":          EnvStage,
	"staging":        EnvStage,
	"preprod":        EnvStage,
	"pre-production": EnvStage,
}

func (e Env) String() string {
	if e == "" {
		return string(EnvDev)
	}
	return string(e)
}

// DetectEnv читает APP_ENV.
func DetectEnv() Env {
	return ParseEnv(os.Getenv("APP_ENV"))
}

// ParseEnv: пустое и неизвестное значение -> dev.
func ParseEnv(raw string) Env {
	if env, ok := envAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return env
	}
	return EnvDev
}
