/*
Package cachekit: logging configuration (ambient stack).

Grounded on original_source/cachica/src/cachica/config.py: an env-driven
log level (LOG_LEVEL, default INFO) and a format switch (LOG_FORMAT=json for
structured output, anything else for human-readable text). logrus's
TextFormatter/JSONFormatter pair covers both without hand-rolling either.
*/
package cachekit

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// NewLogger builds a *logrus.Logger configured from the LOG_LEVEL and
// LOG_FORMAT environment variables (§6's collaborator-layer env vars).
func NewLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(strings.ToLower(envOrDefault("LOG_LEVEL", "info")))
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	return log
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
