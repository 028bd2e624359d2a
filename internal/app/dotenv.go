package app

import "github.com/joho/godotenv"

// dotEnvFiles are tried in order; the first one that loads wins. Existing
// environment variables are never overridden.
var dotEnvFiles = []string{".env", ".rlbench.env"}

func loadDotEnv() string {
	for _, envFile := range dotEnvFiles {
		if err := godotenv.Load(envFile); err == nil {
			return envFile
		}
	}
	return ""
}
