package utils

import (
	"fmt"
	"os"
	"strings"
)

// ReadSecret возвращает секрет по имени. Сначала проверяется переменная
// окружения envKey (удобно для локальной разработки), затем файл в
// стандартном пути Docker Secrets.
func ReadSecret(envKey, secretName string) (string, error) {
	if value := strings.TrimSpace(os.Getenv(envKey)); value != "" {
		return value, nil
	}

	filePath := fmt.Sprintf("/run/secrets/%s", secretName)
	secretBytes, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("secret %s is not set and secret file %s is unreadable: %w", envKey, filePath, err)
	}
	secret := strings.TrimSpace(string(secretBytes))
	if secret == "" {
		return "", fmt.Errorf("secret file %s is empty", filePath)
	}
	return secret, nil
}
