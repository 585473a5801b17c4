package httpapi

import "net/http"

// apiKeyHeader — заголовок, в котором клиент передаёт ключ.
const apiKeyHeader = "x-api-key"

// APIKeyGate пропускает GET без проверки (публичное чтение для
// read-only интеграций), остальные методы требуют совпадения ключа.
// Не настроенный на сервере ключ — ошибка конфигурации, а не клиента.
func APIKeyGate(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}
			if apiKey == "" {
				writeErrorCode(w, http.StatusInternalServerError, "API Key not configured on server")
				return
			}
			if r.Header.Get(apiKeyHeader) != apiKey {
				writeErrorCode(w, http.StatusUnauthorized, "API Key is invalid")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
