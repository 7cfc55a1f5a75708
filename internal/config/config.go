// Package config загружает настройки процессов из окружения.
//
// Значения берутся из переменных окружения; перед этим можно подгрузить
// .env файл (удобно для локальной разработки). Переменные, уже заданные
// в окружении, .env не перезаписывает.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv подгружает переменные из файлов .env.
// Отсутствие файла не считается ошибкой.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// String возвращает значение переменной или def.
func String(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// Int возвращает целое значение переменной или def, если она не задана или невалидна.
func Int(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Duration разбирает значение вида "2s", "10m".
// Голое число трактуется как секунды.
func Duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}

// Bool возвращает логическое значение переменной или def.
func Bool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Addr возвращает адрес для http.Server из переменной с номером порта.
func Addr(key string, defPort int) string {
	return ":" + strconv.Itoa(Int(key, defPort))
}
