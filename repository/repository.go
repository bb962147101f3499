// Package repository, veritabanı erişim katmanını tanımlar.
//
// Repository Pattern: veritabanı işlemlerini (CRUD) soyutlayan katman.
// Service katmanı doğrudan SQL yazmaz — repository interface'i üzerinden çalışır.
//
// Neden interface?
// 1. Test: Mock repository yazarak DB olmadan test edebilirsin
// 2. Esneklik: SQLite'tan başka bir store'a geçiş sadece yeni implementasyon ister
// 3. Dependency Inversion: Service, concrete struct'a değil interface'e bağımlı
//
// Her entity için bir çift dosya vardır: <entity>_repository.go (interface) +
// sqlite_<entity>.go (implementasyon). Ortak SQLite yardımcıları bu dosyadadır.
package repository

import (
	"database/sql"
	"errors"
	"strings"
)

// isUniqueViolation, SQLite UNIQUE constraint hatasını kontrol eder.
func isUniqueViolation(err error) bool {
	return err != nil && !errors.Is(err, sql.ErrNoRows) &&
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}
