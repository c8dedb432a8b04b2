package db

import (
	"fmt"
)

// Migrate tworzy/aktualizuje schemat bazy.
// Kolejność:
//  1. jeśli products istnieje -> puste source_url na NULL (inaczej unikalny indeks się wywali)
//  2. AutoMigrate
func (h *Handle) Migrate() error {
	gdb := h.DB

	if gdb.Migrator().HasTable(&Product{}) && gdb.Migrator().HasColumn(&Product{}, "source_url") {
		if err := gdb.Model(&Product{}).
			Where("source_url = ?", "").
			Update("source_url", nil).Error; err != nil {
			return fmt.Errorf("normalize empty source_url: %w", err)
		}
	}

	if err := gdb.AutoMigrate(
		&Product{},
		&ProductVersion{},
		&AuditLog{},
		&KV{},
	); err != nil {
		return fmt.Errorf("AutoMigrate error: %w", err)
	}
	return nil
}
