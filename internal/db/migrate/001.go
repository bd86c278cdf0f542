package migrate

import (
	"fmt"

	"gorm.io/gorm"
)

func init() {
	RegisterAfterAutoMigration(Migration{
		Version: 1,
		Up:      dropPlaintextAPIKeyColumn,
	})
}

// 001: earlier deployments kept the raw API key in companies.api_key_actual
// next to the hash. Only the hash is used for lookups, so the plaintext
// column is dropped outright.
func dropPlaintextAPIKeyColumn(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("db is nil")
	}

	dialect := db.Dialector.Name()

	// sqlite needs the exact pragma check; gorm HasColumn can false-positive
	hasColumn := func(table, column string) (bool, error) {
		if dialect == "sqlite" {
			var name string
			if err := db.Raw("SELECT name FROM pragma_table_info(?) WHERE name = ? LIMIT 1", table, column).
				Scan(&name).Error; err != nil {
				return false, fmt.Errorf("failed to check sqlite column %s.%s: %w", table, column, err)
			}
			return name == column, nil
		}
		return db.Migrator().HasColumn(table, column), nil
	}

	has, err := hasColumn("companies", "api_key_actual")
	if err != nil {
		return err
	}
	if !has {
		return nil
	}
	if err := db.Migrator().DropColumn("companies", "api_key_actual"); err != nil {
		return fmt.Errorf("failed to drop companies.api_key_actual: %w", err)
	}
	return nil
}
