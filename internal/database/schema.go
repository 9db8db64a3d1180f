package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            CHAR(36)     NOT NULL PRIMARY KEY,
		email         VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		role          VARCHAR(16)  NOT NULL DEFAULT 'USER',
		is_active     BOOLEAN      NOT NULL DEFAULT TRUE,
		created_at    DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id    CHAR(36)  NOT NULL,
		token_hash CHAR(64)  NOT NULL UNIQUE,
		expires_at DATETIME  NOT NULL,
		revoked_at DATETIME  NULL,
		created_at DATETIME  NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_refresh_user (user_id),
		CONSTRAINT fk_refresh_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS models (
		id             CHAR(36)     NOT NULL PRIMARY KEY,
		name           VARCHAR(120) NOT NULL,
		price_per_hour BIGINT       NOT NULL,
		is_available   BOOLEAN      NOT NULL DEFAULT TRUE,
		owner_id       CHAR(36)     NOT NULL,
		created_at     DATETIME     NOT NULL,
		updated_at     DATETIME     NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS bookings (
		id            CHAR(36)     NOT NULL PRIMARY KEY,
		model_id      CHAR(36)     NOT NULL,
		requester_id  CHAR(36)     NOT NULL,
		start_at      DATETIME     NOT NULL,
		end_at        DATETIME     NOT NULL,
		quoted_price  BIGINT       NOT NULL,
		notes         VARCHAR(500) NOT NULL DEFAULT '',
		status        VARCHAR(16)  NOT NULL,
		cancel_reason VARCHAR(32)  NOT NULL DEFAULT '',
		version       BIGINT       NOT NULL,
		created_at    DATETIME     NOT NULL,
		updated_at    DATETIME     NOT NULL,
		KEY idx_bookings_model_status (model_id, status, start_at),
		KEY idx_bookings_status_end (status, end_at),
		KEY idx_bookings_requester (requester_id, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema step %d: %w", i+1, err)
		}
	}
	return nil
}
