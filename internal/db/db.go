package db

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"inbox-service/internal/config"
)

// Connect initializes the database connection and runs migrations.
func Connect(cfg config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db, cfg.PreferenceSchema); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sqlx.DB, schema config.PreferenceSchema) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS threads (
            id SERIAL PRIMARY KEY,
            kind TEXT NOT NULL CHECK (kind IN ('connection', 'trip')),
            scope_id INT NOT NULL,
            created_at TIMESTAMPTZ DEFAULT NOW(),
            UNIQUE(kind, scope_id)
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            id SERIAL PRIMARY KEY,
            thread_id INT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
            sender_id INT NOT NULL,
            body TEXT NOT NULL,
            removed BOOLEAN DEFAULT FALSE,
            created_at TIMESTAMPTZ DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS messages_thread_order ON messages (thread_id, created_at, id);`,
		`CREATE TABLE IF NOT EXISTS reactions (
            message_id INT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            reactor_id INT NOT NULL,
            emoji TEXT NOT NULL,
            created_at TIMESTAMPTZ DEFAULT NOW(),
            PRIMARY KEY(message_id, reactor_id, emoji)
        );`,
	}

	// The participant table and its preference columns are optional per
	// deployment. The preference controller discovers what is missing at
	// call time and falls back to the device-local store.
	switch schema {
	case config.SchemaFull:
		migrations = append(migrations, `CREATE TABLE IF NOT EXISTS thread_participants (
            thread_id INT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
            user_id INT NOT NULL,
            last_read_at TIMESTAMPTZ,
            archived_at TIMESTAMPTZ,
            muted_until TIMESTAMPTZ,
            pinned_at TIMESTAMPTZ,
            PRIMARY KEY(thread_id, user_id)
        );`)
	case config.SchemaMinimal:
		migrations = append(migrations, `CREATE TABLE IF NOT EXISTS thread_participants (
            thread_id INT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
            user_id INT NOT NULL,
            last_read_at TIMESTAMPTZ,
            PRIMARY KEY(thread_id, user_id)
        );`)
	case config.SchemaNone:
		// no participant table at all
	default:
		return fmt.Errorf("unknown preference schema %q", schema)
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	log.Printf("database migrations applied (preference schema: %s)", schema)
	return nil
}
