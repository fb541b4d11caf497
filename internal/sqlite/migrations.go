package sqlite

func (s Storage) RunMigrations() error {
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		config_id VARCHAR NOT NULL,
		pair VARCHAR NOT NULL,
		created INTEGER NOT NULL DEFAULT 0,
		preserved INTEGER NOT NULL DEFAULT 0,
		deleted INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		error_detail TEXT NOT NULL DEFAULT "",
		started_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS runs_config_id ON runs (config_id, id)`,
}
