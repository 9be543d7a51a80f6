package migrations

import "github.com/jmoiron/sqlx"

func init() {
	m.addMigration(&migration{
		version: "20261001091500",
		up:      mig_20261001091500_activity_logs_up,
		down:    mig_20261001091500_activity_logs_down,
	})
}

func mig_20261001091500_activity_logs_up(tx *sqlx.Tx) error {
	// No foreign keys: the entry recording a project deletion must survive the project.
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS activity_logs (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL,
			project_id UUID NOT NULL,
			task_id UUID,
			title VARCHAR(255) NOT NULL,
			details TEXT NOT NULL DEFAULT '',
			action VARCHAR(50) NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_activity_logs_project_id ON activity_logs(project_id, created_at DESC);
	`)
	return err
}

func mig_20261001091500_activity_logs_down(tx *sqlx.Tx) error {
	_, err := tx.Exec(`DROP TABLE IF EXISTS activity_logs;`)
	return err
}
