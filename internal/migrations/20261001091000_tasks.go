package migrations

import "github.com/jmoiron/sqlx"

func init() {
	m.addMigration(&migration{
		version: "20261001091000",
		up:      mig_20261001091000_tasks_up,
		down:    mig_20261001091000_tasks_down,
	})
}

func mig_20261001091000_tasks_up(tx *sqlx.Tx) error {
	// created_by_user_id has no foreign key so tasks outlive the account that created them.
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS tasks (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			title VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			due_date TIMESTAMP WITH TIME ZONE,
			status VARCHAR(20) NOT NULL DEFAULT 'TODO' CHECK (status IN ('TODO', 'IN_PROGRESS', 'DONE')),
			priority VARCHAR(20) NOT NULL DEFAULT 'LOW' CHECK (priority IN ('LOW', 'MEDIUM', 'HIGH')),
			created_by_user_id UUID NOT NULL,
			assigned_to_user_id UUID REFERENCES users(id) ON DELETE SET NULL,
			assigned_by_user_id UUID REFERENCES users(id) ON DELETE SET NULL,
			completed_at TIMESTAMP WITH TIME ZONE,
			is_archived BOOLEAN NOT NULL DEFAULT FALSE,
			archived_at TIMESTAMP WITH TIME ZONE,
			archived_by_user_id UUID REFERENCES users(id) ON DELETE SET NULL,
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
			deleted_at TIMESTAMP WITH TIME ZONE,
			deleted_by_user_id UUID REFERENCES users(id) ON DELETE SET NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_tasks_project_id ON tasks(project_id, created_at DESC);
	`)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_tasks_assigned_to_user_id ON tasks(assigned_to_user_id) WHERE assigned_to_user_id IS NOT NULL;
	`)
	return err
}

func mig_20261001091000_tasks_down(tx *sqlx.Tx) error {
	_, err := tx.Exec(`DROP TABLE IF EXISTS tasks;`)
	return err
}
