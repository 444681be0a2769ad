package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE definitions (
				id VARCHAR(64) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				version INT NOT NULL DEFAULT 1,
				steps JSONB NOT NULL,
				links JSONB NOT NULL,
				active BOOLEAN NOT NULL DEFAULT false,
				compliance VARCHAR(50),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deployed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_definitions_active ON definitions(active);
			CREATE INDEX idx_definitions_name ON definitions(name);

			CREATE TABLE instances (
				id VARCHAR(64) PRIMARY KEY,
				definition_id VARCHAR(64) NOT NULL,
				definition_version INT NOT NULL DEFAULT 1,
				status VARCHAR(50) NOT NULL CHECK (status IN ('active', 'completed', 'terminated', 'suspended')),
				active_step_ids JSONB NOT NULL DEFAULT '[]',
				variables JSONB,
				terminate_reason TEXT,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_instances_definition_id ON instances(definition_id);
			CREATE INDEX idx_instances_status ON instances(status);

			-- Append-only audit trail; rows are never updated or deleted.
			CREATE TABLE instance_history (
				seq BIGSERIAL PRIMARY KEY,
				instance_id VARCHAR(64) NOT NULL REFERENCES instances(id) ON DELETE CASCADE,
				step_id VARCHAR(255),
				step_name VARCHAR(255),
				action VARCHAR(50) NOT NULL,
				performer VARCHAR(255),
				comment TEXT,
				recorded_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_instance_history_instance_id ON instance_history(instance_id);

			CREATE TABLE tasks (
				id VARCHAR(64) PRIMARY KEY,
				title VARCHAR(255) NOT NULL,
				instance_id VARCHAR(64) NOT NULL REFERENCES instances(id) ON DELETE CASCADE,
				step_id VARCHAR(255) NOT NULL,
				assignee VARCHAR(255),
				candidate_roles JSONB,
				candidate_groups JSONB,
				due_date TIMESTAMP WITH TIME ZONE NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('pending', 'claimed', 'in_progress', 'completed', 'rejected')),
				priority VARCHAR(20) NOT NULL DEFAULT 'normal',
				data JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_tasks_instance_id ON tasks(instance_id);
			CREATE INDEX idx_tasks_status ON tasks(status);
			CREATE INDEX idx_tasks_due_date ON tasks(due_date);
		`,
	}
}
