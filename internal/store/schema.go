package store

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		first_name TEXT NOT NULL,
		grade INTEGER NOT NULL DEFAULT 0,
		age INTEGER NOT NULL DEFAULT 0,
		total_points INTEGER NOT NULL DEFAULT 0,
		current_level INTEGER NOT NULL DEFAULT 1,
		experience_points INTEGER NOT NULL DEFAULT 0,
		streak_days INTEGER NOT NULL DEFAULT 0,
		last_activity_at TEXT,
		proficiency TEXT NOT NULL DEFAULT 'beginner',
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS activities (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		kind TEXT NOT NULL,
		skill_area TEXT NOT NULL DEFAULT '',
		difficulty TEXT NOT NULL DEFAULT 'beginner',
		points_reward INTEGER NOT NULL DEFAULT 0,
		content TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS activity_completions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		student_id TEXT NOT NULL REFERENCES students(id),
		activity_id TEXT NOT NULL REFERENCES activities(id),
		skill_area TEXT NOT NULL DEFAULT '',
		activity_kind TEXT NOT NULL DEFAULT '',
		score REAL NOT NULL,
		points_earned INTEGER NOT NULL DEFAULT 0,
		time_spent_secs INTEGER NOT NULL DEFAULT 0,
		completed INTEGER NOT NULL DEFAULT 0,
		submission TEXT,
		feedback TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_completions_student_skill
		ON activity_completions (student_id, skill_area, created_at)`,
	`CREATE TABLE IF NOT EXISTS skill_progress (
		student_id TEXT NOT NULL REFERENCES students(id),
		skill_area TEXT NOT NULL,
		current_score REAL NOT NULL DEFAULT 0,
		activities_completed INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (student_id, skill_area)
	)`,
	`CREATE TABLE IF NOT EXISTS conversation_sessions (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL REFERENCES students(id),
		activity_id TEXT NOT NULL REFERENCES activities(id),
		scenario TEXT NOT NULL,
		difficulty TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		turn_count INTEGER NOT NULL DEFAULT 0,
		messages TEXT NOT NULL DEFAULT '[]',
		evaluation TEXT,
		points_earned INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		ended_at TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_student
		ON conversation_sessions (student_id, status, updated_at)`,
	`CREATE TABLE IF NOT EXISTS badges (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		criteria TEXT NOT NULL,
		points_cost INTEGER NOT NULL DEFAULT 0,
		rare INTEGER NOT NULL DEFAULT 0,
		active INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS student_badges (
		student_id TEXT NOT NULL REFERENCES students(id),
		badge_id TEXT NOT NULL REFERENCES badges(id),
		earned_at TEXT,
		PRIMARY KEY (student_id, badge_id)
	)`,
	`CREATE TABLE IF NOT EXISTS llm_request_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		purpose TEXT NOT NULL,
		student_id TEXT NOT NULL DEFAULT '',
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		latency_ms INTEGER NOT NULL DEFAULT 0,
		success INTEGER NOT NULL DEFAULT 0,
		error_message TEXT NOT NULL DEFAULT '',
		request_body TEXT NOT NULL DEFAULT '',
		response_body TEXT NOT NULL DEFAULT ''
	)`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%.60s: %w", stmt, err)
		}
	}
	return nil
}
