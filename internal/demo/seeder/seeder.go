package seeder

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id INTEGER PRIMARY KEY,
		country VARCHAR NOT NULL,
		device_type VARCHAR NOT NULL,
		signup_date DATE NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		subscription_id INTEGER PRIMARY KEY,
		user_id INTEGER NOT NULL,
		plan VARCHAR NOT NULL,
		start_date DATE NOT NULL,
		end_date DATE
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		payment_id INTEGER PRIMARY KEY,
		user_id INTEGER NOT NULL,
		amount_usd DOUBLE PRECISION NOT NULL,
		payment_date DATE NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		session_id INTEGER PRIMARY KEY,
		user_id INTEGER NOT NULL,
		activity_type VARCHAR NOT NULL,
		duration_minutes INTEGER NOT NULL,
		session_date DATE NOT NULL
	)`,
}

type Seeder struct {
	db  *sql.DB
	log *slog.Logger
}

func New(db *sql.DB, logger *slog.Logger) (*Seeder, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{db: db, log: logger}, nil
}

// Seed creates the warehouse schema and replaces all table contents with
// the given dataset. Existing rows are removed first so reseeding is
// repeatable.
func (s *Seeder) Seed(ctx context.Context, ds Dataset) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, table := range []string{"sessions", "payments", "subscriptions", "users"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if err := s.insertUsers(ctx, tx, ds.Users); err != nil {
		return err
	}
	if err := s.insertSubscriptions(ctx, tx, ds.Subscriptions); err != nil {
		return err
	}
	if err := s.insertPayments(ctx, tx, ds.Payments); err != nil {
		return err
	}
	if err := s.insertSessions(ctx, tx, ds.Sessions); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed transaction: %w", err)
	}

	s.log.Info("seeded warehouse",
		slog.Int("users", len(ds.Users)),
		slog.Int("subscriptions", len(ds.Subscriptions)),
		slog.Int("payments", len(ds.Payments)),
		slog.Int("sessions", len(ds.Sessions)),
	)
	return nil
}

func (s *Seeder) insertUsers(ctx context.Context, tx *sql.Tx, users []User) error {
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO users (user_id, country, device_type, signup_date) VALUES ($1, $2, $3, $4)")
	if err != nil {
		return fmt.Errorf("prepare users insert: %w", err)
	}
	defer stmt.Close()
	for _, u := range users {
		if _, err := stmt.ExecContext(ctx, u.ID, u.Country, u.DeviceType, dateOnly(u.SignupDate)); err != nil {
			return fmt.Errorf("insert user %d: %w", u.ID, err)
		}
	}
	return nil
}

func (s *Seeder) insertSubscriptions(ctx context.Context, tx *sql.Tx, subs []Subscription) error {
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO subscriptions (subscription_id, user_id, plan, start_date, end_date) VALUES ($1, $2, $3, $4, $5)")
	if err != nil {
		return fmt.Errorf("prepare subscriptions insert: %w", err)
	}
	defer stmt.Close()
	for _, sub := range subs {
		var end any
		if sub.EndDate != nil {
			end = dateOnly(*sub.EndDate)
		}
		if _, err := stmt.ExecContext(ctx, sub.ID, sub.UserID, sub.Plan, dateOnly(sub.StartDate), end); err != nil {
			return fmt.Errorf("insert subscription %d: %w", sub.ID, err)
		}
	}
	return nil
}

func (s *Seeder) insertPayments(ctx context.Context, tx *sql.Tx, payments []Payment) error {
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO payments (payment_id, user_id, amount_usd, payment_date) VALUES ($1, $2, $3, $4)")
	if err != nil {
		return fmt.Errorf("prepare payments insert: %w", err)
	}
	defer stmt.Close()
	for _, p := range payments {
		if _, err := stmt.ExecContext(ctx, p.ID, p.UserID, p.AmountUSD, dateOnly(p.PaymentDate)); err != nil {
			return fmt.Errorf("insert payment %d: %w", p.ID, err)
		}
	}
	return nil
}

func (s *Seeder) insertSessions(ctx context.Context, tx *sql.Tx, sessions []Session) error {
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO sessions (session_id, user_id, activity_type, duration_minutes, session_date) VALUES ($1, $2, $3, $4, $5)")
	if err != nil {
		return fmt.Errorf("prepare sessions insert: %w", err)
	}
	defer stmt.Close()
	for _, sess := range sessions {
		if _, err := stmt.ExecContext(ctx, sess.ID, sess.UserID, sess.ActivityType, sess.DurationMinutes, dateOnly(sess.SessionDate)); err != nil {
			return fmt.Errorf("insert session %d: %w", sess.ID, err)
		}
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
