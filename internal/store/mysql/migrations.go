package mysql

import "context"

// Schema statements for the ledger tables.  users and refresh_tokens
// live here too so a fresh database can be bootstrapped with one call.
// The two indexes the consistency rules depend on:
//   - payments.transaction_ref UNIQUE: the idempotency guard.
//   - applications (listing_id, tutor_id, active) UNIQUE: one
//     non-withdrawn application per tutor per listing.  active is 1
//     while the application counts against the rule and NULL once
//     withdrawn; MySQL unique indexes ignore NULL, so a withdrawn
//     application frees the slot.
//
// applications carries no foreign key to listings: withdrawing a
// listing deletes its row but marks the applications WITHDRAWN, and
// those rows must survive as the tutors' history.
var migrations = []string{
    `CREATE TABLE IF NOT EXISTS users (
        id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
        email VARCHAR(255) NOT NULL,
        password_hash VARCHAR(255) NOT NULL,
        role VARCHAR(16) NOT NULL,
        is_active TINYINT(1) NOT NULL DEFAULT 1,
        created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
        updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
        PRIMARY KEY (id),
        UNIQUE KEY uq_users_email (email)
    ) ENGINE=InnoDB`,

    `CREATE TABLE IF NOT EXISTS refresh_tokens (
        id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
        user_id BIGINT UNSIGNED NOT NULL,
        token_hash CHAR(64) NOT NULL,
        expires_at DATETIME NOT NULL,
        revoked_at DATETIME NULL,
        created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
        PRIMARY KEY (id),
        KEY idx_refresh_tokens_hash (token_hash),
        CONSTRAINT fk_refresh_tokens_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
    ) ENGINE=InnoDB`,

    `CREATE TABLE IF NOT EXISTS listings (
        id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
        student_id BIGINT UNSIGNED NOT NULL,
        subject VARCHAR(128) NOT NULL,
        class_level VARCHAR(64) NOT NULL,
        location VARCHAR(255) NOT NULL,
        schedule VARCHAR(255) NOT NULL DEFAULT '',
        days_per_week TINYINT UNSIGNED NOT NULL DEFAULT 0,
        salary_cents INT UNSIGNED NOT NULL DEFAULT 0,
        details TEXT NOT NULL,
        status ENUM('PENDING','APPROVED','REJECTED','HIRED') NOT NULL DEFAULT 'PENDING',
        hired_tutor_id BIGINT UNSIGNED NULL,
        created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
        approved_at DATETIME NULL,
        rejected_at DATETIME NULL,
        hired_at DATETIME NULL,
        PRIMARY KEY (id),
        KEY idx_listings_student (student_id),
        KEY idx_listings_status (status),
        CONSTRAINT fk_listings_student FOREIGN KEY (student_id) REFERENCES users (id)
    ) ENGINE=InnoDB`,

    `CREATE TABLE IF NOT EXISTS applications (
        id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
        listing_id BIGINT UNSIGNED NOT NULL,
        tutor_id BIGINT UNSIGNED NOT NULL,
        qualifications TEXT NOT NULL,
        experience TEXT NOT NULL,
        expected_salary_cents INT UNSIGNED NOT NULL DEFAULT 0,
        status ENUM('PENDING','APPROVED','REJECTED','WITHDRAWN') NOT NULL DEFAULT 'PENDING',
        active TINYINT NULL DEFAULT 1,
        checkout_ref VARCHAR(255) NULL,
        applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
        decided_at DATETIME NULL,
        PRIMARY KEY (id),
        UNIQUE KEY uq_applications_listing_tutor (listing_id, tutor_id, active),
        KEY idx_applications_tutor (tutor_id),
        CONSTRAINT fk_applications_tutor FOREIGN KEY (tutor_id) REFERENCES users (id)
    ) ENGINE=InnoDB`,

    `CREATE TABLE IF NOT EXISTS payments (
        id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
        transaction_ref VARCHAR(255) NOT NULL,
        listing_id BIGINT UNSIGNED NOT NULL,
        application_id BIGINT UNSIGNED NOT NULL,
        payer_id BIGINT UNSIGNED NOT NULL,
        payee_id BIGINT UNSIGNED NOT NULL,
        amount_cents BIGINT NOT NULL,
        status ENUM('COMPLETED') NOT NULL DEFAULT 'COMPLETED',
        paid_at DATETIME NOT NULL,
        PRIMARY KEY (id),
        UNIQUE KEY uq_payments_transaction_ref (transaction_ref),
        KEY idx_payments_listing (listing_id),
        KEY idx_payments_payer (payer_id),
        KEY idx_payments_payee (payee_id)
    ) ENGINE=InnoDB`,
}

// Migrate creates the schema if it does not exist.  Statements are
// idempotent, so calling this on every startup is safe.
func (s *Store) Migrate(ctx context.Context) error {
    for _, stmt := range migrations {
        if _, err := s.db.ExecContext(ctx, stmt); err != nil {
            return err
        }
    }
    return nil
}
