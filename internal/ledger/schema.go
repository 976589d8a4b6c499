package ledger

// Data definition language for the two tables plus association table
// described in spec.md §6. Kept as plain SQL strings rather than an ORM's
// declarative model — block-spirit, the one repository in the retrieval
// pack that speaks to a real relational engine, issues its own DDL/DML as
// raw SQL strings against database/sql rather than through a mapper, and
// this ledger follows the same style.
const (
	ddlFiles = `
CREATE TABLE IF NOT EXISTS files (
	id          BIGINT AUTO_INCREMENT PRIMARY KEY,
	relpath     VARCHAR(1024) NOT NULL,
	filename    VARCHAR(255) NOT NULL,
	checksum    VARCHAR(128) NOT NULL,
	size_bytes  BIGINT NOT NULL,
	created_on  DATETIME(6) NOT NULL,
	held_on     DATETIME(6) NULL,
	deleted_on  DATETIME(6) NULL,
	UNIQUE KEY uq_files_identity (relpath(255), filename, checksum)
)`

	ddlBatches = `
CREATE TABLE IF NOT EXISTS transfer_batches (
	id                   BIGINT AUTO_INCREMENT PRIMARY KEY,
	pre_start_time       DATETIME(6) NULL,
	pre_duration_sec     DOUBLE NULL,
	trans_start_time     DATETIME(6) NULL,
	trans_duration_sec   DOUBLE NULL,
	post_start_time      DATETIME(6) NULL,
	post_duration_sec    DOUBLE NULL,
	size_bytes           BIGINT NULL,
	rate_mbytes_per_sec  DOUBLE NULL,
	status               INT NOT NULL,
	err_msg              TEXT NULL
)`

	ddlAttempts = `
CREATE TABLE IF NOT EXISTS file_transfer_attempts (
	files_id BIGINT NOT NULL,
	batch_id BIGINT NOT NULL,
	PRIMARY KEY (files_id, batch_id),
	FOREIGN KEY (files_id) REFERENCES files(id),
	FOREIGN KEY (batch_id) REFERENCES transfer_batches(id)
)`

	dropAttempts = `DROP TABLE IF EXISTS file_transfer_attempts`
	dropBatches  = `DROP TABLE IF EXISTS transfer_batches`
	dropFiles    = `DROP TABLE IF EXISTS files`
)
