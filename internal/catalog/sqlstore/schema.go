package sqlstore

// CalibreSchema is the subset of Calibre's metadata.db the store reads. A
// PostgreSQL mirror uses the same table and column names.
const CalibreSchema = `
CREATE TABLE IF NOT EXISTS books (
	id      INTEGER PRIMARY KEY,
	title   TEXT NOT NULL DEFAULT 'Unknown',
	sort    TEXT,
	pubdate TEXT,
	uuid    TEXT
);
CREATE TABLE IF NOT EXISTS authors (
	id   INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	sort TEXT
);
CREATE TABLE IF NOT EXISTS books_authors_link (
	id     INTEGER PRIMARY KEY,
	book   INTEGER NOT NULL,
	author INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS publishers (
	id   INTEGER PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS books_publishers_link (
	id        INTEGER PRIMARY KEY,
	book      INTEGER NOT NULL,
	publisher INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS tags (
	id   INTEGER PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS books_tags_link (
	id   INTEGER PRIMARY KEY,
	book INTEGER NOT NULL,
	tag  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS series (
	id   INTEGER PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS books_series_link (
	id     INTEGER PRIMARY KEY,
	book   INTEGER NOT NULL,
	series INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS identifiers (
	id   INTEGER PRIMARY KEY,
	book INTEGER NOT NULL,
	type TEXT NOT NULL DEFAULT 'isbn',
	val  TEXT NOT NULL
);
`
