package storage

const schema = `
-- Decks group the cards of one user.
CREATE TABLE IF NOT EXISTS decks (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    name TEXT NOT NULL,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decks_user ON decks(user_id);

-- Sources track where a deck's cards are imported from, either a local directory or a git repository.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    deck_id TEXT NOT NULL,
    path TEXT NOT NULL,
    type TEXT NOT NULL DEFAULT 'local',
    last_scanned TEXT,

    UNIQUE(user_id, path),
    FOREIGN KEY(deck_id) REFERENCES decks(id) ON DELETE CASCADE
);

-- Cards carry their content and SM-2 scheduling state. version guards against stale writes.
CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    deck_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    hash TEXT NOT NULL DEFAULT '',
    question TEXT NOT NULL,
    answer TEXT NOT NULL DEFAULT '',
    context TEXT NOT NULL DEFAULT '',
    ease_factor REAL NOT NULL DEFAULT 2.5 CHECK (ease_factor >= 1.3),
    interval_days INTEGER NOT NULL DEFAULT 0 CHECK (interval_days >= 0),
    repetition_count INTEGER NOT NULL DEFAULT 0 CHECK (repetition_count >= 0),
    next_review_date TEXT NOT NULL, -- YYYY-MM-DD
    last_reviewed_at TEXT,
    learning_status TEXT NOT NULL DEFAULT 'new', -- new, learning, review, learned
    correct_count INTEGER NOT NULL DEFAULT 0,
    version INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL,

    FOREIGN KEY(deck_id) REFERENCES decks(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_cards_deck_due ON cards(deck_id, next_review_date);
CREATE INDEX IF NOT EXISTS idx_cards_deck_status ON cards(deck_id, learning_status, created_at);
CREATE INDEX IF NOT EXISTS idx_cards_user_status ON cards(user_id, learning_status);
CREATE UNIQUE INDEX IF NOT EXISTS idx_cards_deck_hash ON cards(deck_id, hash) WHERE hash <> '';

-- Lessons are saved deck groups with their own daily new-card limit.
CREATE TABLE IF NOT EXISTS lessons (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    deck_ids TEXT NOT NULL, -- JSON array
    daily_new_cards_limit INTEGER NOT NULL DEFAULT 20,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_lessons_user ON lessons(user_id, created_at);

-- At most one unended review session per user and deck set.
CREATE TABLE IF NOT EXISTS review_sessions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    deck_ids TEXT NOT NULL, -- JSON array
    deck_key TEXT NOT NULL,
    started_at TEXT NOT NULL,
    ended_at TEXT,
    cards_reviewed INTEGER NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_review_sessions_active
    ON review_sessions(user_id, deck_key) WHERE ended_at IS NULL;

-- At most one unended daily session per user and calendar day.
CREATE TABLE IF NOT EXISTS daily_sessions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    lesson_id TEXT,
    deck_ids TEXT NOT NULL, -- JSON array
    day TEXT NOT NULL, -- YYYY-MM-DD
    new_cards_limit INTEGER NOT NULL,
    started_at TEXT NOT NULL,
    ended_at TEXT,
    cards_studied INTEGER NOT NULL DEFAULT 0,
    cards_learned INTEGER NOT NULL DEFAULT 0,
    new_cards_today INTEGER NOT NULL DEFAULT 0,
    review_cards_today INTEGER NOT NULL DEFAULT 0,

    FOREIGN KEY(lesson_id) REFERENCES lessons(id) ON DELETE SET NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_daily_sessions_active
    ON daily_sessions(user_id, day) WHERE ended_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_daily_sessions_user_day ON daily_sessions(user_id, day);

-- Review records are append-only history used for statistics.
CREATE TABLE IF NOT EXISTS review_records (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    card_id TEXT NOT NULL,
    session_id TEXT NOT NULL,
    session_kind TEXT NOT NULL, -- review, daily
    rating TEXT NOT NULL,
    was_new INTEGER NOT NULL DEFAULT 0,
    prior_status TEXT NOT NULL,
    graduated INTEGER NOT NULL DEFAULT 0,
    reviewed_at TEXT NOT NULL,
    day TEXT NOT NULL -- YYYY-MM-DD
);
CREATE INDEX IF NOT EXISTS idx_review_records_user_day ON review_records(user_id, day);
CREATE INDEX IF NOT EXISTS idx_review_records_session ON review_records(session_id);
`
