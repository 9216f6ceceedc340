package database

const schema = `
CREATE TABLE IF NOT EXISTS email_accounts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    email TEXT NOT NULL UNIQUE,
    password TEXT NOT NULL,
    host TEXT NOT NULL,
    port INTEGER NOT NULL DEFAULT 993,
    tls BOOLEAN NOT NULL DEFAULT true,
    enabled BOOLEAN NOT NULL DEFAULT true,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS email_messages (
    message_id TEXT PRIMARY KEY,
    account_id INTEGER NOT NULL REFERENCES email_accounts(id) ON DELETE CASCADE,
    uid INTEGER NOT NULL,
    subject TEXT NOT NULL DEFAULT '',
    from_addr TEXT NOT NULL DEFAULT '',
    to_addr TEXT NOT NULL DEFAULT '',
    date DATETIME NOT NULL,
    snippet TEXT NOT NULL DEFAULT '',
    body_text TEXT NOT NULL DEFAULT '',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(account_id, uid)
);

CREATE TABLE IF NOT EXISTS subject_map (
    subject TEXT PRIMARY KEY,
    group_name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ignored_groups (
    name TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS companies (
    domain TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    hidden BOOLEAN NOT NULL DEFAULT false,
    responsible TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS group_configs (
    name TEXT PRIMARY KEY,
    responsible TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_accounts_enabled ON email_accounts(enabled);
CREATE INDEX IF NOT EXISTS idx_messages_account_date ON email_messages(account_id, date);
CREATE INDEX IF NOT EXISTS idx_subject_map_group ON subject_map(group_name);
`
