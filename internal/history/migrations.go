package history

const schema = `
CREATE TABLE IF NOT EXISTS batches (
    batch_id TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    feature_count INTEGER NOT NULL,
    completed_count INTEGER NOT NULL,
    failed_count INTEGER NOT NULL,
    skipped_count INTEGER NOT NULL,
    checkpoint_count INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP,
    finished_at TIMESTAMP,
    archived_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_batches_status ON batches(status);

CREATE TABLE IF NOT EXISTS batch_features (
    batch_id TEXT NOT NULL REFERENCES batches(batch_id),
    feature_index INTEGER NOT NULL,
    feature TEXT NOT NULL,
    disposition TEXT NOT NULL,
    failure_reason TEXT,
    PRIMARY KEY (batch_id, feature_index)
);

CREATE INDEX IF NOT EXISTS idx_batch_features_disposition ON batch_features(disposition);
`
