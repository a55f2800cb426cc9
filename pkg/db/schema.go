package db

import "strings"

// schema is shared by SQLite and Postgres; the {{...}} markers are replaced
// per dialect in schemaFor.
const schema = `
CREATE TABLE IF NOT EXISTS lands (
    id {{pk}},
    name TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    lang TEXT NOT NULL DEFAULT 'en',
    crawl_depth INTEGER NOT NULL DEFAULT 2,
    crawl_size INTEGER NOT NULL DEFAULT 0,
    start_urls TEXT NOT NULL DEFAULT '',
    owner_id INTEGER NOT NULL DEFAULT 0,
    created_at {{ts}} NOT NULL
);

-- Terms are shared between lands; each land weights them independently.
CREATE TABLE IF NOT EXISTS terms (
    id {{pk}},
    word TEXT NOT NULL UNIQUE,
    lemma TEXT NOT NULL,
    language TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_terms_lemma ON terms(lemma);

CREATE TABLE IF NOT EXISTS land_terms (
    land_id BIGINT NOT NULL REFERENCES lands(id) ON DELETE CASCADE,
    term_id BIGINT NOT NULL REFERENCES terms(id) ON DELETE CASCADE,
    weight {{float}} NOT NULL DEFAULT 1.0,
    PRIMARY KEY (land_id, term_id)
);

CREATE TABLE IF NOT EXISTS domains (
    id {{pk}},
    land_id BIGINT NOT NULL REFERENCES lands(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    keywords TEXT NOT NULL DEFAULT '',
    language TEXT NOT NULL DEFAULT '',
    http_status INTEGER NOT NULL DEFAULT 0,
    fetched_at {{ts}},
    created_at {{ts}} NOT NULL,
    UNIQUE (name, land_id)
);

CREATE TABLE IF NOT EXISTS expressions (
    id {{pk}},
    land_id BIGINT NOT NULL REFERENCES lands(id) ON DELETE CASCADE,
    url TEXT NOT NULL,
    url_hash TEXT NOT NULL,
    depth INTEGER NOT NULL DEFAULT 0,
    domain_id BIGINT REFERENCES domains(id) ON DELETE SET NULL,

    http_status INTEGER NOT NULL DEFAULT 0,
    title TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    keywords TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    readable TEXT NOT NULL DEFAULT '',
    summary TEXT NOT NULL DEFAULT '',
    language TEXT NOT NULL DEFAULT '',
    word_count INTEGER NOT NULL DEFAULT 0,

    relevance {{float}} NOT NULL DEFAULT 0,
    quality_score {{float}} NOT NULL DEFAULT 0,
    sentiment_score {{float}},
    sentiment_label TEXT NOT NULL DEFAULT '',
    valid_llm BOOLEAN,
    valid_model TEXT NOT NULL DEFAULT '',

    extraction_source TEXT NOT NULL DEFAULT '',
    extraction_duration {{float}} NOT NULL DEFAULT 0,
    extraction_retries INTEGER NOT NULL DEFAULT 0,
    extraction_error TEXT NOT NULL DEFAULT '',

    published_at {{ts}},
    created_at {{ts}} NOT NULL,
    crawled_at {{ts}},
    approved_at {{ts}},
    readable_at {{ts}},
    claimed_at {{ts}},
    claim_token TEXT,

    UNIQUE (land_id, url_hash, url)
);

CREATE INDEX IF NOT EXISTS idx_expressions_frontier ON expressions(land_id, approved_at, depth, created_at);
CREATE INDEX IF NOT EXISTS idx_expressions_domain ON expressions(domain_id);
CREATE INDEX IF NOT EXISTS idx_expressions_relevance ON expressions(land_id, relevance);

CREATE TABLE IF NOT EXISTS media (
    id {{pk}},
    expression_id BIGINT NOT NULL REFERENCES expressions(id) ON DELETE CASCADE,
    url TEXT NOT NULL,
    url_hash TEXT NOT NULL,
    type TEXT NOT NULL,
    width INTEGER NOT NULL DEFAULT 0,
    height INTEGER NOT NULL DEFAULT 0,
    format TEXT NOT NULL DEFAULT '',
    file_size BIGINT NOT NULL DEFAULT 0,
    dominant_colors TEXT NOT NULL DEFAULT '',
    is_processed BOOLEAN NOT NULL DEFAULT FALSE,
    created_at {{ts}} NOT NULL,
    UNIQUE (expression_id, url_hash)
);

CREATE TABLE IF NOT EXISTS expression_links (
    source_id BIGINT NOT NULL REFERENCES expressions(id) ON DELETE CASCADE,
    target_id BIGINT NOT NULL REFERENCES expressions(id) ON DELETE CASCADE,
    anchor_text TEXT NOT NULL DEFAULT '',
    link_type TEXT NOT NULL DEFAULT '',
    rel TEXT NOT NULL DEFAULT '',
    position INTEGER NOT NULL DEFAULT 0,
    created_at {{ts}} NOT NULL,
    PRIMARY KEY (source_id, target_id)
);

CREATE INDEX IF NOT EXISTS idx_links_target ON expression_links(target_id);

-- One row per crawl or consolidation run, for the job report surface.
CREATE TABLE IF NOT EXISTS runs (
    id {{pk}},
    land_id BIGINT NOT NULL REFERENCES lands(id) ON DELETE CASCADE,
    kind TEXT NOT NULL,
    processed INTEGER NOT NULL DEFAULT 0,
    updated INTEGER NOT NULL DEFAULT 0,
    errors INTEGER NOT NULL DEFAULT 0,
    skipped INTEGER NOT NULL DEFAULT 0,
    duration_ms BIGINT NOT NULL DEFAULT 0,
    started_at {{ts}} NOT NULL,
    finished_at {{ts}} NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_land ON runs(land_id, started_at);
`

const sqlitePragmas = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA temp_store = MEMORY;
`

func schemaFor(d dialect) string {
	var r *strings.Replacer
	if d == dialectPostgres {
		r = strings.NewReplacer("{{pk}}", "BIGSERIAL PRIMARY KEY", "{{ts}}", "TIMESTAMPTZ", "{{float}}", "DOUBLE PRECISION")
		return r.Replace(schema)
	}
	r = strings.NewReplacer("{{pk}}", "INTEGER PRIMARY KEY AUTOINCREMENT", "{{ts}}", "TIMESTAMP", "{{float}}", "REAL")
	return sqlitePragmas + r.Replace(schema)
}
