package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dtnitsch/mywi/models"
	"github.com/dtnitsch/mywi/pkg/lexicon"
	"github.com/dtnitsch/mywi/pkg/urlnorm"
)

const landColumns = `id, name, description, lang, crawl_depth, crawl_size, start_urls, owner_id, created_at`

type landRow struct {
	models.Land
	Lang      string `db:"lang"`
	StartURLs string `db:"start_urls"`
}

func (r landRow) toLand() models.Land {
	l := r.Land
	l.Languages = splitList(r.Lang, ",")
	l.StartURLs = splitList(r.StartURLs, "\n")
	return l
}

func splitList(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// CreateLand inserts a new land. Seed URLs are stored on the land; use
// AddSeedURLs to turn them into frontier rows.
func (db *DB) CreateLand(ctx context.Context, land models.Land) (*models.Land, error) {
	if strings.TrimSpace(land.Name) == "" {
		return nil, fmt.Errorf("land name is required")
	}
	if len(land.Languages) == 0 {
		land.Languages = []string{"en"}
	}

	var id int64
	err := db.QueryRowxContext(ctx, db.Rebind(`
		INSERT INTO lands (name, description, lang, crawl_depth, crawl_size, start_urls, owner_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`), land.Name, land.Description, strings.Join(land.Languages, ","), land.CrawlDepth, land.CrawlSize,
		strings.Join(land.StartURLs, "\n"), land.OwnerID, db.now()).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("land %q already exists: %w", land.Name, err)
		}
		return nil, fmt.Errorf("failed to insert land: %w", err)
	}
	return db.GetLand(ctx, id)
}

func (db *DB) GetLand(ctx context.Context, id int64) (*models.Land, error) {
	var row landRow
	err := db.GetContext(ctx, &row, db.Rebind(`SELECT `+landColumns+` FROM lands WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("land %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get land: %w", err)
	}
	land := row.toLand()
	return &land, nil
}

func (db *DB) GetLandByName(ctx context.Context, name string) (*models.Land, error) {
	var row landRow
	err := db.GetContext(ctx, &row, db.Rebind(`SELECT `+landColumns+` FROM lands WHERE name = ?`), name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("land %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get land: %w", err)
	}
	land := row.toLand()
	return &land, nil
}

func (db *DB) ListLands(ctx context.Context) ([]models.Land, error) {
	var rows []landRow
	if err := db.SelectContext(ctx, &rows, `SELECT `+landColumns+` FROM lands ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list lands: %w", err)
	}
	lands := make([]models.Land, 0, len(rows))
	for _, r := range rows {
		lands = append(lands, r.toLand())
	}
	return lands, nil
}

// AddSeedURLs records urls on the land and creates them as depth-0
// expressions. Invalid URLs are skipped. It returns the number of new
// expressions.
func (db *DB) AddSeedURLs(ctx context.Context, landID int64, urls []string) (int, error) {
	land, err := db.GetLand(ctx, landID)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]struct{}, len(land.StartURLs))
	for _, u := range land.StartURLs {
		seen[u] = struct{}{}
	}

	created := 0
	for _, raw := range urls {
		canonical, err := urlnorm.Canonicalize(raw)
		if err != nil {
			continue
		}
		if _, ok := seen[canonical]; !ok {
			seen[canonical] = struct{}{}
			land.StartURLs = append(land.StartURLs, canonical)
		}
		_, isNew, err := db.GetOrCreateExpression(ctx, landID, canonical, 0)
		if err != nil {
			return created, err
		}
		if isNew {
			created++
		}
	}

	_, err = db.ExecContext(ctx, db.Rebind(`UPDATE lands SET start_urls = ? WHERE id = ?`),
		strings.Join(land.StartURLs, "\n"), landID)
	if err != nil {
		return created, fmt.Errorf("failed to update seed urls: %w", err)
	}
	return created, nil
}

// AddTermsToLand adds words to the land dictionary. Each word is matched to
// an existing term by surface form, then by lemma, and only created when
// neither exists. Associations already present are left alone. It returns
// the number of new associations.
func (db *DB) AddTermsToLand(ctx context.Context, landID int64, words []string, lang string, weight float64) (int, error) {
	if weight == 0 {
		weight = 1.0
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	added := 0
	for _, word := range words {
		surface := strings.ToLower(strings.Join(strings.Fields(word), " "))
		if surface == "" {
			continue
		}
		lemma := lexicon.LemmaPhrase(surface, lang)

		var termID int64
		err := tx.GetContext(ctx, &termID, tx.Rebind(`SELECT id FROM terms WHERE word = ?`), surface)
		if errors.Is(err, sql.ErrNoRows) && lemma != "" {
			err = tx.GetContext(ctx, &termID, tx.Rebind(`SELECT id FROM terms WHERE lemma = ? ORDER BY id LIMIT 1`), lemma)
		}
		if errors.Is(err, sql.ErrNoRows) {
			err = tx.QueryRowxContext(ctx, tx.Rebind(`
				INSERT INTO terms (word, lemma, language) VALUES (?, ?, ?)
				RETURNING id
			`), surface, lemma, lang).Scan(&termID)
		}
		if err != nil {
			return 0, fmt.Errorf("failed to resolve term %q: %w", word, err)
		}

		res, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO land_terms (land_id, term_id, weight) VALUES (?, ?, ?)
			ON CONFLICT (land_id, term_id) DO NOTHING
		`), landID, termID, weight)
		if err != nil {
			return 0, fmt.Errorf("failed to associate term %q: %w", word, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit terms: %w", err)
	}
	return added, nil
}

// DictionaryForLand returns the land's weighted terms ordered by word.
func (db *DB) DictionaryForLand(ctx context.Context, landID int64) ([]models.DictionaryEntry, error) {
	var entries []models.DictionaryEntry
	err := db.SelectContext(ctx, &entries, db.Rebind(`
		SELECT t.id AS term_id, t.word, t.lemma, lt.weight
		FROM land_terms lt
		JOIN terms t ON t.id = lt.term_id
		WHERE lt.land_id = ?
		ORDER BY t.word
	`), landID)
	if err != nil {
		return nil, fmt.Errorf("failed to load dictionary: %w", err)
	}
	return entries, nil
}

// SetTermWeight changes the weight of word within one land.
func (db *DB) SetTermWeight(ctx context.Context, landID int64, word string, weight float64) error {
	res, err := db.ExecContext(ctx, db.Rebind(`
		UPDATE land_terms SET weight = ?
		WHERE land_id = ? AND term_id = (SELECT id FROM terms WHERE word = ?)
	`), weight, landID, strings.ToLower(strings.TrimSpace(word)))
	if err != nil {
		return fmt.Errorf("failed to set term weight: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("term %q in land %d: %w", word, landID, ErrNotFound)
	}
	return nil
}
