// ABOUTME: SQLite article store using modernc.org/sqlite (pure Go)
// ABOUTME: Articles and statuses live in separate tables; FTS5 indexes article text for search

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	_ "modernc.org/sqlite"

	"github.com/harper/feedsync/internal/models"
)

// SQLiteStore implements ArticleStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ ArticleStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates the article database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := openSQLite(dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func openSQLite(dbPath string) (*sql.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Refresh merges run from many goroutines; one connection serializes writers.
	db.SetMaxOpenConns(1)
	return db, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS articles (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT UNIQUE NOT NULL,
			feed_id TEXT NOT NULL,
			unique_id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			content_html TEXT NOT NULL DEFAULT '',
			content_text TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL DEFAULT '',
			external_url TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			author TEXT NOT NULL DEFAULT '',
			date_published TIMESTAMP,
			date_modified TIMESTAMP,
			sort_date INTEGER NOT NULL,
			missing_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_articles_feed_id ON articles(feed_id);
		CREATE INDEX IF NOT EXISTS idx_articles_sort_date ON articles(sort_date);

		CREATE TABLE IF NOT EXISTS statuses (
			article_id TEXT PRIMARY KEY,
			read INTEGER NOT NULL DEFAULT 1,
			starred INTEGER NOT NULL DEFAULT 0,
			date_arrived TIMESTAMP NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_statuses_read ON statuses(read);
		CREATE INDEX IF NOT EXISTS idx_statuses_starred ON statuses(starred);

		CREATE VIRTUAL TABLE IF NOT EXISTS articles_fts USING fts5(
			title,
			content_html,
			content_text,
			summary,
			content=articles,
			content_rowid=rowid
		);

		CREATE TRIGGER IF NOT EXISTS articles_ai AFTER INSERT ON articles BEGIN
			INSERT INTO articles_fts(rowid, title, content_html, content_text, summary)
			VALUES (new.rowid, new.title, new.content_html, new.content_text, new.summary);
		END;

		CREATE TRIGGER IF NOT EXISTS articles_ad AFTER DELETE ON articles BEGIN
			INSERT INTO articles_fts(articles_fts, rowid, title, content_html, content_text, summary)
			VALUES ('delete', old.rowid, old.title, old.content_html, old.content_text, old.summary);
		END;

		CREATE TRIGGER IF NOT EXISTS articles_au AFTER UPDATE ON articles BEGIN
			INSERT INTO articles_fts(articles_fts, rowid, title, content_html, content_text, summary)
			VALUES ('delete', old.rowid, old.title, old.content_html, old.content_text, old.summary);
			INSERT INTO articles_fts(rowid, title, content_html, content_text, summary)
			VALUES (new.rowid, new.title, new.content_html, new.content_text, new.summary);
		END;
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const articleColumns = `
	a.id, a.feed_id, a.unique_id, a.title, a.content_html, a.content_text,
	a.url, a.external_url, a.summary, a.author, a.date_published, a.date_modified,
	s.read, s.starred, s.date_arrived`

const articleJoin = `FROM articles a INNER JOIN statuses s ON s.article_id = a.id`

// FetchArticles returns articles matching filter, newest first.
func (s *SQLiteStore) FetchArticles(ctx context.Context, filter ArticleFilter) ([]*models.Article, error) {
	var conditions []string
	var args []any

	if len(filter.FeedIDs) > 0 {
		conditions = append(conditions, "a.feed_id IN (SELECT value FROM json_each(?))")
		args = append(args, jsonList(filter.FeedIDs))
	}
	if len(filter.ArticleIDs) > 0 {
		conditions = append(conditions, "a.id IN (SELECT value FROM json_each(?))")
		args = append(args, jsonList(filter.ArticleIDs))
	}
	if filter.UnreadOnly {
		conditions = append(conditions, "s.read = 0")
	}
	if filter.StarredOnly {
		conditions = append(conditions, "s.starred = 1")
	}
	if filter.Since != nil {
		conditions = append(conditions, "a.sort_date >= ?")
		args = append(args, filter.Since.UnixNano())
	}
	if filter.Until != nil {
		conditions = append(conditions, "a.sort_date < ?")
		args = append(args, filter.Until.UnixNano())
	}
	if match := ftsQuery(filter.Search); match != "" {
		conditions = append(conditions, "a.rowid IN (SELECT rowid FROM articles_fts WHERE articles_fts MATCH ?)")
		args = append(args, match)
	}

	query := "SELECT " + articleColumns + " " + articleJoin
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY a.sort_date DESC, a.rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var articles []*models.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, article)
	}
	return articles, rows.Err()
}

// Merge upserts items for one feed.
func (s *SQLiteStore) Merge(ctx context.Context, feedID string, items []models.ParsedItem, deleteOlder bool) (models.ArticleChanges, error) {
	var changes models.ArticleChanges
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		merged, seen, err := mergeItems(ctx, tx, feedID, items, false)
		if err != nil {
			return err
		}
		changes = merged
		if deleteOlder && len(items) > 0 {
			deleted, err := expireMissing(ctx, tx, feedID, seen)
			if err != nil {
				return err
			}
			changes.Deleted = deleted
		}
		return nil
	})
	if err != nil {
		return models.ArticleChanges{}, fmt.Errorf("merge feed %s: %w", feedID, err)
	}
	return changes, nil
}

// MergeMultiFeed upserts items for many feeds in one transaction.
func (s *SQLiteStore) MergeMultiFeed(ctx context.Context, feedItems map[string][]models.ParsedItem, defaultRead bool) (models.ArticleChanges, error) {
	var changes models.ArticleChanges
	feedIDs := lo.Keys(feedItems)
	sort.Strings(feedIDs)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, feedID := range feedIDs {
			merged, _, err := mergeItems(ctx, tx, feedID, feedItems[feedID], defaultRead)
			if err != nil {
				return err
			}
			changes.Append(merged)
		}
		return nil
	})
	if err != nil {
		return models.ArticleChanges{}, fmt.Errorf("merge feeds: %w", err)
	}
	return changes, nil
}

func mergeItems(ctx context.Context, tx *sql.Tx, feedID string, items []models.ParsedItem, defaultRead bool) (models.ArticleChanges, []string, error) {
	var changes models.ArticleChanges
	seen := make(map[string]struct{}, len(items))
	var seenIDs []string
	now := time.Now().UTC()

	for _, item := range items {
		id := item.ArticleID(feedID)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		seenIDs = append(seenIDs, id)

		existing, err := loadArticle(ctx, tx, id)
		if err != nil {
			return changes, nil, err
		}

		if existing == nil {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO articles (id, feed_id, unique_id, title, content_html, content_text, url, external_url,
					summary, author, date_published, date_modified, sort_date, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				id, feedID, item.UniqueID, item.Title, item.ContentHTML, item.ContentText, item.URL, item.ExternalURL,
				item.Summary, item.Author, timeToSQL(item.DatePublished), timeToSQL(item.DateModified),
				sortDate(item, now), now,
			); err != nil {
				return changes, nil, fmt.Errorf("insert article: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO statuses (article_id, read, starred, date_arrived) VALUES (?, ?, 0, ?)`,
				id, boolToInt(defaultRead), now,
			); err != nil {
				return changes, nil, fmt.Errorf("insert status: %w", err)
			}
			article, err := loadArticle(ctx, tx, id)
			if err != nil {
				return changes, nil, err
			}
			changes.New = append(changes.New, article)
			continue
		}

		if !contentDiffers(existing, item) {
			if _, err := tx.ExecContext(ctx, `UPDATE articles SET missing_count = 0 WHERE id = ?`, id); err != nil {
				return changes, nil, fmt.Errorf("reset missing count: %w", err)
			}
			continue
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE articles SET title = ?, content_html = ?, content_text = ?, url = ?, external_url = ?,
				summary = ?, author = ?, date_published = ?, date_modified = ?, sort_date = ?, missing_count = 0
			WHERE id = ?`,
			item.Title, item.ContentHTML, item.ContentText, item.URL, item.ExternalURL,
			item.Summary, item.Author, timeToSQL(item.DatePublished), timeToSQL(item.DateModified),
			sortDate(item, existing.Status.DateArrived), id,
		); err != nil {
			return changes, nil, fmt.Errorf("update article: %w", err)
		}
		article, err := loadArticle(ctx, tx, id)
		if err != nil {
			return changes, nil, err
		}
		changes.Updated = append(changes.Updated, article)
	}
	return changes, seenIDs, nil
}

// expireMissing ages articles absent from this merge and deletes read,
// unstarred ones that have been missing for StaleMergeCycles merges.
func expireMissing(ctx context.Context, tx *sql.Tx, feedID string, seen []string) ([]*models.Article, error) {
	if _, err := tx.ExecContext(ctx, `
		UPDATE articles SET missing_count = missing_count + 1
		WHERE feed_id = ? AND id NOT IN (SELECT value FROM json_each(?))`,
		feedID, jsonList(seen),
	); err != nil {
		return nil, fmt.Errorf("age missing articles: %w", err)
	}

	rows, err := tx.QueryContext(ctx, "SELECT "+articleColumns+" "+articleJoin+`
		WHERE a.feed_id = ? AND a.missing_count >= ? AND s.read = 1 AND s.starred = 0`,
		feedID, StaleMergeCycles,
	)
	if err != nil {
		return nil, fmt.Errorf("query stale articles: %w", err)
	}
	var stale []*models.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		stale = append(stale, article)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(stale) == 0 {
		return nil, nil
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM articles WHERE id IN (SELECT value FROM json_each(?))`,
		jsonList(models.ArticleIDs(stale)),
	); err != nil {
		return nil, fmt.Errorf("delete stale articles: %w", err)
	}
	return stale, nil
}

// MarkStatus sets key to flag and returns the IDs that changed.
func (s *SQLiteStore) MarkStatus(ctx context.Context, articleIDs []string, key models.StatusKey, flag bool) ([]string, error) {
	column, err := statusColumn(key)
	if err != nil {
		return nil, err
	}
	if len(articleIDs) == 0 {
		return nil, nil
	}

	var changed []string
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT article_id FROM statuses WHERE article_id IN (SELECT value FROM json_each(?)) AND `+column+` != ?`,
			jsonList(lo.Uniq(articleIDs)), boolToInt(flag),
		)
		if err != nil {
			return fmt.Errorf("query statuses: %w", err)
		}
		changed, err = scanStrings(rows)
		if err != nil {
			return err
		}
		if len(changed) == 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE statuses SET `+column+` = ? WHERE article_id IN (SELECT value FROM json_each(?))`,
			boolToInt(flag), jsonList(changed),
		)
		if err != nil {
			return fmt.Errorf("update statuses: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mark %s: %w", key, err)
	}
	sort.Strings(changed)
	return changed, nil
}

// CreateStatusesIfAbsent creates default statuses for unknown IDs.
func (s *SQLiteStore) CreateStatusesIfAbsent(ctx context.Context, articleIDs []string) ([]string, error) {
	var created []string
	now := time.Now().UTC()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range lo.Uniq(articleIDs) {
			res, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO statuses (article_id, read, starred, date_arrived) VALUES (?, 1, 0, ?)`,
				id, now,
			)
			if err != nil {
				return fmt.Errorf("insert status: %w", err)
			}
			if n, _ := res.RowsAffected(); n == 1 {
				created = append(created, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create statuses: %w", err)
	}
	return created, nil
}

// Statuses returns the status rows that exist for articleIDs.
func (s *SQLiteStore) Statuses(ctx context.Context, articleIDs []string) (map[string]models.ArticleStatus, error) {
	result := make(map[string]models.ArticleStatus, len(articleIDs))
	if len(articleIDs) == 0 {
		return result, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT article_id, read, starred, date_arrived FROM statuses WHERE article_id IN (SELECT value FROM json_each(?))`,
		jsonList(articleIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("query statuses: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var st models.ArticleStatus
		var read, starred int
		if err := rows.Scan(&st.ArticleID, &read, &starred, &st.DateArrived); err != nil {
			return nil, fmt.Errorf("scan status: %w", err)
		}
		st.Read = read == 1
		st.Starred = starred == 1
		result[st.ArticleID] = st
	}
	return result, rows.Err()
}

// ArticleIDsWithStatus returns every ID whose key flag equals flag.
func (s *SQLiteStore) ArticleIDsWithStatus(ctx context.Context, key models.StatusKey, flag bool) ([]string, error) {
	column, err := statusColumn(key)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT article_id FROM statuses WHERE `+column+` = ? ORDER BY article_id`, boolToInt(flag))
	if err != nil {
		return nil, fmt.Errorf("query statuses: %w", err)
	}
	return scanStrings(rows)
}

// FeedIDsForArticles maps downloaded article IDs to their feed IDs.
func (s *SQLiteStore) FeedIDsForArticles(ctx context.Context, articleIDs []string) (map[string]string, error) {
	result := make(map[string]string, len(articleIDs))
	if len(articleIDs) == 0 {
		return result, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, feed_id FROM articles WHERE id IN (SELECT value FROM json_each(?))`,
		jsonList(articleIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("query article feeds: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, feedID string
		if err := rows.Scan(&id, &feedID); err != nil {
			return nil, fmt.Errorf("scan article feed: %w", err)
		}
		result[id] = feedID
	}
	return result, rows.Err()
}

// UnreadCount counts unread articles in one feed.
func (s *SQLiteStore) UnreadCount(ctx context.Context, feedID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) `+articleJoin+` WHERE a.feed_id = ? AND s.read = 0`, feedID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

// UnreadCounts counts unread articles for each requested feed, including zeros.
func (s *SQLiteStore) UnreadCounts(ctx context.Context, feedIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(feedIDs))
	for _, id := range feedIDs {
		counts[id] = 0
	}
	if len(feedIDs) == 0 {
		return counts, nil
	}
	err := s.countInto(ctx, counts,
		`SELECT a.feed_id, COUNT(*) `+articleJoin+`
		WHERE s.read = 0 AND a.feed_id IN (SELECT value FROM json_each(?)) GROUP BY a.feed_id`,
		jsonList(feedIDs),
	)
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// AllUnreadCounts counts unread articles for every feed with at least one.
func (s *SQLiteStore) AllUnreadCounts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	err := s.countInto(ctx, counts, `SELECT a.feed_id, COUNT(*) `+articleJoin+` WHERE s.read = 0 GROUP BY a.feed_id`)
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (s *SQLiteStore) countInto(ctx context.Context, counts map[string]int, query string, args ...any) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("count unread: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var feedID string
		var n int
		if err := rows.Scan(&feedID, &n); err != nil {
			return fmt.Errorf("scan count: %w", err)
		}
		counts[feedID] = n
	}
	return rows.Err()
}

// DeleteArticlesForFeeds removes downloaded articles of the given feeds.
// Status rows are kept so a re-subscribe does not resurrect unread articles.
func (s *SQLiteStore) DeleteArticlesForFeeds(ctx context.Context, feedIDs []string) error {
	if len(feedIDs) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM articles WHERE feed_id IN (SELECT value FROM json_each(?))`,
		jsonList(feedIDs),
	)
	if err != nil {
		return fmt.Errorf("delete articles: %w", err)
	}
	return nil
}

// Helper functions

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*models.Article, error) {
	var a models.Article
	var published, modified sql.NullTime
	var read, starred int
	if err := row.Scan(
		&a.ID, &a.FeedID, &a.UniqueID, &a.Title, &a.ContentHTML, &a.ContentText,
		&a.URL, &a.ExternalURL, &a.Summary, &a.Author, &published, &modified,
		&read, &starred, &a.Status.DateArrived,
	); err != nil {
		return nil, fmt.Errorf("scan article: %w", err)
	}
	if published.Valid {
		a.DatePublished = &published.Time
	}
	if modified.Valid {
		a.DateModified = &modified.Time
	}
	a.Status.ArticleID = a.ID
	a.Status.Read = read == 1
	a.Status.Starred = starred == 1
	return &a, nil
}

func loadArticle(ctx context.Context, tx *sql.Tx, id string) (*models.Article, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+articleColumns+" "+articleJoin+" WHERE a.id = ?", id)
	article, err := scanArticle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return article, nil
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func contentDiffers(a *models.Article, item models.ParsedItem) bool {
	return a.Title != item.Title ||
		a.ContentHTML != item.ContentHTML ||
		a.ContentText != item.ContentText ||
		a.URL != item.URL ||
		a.ExternalURL != item.ExternalURL ||
		a.Summary != item.Summary ||
		a.Author != item.Author ||
		!sameTime(a.DatePublished, item.DatePublished) ||
		!sameTime(a.DateModified, item.DateModified)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func sortDate(item models.ParsedItem, fallback time.Time) int64 {
	switch {
	case item.DatePublished != nil:
		return item.DatePublished.UnixNano()
	case item.DateModified != nil:
		return item.DateModified.UnixNano()
	}
	return fallback.UnixNano()
}

func statusColumn(key models.StatusKey) (string, error) {
	switch key {
	case models.StatusRead:
		return "read", nil
	case models.StatusStarred:
		return "starred", nil
	}
	return "", fmt.Errorf("unknown status key: %q", key)
}

// ftsQuery quotes each term so user input cannot inject FTS5 syntax.
func ftsQuery(text string) string {
	terms := strings.Fields(text)
	quoted := lo.Map(terms, func(term string, _ int) string {
		return `"` + strings.ReplaceAll(term, `"`, `""`) + `"`
	})
	return strings.Join(quoted, " ")
}

func jsonList(ids []string) string {
	if ids == nil {
		ids = []string{}
	}
	data, _ := json.Marshal(ids)
	return string(data)
}

func timeToSQL(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
