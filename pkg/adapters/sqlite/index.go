package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
)

var excessLinebreaks = regexp.MustCompile(`\n{3,}`)

// Section is a numbered part of a source document.
type Section struct {
	Num      string          `yaml:"num"`
	Title    string          `yaml:"title"`
	Category domain.Category `yaml:"category"`
	Chunks   []Chunk         `yaml:"chunks"`
}

// Chunk is one paragraph of a section.
type Chunk struct {
	DataType domain.DataType `yaml:"data_type"`
	Content  string          `yaml:"content"`
}

// Index implements ports.Retriever over locally stored sections.
// Sections are ranked by how many query terms their chunks contain.
type Index struct {
	db    *sql.DB
	limit int
}

// IndexOption configures an Index.
type IndexOption func(*Index)

// WithLimit caps the number of sections returned per query.
func WithLimit(n int) IndexOption {
	return func(i *Index) {
		if n > 0 {
			i.limit = n
		}
	}
}

// NewIndex wraps a database prepared by Open.
func NewIndex(db *sql.DB, opts ...IndexOption) *Index {
	idx := &Index{db: db, limit: 3}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Add stores a section and its chunks.
func (i *Index) Add(ctx context.Context, section Section) error {
	category := section.Category
	if category == "" {
		category = domain.CategoryOther
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `INSERT INTO sections (num, title, category) VALUES (?, ?, ?)`,
		section.Num, section.Title, string(category))
	if err != nil {
		return fmt.Errorf("failed to insert section %s: %w", section.Num, err)
	}
	sectionID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for seq, c := range section.Chunks {
		dataType := c.DataType
		if dataType == "" {
			dataType = domain.DataOther
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO chunks (section_id, seq, data_type, content) VALUES (?, ?, ?, ?)`,
			sectionID, seq, string(dataType), c.Content); err != nil {
			return fmt.Errorf("failed to insert chunk %d of section %s: %w", seq, section.Num, err)
		}
	}
	return tx.Commit()
}

type hit struct {
	sectionID int64
	num       string
	title     string
	chunks    []string
	score     int
}

// Retrieve returns the best matching sections rendered as text.
func (i *Index) Retrieve(ctx context.Context, req domain.RetrievalRequest) (domain.Retrieval, error) {
	if err := req.Validate(); err != nil {
		return domain.Retrieval{}, err
	}

	query := `SELECT s.id, s.num, s.title, c.content
		FROM chunks c JOIN sections s ON s.id = c.section_id
		WHERE (? = '' OR c.data_type = ?) AND (? = '' OR s.category = ?)
		ORDER BY s.id, c.seq`
	rows, err := i.db.QueryContext(ctx, query,
		string(req.DataType), string(req.DataType), string(req.Category), string(req.Category))
	if err != nil {
		return domain.Retrieval{}, fmt.Errorf("failed to query index: %w", err)
	}
	defer rows.Close()

	terms := strings.Fields(strings.ToLower(req.Query))
	var hits []*hit
	byID := map[int64]*hit{}
	for rows.Next() {
		var (
			id                  int64
			num, title, content string
		)
		if err := rows.Scan(&id, &num, &title, &content); err != nil {
			return domain.Retrieval{}, err
		}
		h, ok := byID[id]
		if !ok {
			h = &hit{sectionID: id, num: num, title: title, score: score(strings.ToLower(title), terms)}
			byID[id] = h
			hits = append(hits, h)
		}
		h.chunks = append(h.chunks, content)
		h.score += score(strings.ToLower(content), terms)
	}
	if err := rows.Err(); err != nil {
		return domain.Retrieval{}, err
	}

	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })

	var sb strings.Builder
	for n, h := range hits {
		if n == i.limit || h.score == 0 {
			break
		}
		fmt.Fprintf(&sb, "%s %s\n", h.num, h.title)
		for _, c := range h.chunks {
			sb.WriteString("\n\n")
			sb.WriteString(c)
		}
		sb.WriteString("\n\n")
	}
	return domain.Retrieval{Text: ReduceLinebreaks(sb.String())}, nil
}

// ReduceLinebreaks collapses runs of three or more newlines into one blank line.
func ReduceLinebreaks(text string) string {
	return excessLinebreaks.ReplaceAllString(text, "\n\n")
}

func score(text string, terms []string) int {
	n := 0
	for _, t := range terms {
		if strings.Contains(text, t) {
			n++
		}
	}
	return n
}
