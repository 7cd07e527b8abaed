package keyword

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
)

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	index bleve.Index
}

type recordDoc struct {
	Text       string `json:"text"`
	EntityType string `json:"entity_type"`
}

// NewBleveIndex creates or opens a Bleve index at path. An existing index
// directory is reused; remove it to force a full re-index after a mapping
// change.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textField := bleve.NewTextFieldMapping()
	// Standard analyzer: lowercase + tokenize, no stemming. Queries match
	// exact words across mixed-language record text.
	textField.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("text", textField)
	docMapping.AddFieldMappingsAt("entity_type", bleve.NewKeywordFieldMapping())
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open keyword index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create keyword index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index indexes a record's text under its record key.
func (b *BleveIndex) Index(_ context.Context, id string, entityType, text string) error {
	return b.index.Index(id, recordDoc{Text: text, EntityType: entityType})
}

// Search runs a match query over record text and returns up to limit hits.
func (b *BleveIndex) Search(_ context.Context, query string, limit int) ([]*Result, error) {
	q := bleve.NewMatchQuery(query)
	q.SetField("text")
	req := bleve.NewSearchRequest(q)
	req.Size = limit

	results, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	out := make([]*Result, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &Result{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// Delete removes a record from the index. Deleting an unknown id is a no-op.
func (b *BleveIndex) Delete(_ context.Context, id string) error {
	return b.index.Delete(id)
}

// DocCount returns the number of indexed records.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the underlying index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
