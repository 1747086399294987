package service

import (
	"html"
	"log"
	"strings"

	"github.com/choretide/gamification/internal/catalog"
	"github.com/meilisearch/meilisearch-go"
	"github.com/microcosm-cc/bluemonday"
)

const catalogIndex = "catalog"

type SearchService interface {
	IndexCatalog(cat *catalog.Catalog) error
	Search(query, kind string, page, limit int) (*SearchResult, error)
}

type SearchResult struct {
	Hits       []CatalogDoc `json:"hits"`
	TotalHits  int64        `json:"total_hits"`
	Page       int          `json:"page"`
	TotalPages int          `json:"total_pages"`
}

// CatalogDoc is the flattened definition shape stored in Meilisearch.
// Achievements, badges, and challenges share one index, distinguished by kind.
type CatalogDoc struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
	Tier        string `json:"tier,omitempty"`
	PointValue  int    `json:"point_value,omitempty"`
}

type searchService struct {
	client    meilisearch.ServiceManager
	sanitizer *bluemonday.Policy
}

func NewSearchService(client meilisearch.ServiceManager) SearchService {
	s := &searchService{
		client:    client,
		sanitizer: bluemonday.StrictPolicy(),
	}
	s.initIndex()
	return s
}

func (s *searchService) initIndex() {
	filterableAttrs := []string{"kind", "tier", "category"}
	filterableInterface := make([]any, len(filterableAttrs))
	for i, v := range filterableAttrs {
		filterableInterface[i] = v
	}
	_, err := s.client.Index(catalogIndex).UpdateFilterableAttributes(&filterableInterface)
	if err != nil {
		log.Printf("Failed to update catalog filterable attributes: %v", err)
	}

	sortableAttrs := []string{"point_value"}
	_, err = s.client.Index(catalogIndex).UpdateSortableAttributes(&sortableAttrs)
	if err != nil {
		log.Printf("Failed to update catalog sortable attributes: %v", err)
	}

	log.Println("Meilisearch catalog index initialized")
}

func (s *searchService) cleanText(text string) string {
	sanitized := s.sanitizer.Sanitize(text)
	cleanText := html.UnescapeString(sanitized)
	return strings.Join(strings.Fields(cleanText), " ")
}

// IndexCatalog pushes every definition into the catalog index.
func (s *searchService) IndexCatalog(cat *catalog.Catalog) error {
	docs := make([]CatalogDoc, 0)

	for _, def := range cat.Achievements() {
		docs = append(docs, CatalogDoc{
			ID:          "achievement-" + def.ID,
			Kind:        "achievement",
			Name:        s.cleanText(def.Name),
			Description: s.cleanText(def.Description),
			Category:    def.Category,
			Tier:        def.Tier,
			PointValue:  def.PointValue,
		})
	}
	for _, def := range cat.Badges() {
		docs = append(docs, CatalogDoc{
			ID:          "badge-" + def.ID,
			Kind:        "badge",
			Name:        s.cleanText(def.Name),
			Description: s.cleanText(def.Description),
			Category:    def.Category,
			Tier:        def.Tier,
			PointValue:  def.PointValue,
		})
	}
	for _, def := range cat.Challenges() {
		docs = append(docs, CatalogDoc{
			ID:          "challenge-" + def.ID,
			Kind:        "challenge",
			Name:        s.cleanText(def.Name),
			Description: s.cleanText(def.Description),
			PointValue:  def.PointReward,
		})
	}

	task, err := s.client.Index(catalogIndex).AddDocuments(docs, strPtr("id"))
	if err != nil {
		return err
	}
	log.Printf("Indexed %d catalog documents, task id: %d", len(docs), task.TaskUID)
	return nil
}

func (s *searchService) Search(query, kind string, page, limit int) (*SearchResult, error) {
	req := &meilisearch.SearchRequest{
		HitsPerPage: int64(limit),
		Page:        int64(page),
	}
	if kind != "" {
		req.Filter = "kind = " + kind
	}

	resp, err := s.client.Index(catalogIndex).Search(query, req)
	if err != nil {
		return nil, err
	}

	hits := make([]CatalogDoc, 0, len(resp.Hits))
	for _, raw := range resp.Hits {
		var m map[string]any
		if err := raw.DecodeInto(&m); err != nil {
			continue
		}
		doc := CatalogDoc{
			ID:          asString(m["id"]),
			Kind:        asString(m["kind"]),
			Name:        asString(m["name"]),
			Description: asString(m["description"]),
			Category:    asString(m["category"]),
			Tier:        asString(m["tier"]),
		}
		if v, ok := m["point_value"].(float64); ok {
			doc.PointValue = int(v)
		}
		hits = append(hits, doc)
	}

	return &SearchResult{
		Hits:       hits,
		TotalHits:  resp.TotalHits,
		Page:       page,
		TotalPages: int(resp.TotalPages),
	}, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func strPtr(s string) *string {
	return &s
}
