package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/gbbspro/gbbs-archive/internal/models"
	"github.com/gbbspro/gbbs-archive/internal/pkg/logger"
	"github.com/gbbspro/gbbs-archive/internal/repositories"
	"go.uber.org/zap"
)

// archiveDocument 档案在搜索索引中的文档结构
type archiveDocument struct {
	ID          uint64   `json:"id"`
	Title       string   `json:"title"`
	Slug        string   `json:"slug"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	VolumeID    uint64   `json:"volume_id"`
	FileNames   []string `json:"file_names"`
}

// SearchService 档案全文搜索
// 索引不可用时回退到数据库 LIKE 查询，搜索能力降级但不中断
type SearchService interface {
	IndexArchive(ctx context.Context, archive *models.Archive) error
	DeleteArchive(ctx context.Context, archiveID uint64) error
	Search(ctx context.Context, keyword string, page, pageSize int) ([]models.Archive, int64, error)
}

type searchService struct {
	es          *elasticsearch.Client
	index       string
	archiveRepo repositories.ArchiveRepository
}

var _ SearchService = (*searchService)(nil)

// NewSearchService 创建搜索服务，es 为 nil 时全部走数据库回退
func NewSearchService(es *elasticsearch.Client, index string, archiveRepo repositories.ArchiveRepository) SearchService {
	return &searchService{
		es:          es,
		index:       index,
		archiveRepo: archiveRepo,
	}
}

func (s *searchService) IndexArchive(ctx context.Context, archive *models.Archive) error {
	if s.es == nil {
		return nil
	}

	doc := archiveDocument{
		ID:          archive.ID,
		Title:       archive.Title,
		Slug:        archive.Slug,
		Description: archive.Description,
		Status:      archive.Status,
	}
	if archive.VolumeID != nil {
		doc.VolumeID = *archive.VolumeID
	}
	for i := range archive.Files {
		doc.FileNames = append(doc.FileNames, archive.Files[i].EffectiveName())
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("序列化搜索文档失败: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: strconv.FormatUint(archive.ID, 10),
		Body:       bytes.NewReader(body),
		Refresh:    "false",
	}
	res, err := req.Do(ctx, s.es)
	if err != nil {
		return fmt.Errorf("写入搜索索引失败: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("写入搜索索引失败: %s", res.Status())
	}
	return nil
}

func (s *searchService) DeleteArchive(ctx context.Context, archiveID uint64) error {
	if s.es == nil {
		return nil
	}

	req := esapi.DeleteRequest{
		Index:      s.index,
		DocumentID: strconv.FormatUint(archiveID, 10),
	}
	res, err := req.Do(ctx, s.es)
	if err != nil {
		return fmt.Errorf("删除搜索索引失败: %w", err)
	}
	defer res.Body.Close()
	// 文档不存在视为删除成功
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("删除搜索索引失败: %s", res.Status())
	}
	return nil
}

// Search 按关键词搜索已发布档案
// 标题权重最高，其次是文件名与描述
func (s *searchService) Search(ctx context.Context, keyword string, page, pageSize int) ([]models.Archive, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	if s.es == nil {
		return s.fallbackSearch(keyword, page, pageSize)
	}

	query := map[string]any{
		"from": (page - 1) * pageSize,
		"size": pageSize,
		"query": map[string]any{
			"bool": map[string]any{
				"must": map[string]any{
					"multi_match": map[string]any{
						"query":  keyword,
						"fields": []string{"title^3", "file_names^2", "description"},
					},
				},
				"filter": map[string]any{
					"term": map[string]any{"status": models.ArchiveStatusPublish},
				},
			},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, 0, err
	}

	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(s.index),
		s.es.Search.WithBody(bytes.NewReader(body)),
		s.es.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		logger.Warn("搜索服务不可用，回退数据库查询", zap.Error(err))
		return s.fallbackSearch(keyword, page, pageSize)
	}
	defer res.Body.Close()
	if res.IsError() {
		logger.Warn("搜索请求失败，回退数据库查询", zap.String("status", res.Status()))
		return s.fallbackSearch(keyword, page, pageSize)
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source archiveDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, 0, fmt.Errorf("解析搜索响应失败: %w", err)
	}

	// 按命中顺序回表取完整数据
	archives := make([]models.Archive, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		archive, err := s.archiveRepo.FindByID(hit.Source.ID)
		if err != nil {
			continue
		}
		archives = append(archives, *archive)
	}
	return archives, parsed.Hits.Total.Value, nil
}

// fallbackSearch 数据库 LIKE 查询兜底
func (s *searchService) fallbackSearch(keyword string, page, pageSize int) ([]models.Archive, int64, error) {
	return s.archiveRepo.List(repositories.ArchiveQuery{
		Search:   strings.TrimSpace(keyword),
		Status:   models.ArchiveStatusPublish,
		Page:     page,
		PageSize: pageSize,
	})
}
