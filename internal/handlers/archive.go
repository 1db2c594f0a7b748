package handlers

import (
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/gbbspro/gbbs-archive/internal/models"
	"github.com/gbbspro/gbbs-archive/internal/pkg/xerr"
	"github.com/gbbspro/gbbs-archive/internal/repositories"
	"github.com/gbbspro/gbbs-archive/internal/services/archive"
	"github.com/gbbspro/gbbs-archive/internal/services/search"
	"github.com/gbbspro/gbbs-archive/internal/services/stats"
	"github.com/gbbspro/gbbs-archive/internal/settings"
	"github.com/gin-gonic/gin"
)

// ArchiveFileView 对外展示的文件条目，带下载地址与下载数
type ArchiveFileView struct {
	UID         string `json:"uid"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	CategoryLbl string `json:"category_label"`
	Description string `json:"description,omitempty"`
	DownloadURL string `json:"download_url"`
	Downloads   int64  `json:"downloads"`
	Size        int64  `json:"size"`
	SizeHuman   string `json:"size_human"`
}

// ArchiveView 对外展示的档案
type ArchiveView struct {
	ID          uint64         `json:"id"`
	Title       string         `json:"title"`
	Slug        string         `json:"slug"`
	Status      string         `json:"status"`
	Description string         `json:"description,omitempty"`
	Volume      *models.Volume `json:"volume,omitempty"`

	Version           string `json:"version,omitempty"`
	Author            string `json:"author,omitempty"`
	ReleaseYear       string `json:"release_year,omitempty"`
	Requirements      string `json:"requirements,omitempty"`
	InstallationNotes string `json:"installation_notes,omitempty"`
	HistoricalNotes   string `json:"historical_notes,omitempty"`

	Files     []ArchiveFileView `json:"files"`
	Downloads int64             `json:"downloads"`
	CreatedAt string            `json:"created_at"`
}

// buildArchiveView 组装档案视图，下载数由调用方预先批量取回
func buildArchiveView(c *gin.Context, a *models.Archive, store *settings.Store, statsSvc stats.StatsService, downloads int64) ArchiveView {
	view := ArchiveView{
		ID:                a.ID,
		Title:             a.Title,
		Slug:              a.Slug,
		Status:            a.Status,
		Description:       a.Description,
		Volume:            a.Volume,
		Version:           a.Version,
		Author:            a.Author,
		ReleaseYear:       a.ReleaseYear,
		Requirements:      a.Requirements,
		InstallationNotes: a.InstallationNotes,
		HistoricalNotes:   a.HistoricalNotes,
		Downloads:         downloads,
		CreatedAt:         a.CreatedAt.Format("2006-01-02 15:04:05"),
		Files:             make([]ArchiveFileView, 0, len(a.Files)),
	}
	for i := range a.Files {
		f := &a.Files[i]
		fileKey := f.UID
		if fileKey == "" {
			fileKey = strconv.Itoa(i)
		}
		size, _ := statsSvc.FileSize(c.Request.Context(), f.URL)
		count, _ := statsSvc.FileDownloads(c.Request.Context(), a.ID, f.UID)
		view.Files = append(view.Files, ArchiveFileView{
			UID:         f.UID,
			Name:        f.EffectiveName(),
			Category:    f.Category,
			CategoryLbl: models.CategoryDisplayName(f.Category),
			Description: f.Description,
			DownloadURL: store.DownloadURL(a.ID, a.Slug, fileKey),
			Downloads:   count,
			Size:        size,
			SizeHuman:   stats.FormatFileSize(size),
		})
	}
	return view
}

// resolveListSort 确定列表的排序字段与方向
// 未开启排序或字段不在白名单时回退到设置的默认排序
func resolveListSort(c *gin.Context, agg settings.Aggregate) (string, string) {
	field := c.Query("sort")
	dir := c.Query("dir")

	valid := map[string]bool{
		settings.SortByName:      true,
		settings.SortByDate:      true,
		settings.SortByDownloads: true,
		settings.SortBySize:      true,
	}
	if !agg.EnableSorting || !valid[field] {
		field = agg.DefaultSorting
		if !valid[field] {
			field = settings.SortByName
		}
	}
	if dir != "asc" && dir != "desc" {
		// 名称默认升序，其余默认降序
		if field == settings.SortByName {
			dir = "asc"
		} else {
			dir = "desc"
		}
	}
	return field, dir
}

// InitListArchivesHandler 档案列表
// @Summary 档案列表
// @Description 分页列出档案，支持关键字与卷过滤、可配置排序，下载数批量取回
// @Tags 档案
// @Produce json
// @Param search query string false "关键字"
// @Param volume_id query int false "卷 ID"
// @Param status query string false "状态 draft/publish/trash"
// @Param sort query string false "排序字段 name/date/downloads/size，缺省取设置的 default_sorting"
// @Param dir query string false "排序方向 asc/desc"
// @Param page query int false "页码，从 1 开始"
// @Param page_size query int false "每页条数，缺省取设置的 items_per_page"
// @Success 200 {object} xerr.Response
// @Router /api/v1/archives [get]
func InitListArchivesHandler(archiveSvc archive.ArchiveService, statsSvc stats.StatsService, provider settings.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		agg := provider.Settings()
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		if page < 1 {
			page = 1
		}
		pageSize, _ := strconv.Atoi(c.Query("page_size"))
		if pageSize <= 0 {
			pageSize = agg.ItemsPerPage
		}
		volumeID, _ := strconv.ParseUint(c.Query("volume_id"), 10, 64)
		sortField, sortDir := resolveListSort(c, agg)

		query := repositories.ArchiveQuery{
			Search:   c.Query("search"),
			VolumeID: volumeID,
			Status:   c.Query("status"),
			Sort:     sortField,
			SortDir:  sortDir,
			Page:     page,
			PageSize: pageSize,
		}

		var (
			archives []models.Archive
			total    int64
			err      error
		)
		inMemorySort := sortField == settings.SortByDownloads || sortField == settings.SortBySize
		if inMemorySort {
			// 下载数与体积存不在档案表里，取全量在内存排序后再分页
			archives, err = archiveSvc.ListAll(query)
			total = int64(len(archives))
		} else {
			archives, total, err = archiveSvc.List(query)
		}
		if err != nil {
			xerr.Error(c, http.StatusInternalServerError, xerr.DatabaseErrorCode, "查询档案列表失败")
			return
		}

		ids := make([]uint64, 0, len(archives))
		for i := range archives {
			ids = append(ids, archives[i].ID)
		}
		downloads, err := statsSvc.BulkArchiveDownloads(c.Request.Context(), ids)
		if err != nil {
			downloads = map[uint64]int64{}
		}

		if inMemorySort {
			sortKey := make(map[uint64]int64, len(archives))
			if sortField == settings.SortBySize {
				for i := range archives {
					var sum int64
					for j := range archives[i].Files {
						size, _ := statsSvc.FileSize(c.Request.Context(), archives[i].Files[j].URL)
						if size > 0 {
							sum += size
						}
					}
					sortKey[archives[i].ID] = sum
				}
			} else {
				for i := range archives {
					sortKey[archives[i].ID] = downloads[archives[i].ID]
				}
			}
			sort.SliceStable(archives, func(i, j int) bool {
				if sortDir == "asc" {
					return sortKey[archives[i].ID] < sortKey[archives[j].ID]
				}
				return sortKey[archives[i].ID] > sortKey[archives[j].ID]
			})

			start := (page - 1) * pageSize
			if start > len(archives) {
				start = len(archives)
			}
			end := start + pageSize
			if end > len(archives) {
				end = len(archives)
			}
			archives = archives[start:end]
		}

		items := make([]gin.H, 0, len(archives))
		for i := range archives {
			a := &archives[i]
			items = append(items, gin.H{
				"id":         a.ID,
				"title":      a.Title,
				"slug":       a.Slug,
				"status":     a.Status,
				"version":    a.Version,
				"author":     a.Author,
				"volume":     a.Volume,
				"file_count": len(a.Files),
				"downloads":  downloads[a.ID],
				"created_at": a.CreatedAt.Format("2006-01-02 15:04:05"),
			})
		}

		xerr.Success(c, http.StatusOK, "ok", gin.H{
			"items":     items,
			"total":     total,
			"page":      page,
			"page_size": pageSize,
		})
	}
}

// InitGetArchiveHandler 档案详情
// @Summary 档案详情
// @Tags 档案
// @Produce json
// @Param id path int true "档案 ID"
// @Success 200 {object} xerr.Response
// @Failure 404 {object} xerr.Response
// @Router /api/v1/archives/{id} [get]
func InitGetArchiveHandler(archiveSvc archive.ArchiveService, statsSvc stats.StatsService, store *settings.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "档案 ID 非法")
			return
		}

		a, err := archiveSvc.GetByID(id)
		if err != nil {
			if errors.Is(err, xerr.ErrArchiveNotFound) {
				xerr.Error(c, http.StatusNotFound, xerr.ArchiveNotFoundCode, err.Error())
				return
			}
			xerr.Error(c, http.StatusInternalServerError, xerr.DatabaseErrorCode, "查询档案失败")
			return
		}

		count, _ := statsSvc.ArchiveDownloads(c.Request.Context(), a.ID)
		xerr.Success(c, http.StatusOK, "ok", buildArchiveView(c, a, store, statsSvc, count))
	}
}

// InitCreateArchiveHandler 新建档案
// @Summary 新建档案
// @Tags 档案
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body archive.SaveInput true "档案内容"
// @Success 200 {object} xerr.Response "含文件级警告列表"
// @Failure 400 {object} xerr.Response
// @Router /api/v1/archives [post]
func InitCreateArchiveHandler(archiveSvc archive.ArchiveService) gin.HandlerFunc {
	return func(c *gin.Context) {
		input := archive.SaveInput{VolumeID: archive.VolumeNoChange}
		if err := c.ShouldBindJSON(&input); err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.ValidationFailedCode, err.Error())
			return
		}

		a, warnings, err := archiveSvc.Create(c.Request.Context(), input)
		if err != nil {
			writeArchiveSaveError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "档案已创建", gin.H{
			"id":       a.ID,
			"slug":     a.Slug,
			"warnings": warnings,
		})
	}
}

// InitSaveArchiveHandler 保存档案
// @Summary 保存档案
// @Description 全量替换档案元数据与文件列表，被移除文件的附件在无共享时清理
// @Tags 档案
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "档案 ID"
// @Param request body archive.SaveInput true "档案内容"
// @Success 200 {object} xerr.Response "含文件级警告列表"
// @Failure 404 {object} xerr.Response
// @Router /api/v1/archives/{id} [put]
func InitSaveArchiveHandler(archiveSvc archive.ArchiveService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "档案 ID 非法")
			return
		}

		input := archive.SaveInput{VolumeID: archive.VolumeNoChange}
		if err := c.ShouldBindJSON(&input); err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.ValidationFailedCode, err.Error())
			return
		}

		a, warnings, err := archiveSvc.Save(c.Request.Context(), id, input)
		if err != nil {
			writeArchiveSaveError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "档案已保存", gin.H{
			"id":       a.ID,
			"slug":     a.Slug,
			"status":   a.Status,
			"warnings": warnings,
		})
	}
}

func writeArchiveSaveError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, xerr.ErrArchiveNotFound):
		xerr.Error(c, http.StatusNotFound, xerr.ArchiveNotFoundCode, err.Error())
	case errors.Is(err, xerr.ErrVolumeNotFound):
		xerr.Error(c, http.StatusNotFound, xerr.VolumeNotFoundCode, err.Error())
	case errors.Is(err, xerr.ErrInvalidParams):
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
	default:
		xerr.Error(c, http.StatusInternalServerError, xerr.DatabaseErrorCode, "保存档案失败")
	}
}

// InitTrashArchiveHandler 档案移入回收站
// @Summary 档案移入回收站
// @Tags 档案
// @Produce json
// @Security BearerAuth
// @Param id path int true "档案 ID"
// @Success 200 {object} xerr.Response
// @Failure 404 {object} xerr.Response
// @Router /api/v1/archives/{id}/trash [post]
func InitTrashArchiveHandler(archiveSvc archive.ArchiveService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "档案 ID 非法")
			return
		}
		if err := archiveSvc.Trash(c.Request.Context(), id); err != nil {
			writeArchiveSaveError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "档案已移入回收站", nil)
	}
}

// InitDeleteArchiveHandler 彻底删除档案
// @Summary 彻底删除档案
// @Description 级联删除无共享的文件附件与档案专属目录
// @Tags 档案
// @Produce json
// @Security BearerAuth
// @Param id path int true "档案 ID"
// @Success 200 {object} xerr.Response
// @Failure 404 {object} xerr.Response
// @Router /api/v1/archives/{id} [delete]
func InitDeleteArchiveHandler(archiveSvc archive.ArchiveService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "档案 ID 非法")
			return
		}
		if err := archiveSvc.Delete(c.Request.Context(), id); err != nil {
			writeArchiveSaveError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "档案已删除", nil)
	}
}

// InitSearchArchivesHandler 档案搜索
// @Summary 档案全文搜索
// @Description 优先走 Elasticsearch，不可用时退回数据库模糊查询，只返回已发布档案
// @Tags 档案
// @Produce json
// @Param q query string true "关键字"
// @Param page query int false "页码"
// @Param page_size query int false "每页条数"
// @Success 200 {object} xerr.Response
// @Router /api/v1/archives/search [get]
func InitSearchArchivesHandler(searchSvc search.SearchService, provider settings.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		keyword := c.Query("q")
		if keyword == "" {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "搜索关键字不能为空")
			return
		}
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		pageSize, _ := strconv.Atoi(c.Query("page_size"))
		if pageSize <= 0 {
			pageSize = provider.Settings().ItemsPerPage
		}

		archives, total, err := searchSvc.Search(c.Request.Context(), keyword, page, pageSize)
		if err != nil {
			xerr.Error(c, http.StatusInternalServerError, xerr.SearchErrorCode, "搜索失败")
			return
		}

		items := make([]gin.H, 0, len(archives))
		for i := range archives {
			a := &archives[i]
			items = append(items, gin.H{
				"id":         a.ID,
				"title":      a.Title,
				"slug":       a.Slug,
				"version":    a.Version,
				"author":     a.Author,
				"file_count": len(a.Files),
			})
		}
		xerr.Success(c, http.StatusOK, "ok", gin.H{
			"items":     items,
			"total":     total,
			"page":      page,
			"page_size": pageSize,
		})
	}
}
