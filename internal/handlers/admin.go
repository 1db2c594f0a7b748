package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gbbspro/gbbs-archive/internal/pkg/xerr"
	"github.com/gbbspro/gbbs-archive/internal/services/stats"
	"github.com/gbbspro/gbbs-archive/internal/settings"
	"github.com/gin-gonic/gin"
)

// InitGetSettingsHandler 读取全部设置
// @Summary 读取全部设置
// @Tags 设置
// @Produce json
// @Security BearerAuth
// @Success 200 {object} xerr.Response
// @Router /api/v1/settings [get]
func InitGetSettingsHandler(store *settings.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		xerr.Success(c, http.StatusOK, "ok", gin.H{
			"settings": store.Settings(),
			"version":  store.Version(),
		})
	}
}

// InitUpdateSettingsHandler 更新设置
// @Summary 更新设置
// @Description 提交的键值经过净化后合并，复选框按键是否出现判定，数值越界取就近边界
// @Tags 设置
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body map[string]any true "设置键值"
// @Success 200 {object} xerr.Response
// @Failure 409 {object} xerr.Response "设置被并发修改"
// @Router /api/v1/settings [put]
func InitUpdateSettingsHandler(store *settings.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input map[string]any
		if err := c.ShouldBindJSON(&input); err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.ValidationFailedCode, err.Error())
			return
		}

		if err := store.ApplyInput(input); err != nil {
			if errors.Is(err, xerr.ErrSettingsConflict) {
				xerr.Error(c, http.StatusConflict, xerr.SettingsConflictCode, err.Error())
				return
			}
			xerr.Error(c, http.StatusInternalServerError, xerr.DatabaseErrorCode, "保存设置失败")
			return
		}
		xerr.Success(c, http.StatusOK, "设置已保存", gin.H{
			"settings": store.Settings(),
			"version":  store.Version(),
		})
	}
}

// InitResetSettingsHandler 恢复默认设置
// @Summary 恢复默认设置
// @Tags 设置
// @Produce json
// @Security BearerAuth
// @Success 200 {object} xerr.Response
// @Router /api/v1/settings/reset [post]
func InitResetSettingsHandler(store *settings.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := store.ResetToDefaults(); err != nil {
			xerr.Error(c, http.StatusInternalServerError, xerr.DatabaseErrorCode, "恢复默认设置失败")
			return
		}
		xerr.Success(c, http.StatusOK, "已恢复默认设置", store.Settings())
	}
}

// InitExportSettingsHandler 导出设置
// @Summary 导出设置
// @Description 以 JSON 附件形式导出当前设置快照
// @Tags 设置
// @Produce json
// @Security BearerAuth
// @Success 200 {object} settings.Aggregate
// @Router /api/v1/settings/export [get]
func InitExportSettingsHandler(store *settings.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Disposition", `attachment; filename="gbbs-archive-settings.json"`)
		c.JSON(http.StatusOK, store.Export())
	}
}

// InitImportSettingsHandler 导入设置
// @Summary 导入设置
// @Description 导入的键值走与表单提交相同的净化管线，未知键被丢弃
// @Tags 设置
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body map[string]any true "导出的设置 JSON"
// @Success 200 {object} xerr.Response
// @Router /api/v1/settings/import [post]
func InitImportSettingsHandler(store *settings.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input map[string]any
		if err := c.ShouldBindJSON(&input); err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.ValidationFailedCode, err.Error())
			return
		}
		if err := store.Import(input); err != nil {
			if errors.Is(err, xerr.ErrSettingsConflict) {
				xerr.Error(c, http.StatusConflict, xerr.SettingsConflictCode, err.Error())
				return
			}
			xerr.Error(c, http.StatusInternalServerError, xerr.DatabaseErrorCode, "导入设置失败")
			return
		}
		xerr.Success(c, http.StatusOK, "设置已导入", store.Settings())
	}
}

// InitListFileTypesHandler 文件类型目录
// @Summary 文件类型目录
// @Description 按类别分组列出受支持的文件类型及其启用状态
// @Tags 设置
// @Produce json
// @Security BearerAuth
// @Success 200 {object} xerr.Response
// @Router /api/v1/settings/file-types [get]
func InitListFileTypesHandler(registry *settings.FileTypeRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		xerr.Success(c, http.StatusOK, "ok", gin.H{
			"categories": registry.DefinitionsByCategory(),
			"stats":      registry.Stats(),
		})
	}
}

// InitToggleFileTypeCategoryHandler 按类别批量启停文件类型
// @Summary 按类别批量启停文件类型
// @Tags 设置
// @Produce json
// @Security BearerAuth
// @Param category path string true "类别 disk_images/programs/archives/documentation"
// @Param action path string true "enable 或 disable"
// @Success 200 {object} xerr.Response
// @Failure 400 {object} xerr.Response
// @Router /api/v1/settings/file-types/{category}/{action} [post]
func InitToggleFileTypeCategoryHandler(registry *settings.FileTypeRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		category := c.Param("category")
		switch category {
		case settings.TypeCategoryDiskImages, settings.TypeCategoryPrograms,
			settings.TypeCategoryArchives, settings.TypeCategoryDocumentation:
		default:
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "未知的文件类型类别")
			return
		}

		var err error
		switch c.Param("action") {
		case "enable":
			err = registry.EnableCategory(category)
		case "disable":
			err = registry.DisableCategory(category)
		default:
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "action 只能是 enable 或 disable")
			return
		}
		if err != nil {
			xerr.Error(c, http.StatusInternalServerError, xerr.DatabaseErrorCode, "更新文件类型失败")
			return
		}
		xerr.Success(c, http.StatusOK, "文件类型已更新", registry.Stats())
	}
}

// InitStatsHandler 统计汇总
// @Summary 统计汇总
// @Description 档案数、文件数、总大小、下载总数、卷数量与最新档案时间，聚合项缓存 1 小时
// @Tags 统计
// @Produce json
// @Param search query string false "关键字过滤"
// @Param volume_id query int false "卷过滤"
// @Success 200 {object} xerr.Response
// @Router /api/v1/stats [get]
func InitStatsHandler(statsSvc stats.StatsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		volumeID, _ := strconv.ParseUint(c.Query("volume_id"), 10, 64)
		result, err := statsSvc.ArchiveStats(c.Request.Context(), c.Query("search"), volumeID)
		if err != nil {
			xerr.Error(c, http.StatusInternalServerError, xerr.DatabaseErrorCode, "统计查询失败")
			return
		}
		xerr.Success(c, http.StatusOK, "ok", result)
	}
}

// InitRecentDownloadsHandler 最近下载记录
// @Summary 最近下载记录
// @Tags 统计
// @Produce json
// @Security BearerAuth
// @Param limit query int false "条数，默认 20，上限 100"
// @Success 200 {object} xerr.Response
// @Router /api/v1/stats/recent-downloads [get]
func InitRecentDownloadsHandler(statsSvc stats.StatsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		if limit <= 0 {
			limit = 20
		}
		if limit > 100 {
			limit = 100
		}
		records, err := statsSvc.RecentDownloads(c.Request.Context(), limit)
		if err != nil {
			xerr.Error(c, http.StatusInternalServerError, xerr.DatabaseErrorCode, "查询下载记录失败")
			return
		}
		xerr.Success(c, http.StatusOK, "ok", records)
	}
}

// InitClearStatsCacheHandler 清除统计缓存
// @Summary 清除统计缓存
// @Tags 统计
// @Produce json
// @Security BearerAuth
// @Success 200 {object} xerr.Response
// @Router /api/v1/stats/cache [delete]
func InitClearStatsCacheHandler(statsSvc stats.StatsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := statsSvc.ClearStatsCache(c.Request.Context()); err != nil {
			xerr.Error(c, http.StatusInternalServerError, xerr.InternalServerErrorCode, "清除缓存失败")
			return
		}
		xerr.Success(c, http.StatusOK, "统计缓存已清除", nil)
	}
}
