package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/gbbspro/gbbs-archive/internal/middlewares"
	"github.com/gbbspro/gbbs-archive/internal/pkg/logger"
	"github.com/gbbspro/gbbs-archive/internal/pkg/xerr"
	"github.com/gbbspro/gbbs-archive/internal/services/download"
	"github.com/gbbspro/gbbs-archive/internal/settings"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// requestMeta 组装下载请求的来访信息
func requestMeta(c *gin.Context, ipResolver download.ClientIPResolver) download.RequestMeta {
	userID := middlewares.CurrentUserID(c)
	return download.RequestMeta{
		UserID:    userID,
		LoggedIn:  userID != nil,
		IP:        ipResolver.ClientIP(c.Request),
		UserAgent: c.Request.UserAgent(),
		Referer:   c.Request.Referer(),
	}
}

// writeDownloadError 把服务层错误映射为终止响应
// 400 标识格式错误，403 拒绝访问，429 限流，404 资源缺失
func writeDownloadError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, xerr.ErrInvalidDownloadID):
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidDownloadIDCode, err.Error())
	case errors.Is(err, xerr.ErrLoginRequired):
		xerr.Error(c, http.StatusForbidden, xerr.LoginRequiredCode, err.Error())
	case errors.Is(err, xerr.ErrRateLimited):
		xerr.Error(c, http.StatusTooManyRequests, xerr.RateLimitedCode, err.Error())
	case errors.Is(err, xerr.ErrArchiveNotFound):
		xerr.Error(c, http.StatusNotFound, xerr.ArchiveNotFoundCode, err.Error())
	case errors.Is(err, xerr.ErrFileNotFound):
		xerr.Error(c, http.StatusNotFound, xerr.FileNotFoundCode, err.Error())
	case errors.Is(err, xerr.ErrBinaryNotFound):
		xerr.Error(c, http.StatusNotFound, xerr.BinaryNotFoundCode, err.Error())
	default:
		xerr.Error(c, http.StatusInternalServerError, xerr.InternalServerErrorCode, "下载请求处理失败")
	}
}

// HandleDownload 下载请求入口
// @Summary 下载档案文件
// @Description 按下载标识(档案引用-文件键)定位文件，本地文件直接下发，远程文件重定向
// @Tags 下载
// @Produce octet-stream
// @Param download_id path string true "下载标识，形如 12-a1b2c3 或 12-0"
// @Success 200 {file} binary "文件内容"
// @Failure 400 {object} xerr.Response "下载标识格式错误"
// @Failure 403 {object} xerr.Response "需要登录"
// @Failure 404 {object} xerr.Response "档案或文件不存在"
// @Failure 429 {object} xerr.Response "下载频率超限"
// @Router /{download_endpoint}/{download_id} [get]
func HandleDownload(downloadSvc download.DownloadService, ipResolver download.ClientIPResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		downloadID := strings.Trim(c.Param("download_id"), "/")
		serveDownload(c, downloadSvc, ipResolver, downloadID)
	}
}

func serveDownload(c *gin.Context, downloadSvc download.DownloadService, ipResolver download.ClientIPResolver, downloadID string) {
	if downloadID == "" {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidDownloadIDCode, "下载标识不能为空")
		return
	}

	res, err := downloadSvc.Resolve(c.Request.Context(), downloadID, requestMeta(c, ipResolver))
	if err != nil {
		writeDownloadError(c, err)
		return
	}

	// 远程文件重定向
	if res.LocalPath == "" {
		c.Redirect(http.StatusFound, res.FileURL)
		return
	}

	f, err := os.Open(res.LocalPath)
	if err != nil {
		logger.Error("打开下载文件失败", zap.String("path", res.LocalPath), zap.Error(err))
		xerr.Error(c, http.StatusNotFound, xerr.BinaryNotFoundCode, xerr.ErrBinaryNotFound.Error())
		return
	}
	defer f.Close()

	// 附件下发，禁用缓存，给出精确长度
	extraHeaders := map[string]string{
		"Content-Description": "File Transfer",
		"Content-Disposition": `attachment; filename="` + res.FileName + `"`,
		"Cache-Control":       "no-cache, no-store, must-revalidate",
		"Pragma":              "no-cache",
		"Expires":             "0",
	}
	c.DataFromReader(http.StatusOK, res.Size, "application/octet-stream", f, extraHeaders)
}

// HandleBundle 档案打包下载
// @Summary 打包下载档案全部文件
// @Description 把档案的全部本地文件打成一个 zip 下发
// @Tags 下载
// @Produce octet-stream
// @Param archive_ref path string true "档案 ID 或 slug"
// @Success 200 {file} binary "zip 包"
// @Failure 404 {object} xerr.Response "档案不存在或无可打包文件"
// @Router /{download_endpoint}/{archive_ref}/bundle [get]
func HandleBundle(downloadSvc download.DownloadService, ipResolver download.ClientIPResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		archiveRef := strings.Trim(c.Param("archive_ref"), "/")
		serveBundle(c, downloadSvc, archiveRef)
	}
}

func serveBundle(c *gin.Context, downloadSvc download.DownloadService, archiveRef string) {
	if archiveRef == "" {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "档案引用不能为空")
		return
	}

	var buf bytes.Buffer
	name, err := downloadSvc.WriteBundle(c.Request.Context(), archiveRef, &buf)
	if err != nil {
		writeDownloadError(c, err)
		return
	}

	extraHeaders := map[string]string{
		"Content-Disposition": `attachment; filename="` + name + `"`,
		"Cache-Control":       "no-cache, no-store, must-revalidate",
	}
	c.DataFromReader(http.StatusOK, int64(buf.Len()), "application/zip", &buf, extraHeaders)
}

// DownloadDispatch 处理可配置端点下的下载路由
// 下载端点名是运行时设置，无法静态注册，挂在 NoRoute 上按当前设置分发
// 同时兼容未开启美化 URL 时的查询参数形式 /?{endpoint}={download_id}
func DownloadDispatch(downloadSvc download.DownloadService, ipResolver download.ClientIPResolver, provider settings.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Status(http.StatusNotFound)
			return
		}

		endpoint := provider.Settings().DownloadEndpoint

		// 查询参数形式
		if downloadID := c.Query(endpoint); downloadID != "" {
			serveDownload(c, downloadSvc, ipResolver, downloadID)
			return
		}

		// 美化 URL 形式 /{endpoint}/{download_id}/ 或 /{endpoint}/{archive_ref}/bundle
		parts := strings.Split(strings.Trim(c.Request.URL.Path, "/"), "/")
		if len(parts) < 2 || parts[0] != endpoint {
			c.Status(http.StatusNotFound)
			return
		}
		if len(parts) == 3 && parts[2] == "bundle" {
			serveBundle(c, downloadSvc, parts[1])
			return
		}
		if len(parts) == 2 {
			serveDownload(c, downloadSvc, ipResolver, parts[1])
			return
		}
		c.Status(http.StatusNotFound)
	}
}
