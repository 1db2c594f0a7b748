package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gbbspro/gbbs-archive/internal/pkg/xerr"
	"github.com/gbbspro/gbbs-archive/internal/services/upload"
	"github.com/gin-gonic/gin"
)

// InitUploadHandler 上传档案文件
// @Summary 上传档案文件
// @Description 通过 multipart 表单上传，archive_id 为 0 时文件落在 temp 目录，待档案保存时搬迁
// @Tags 上传
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "文件"
// @Param archive_id formData int false "档案 ID，0 表示尚未保存的档案"
// @Param volume_slug formData string false "卷 slug，按卷组织存储时使用"
// @Success 200 {object} xerr.Response "附件记录"
// @Failure 400 {object} xerr.Response "类型不允许或文件过大"
// @Router /api/v1/upload [post]
func InitUploadHandler(uploadSvc upload.UploadService) gin.HandlerFunc {
	return func(c *gin.Context) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "请选择要上传的文件")
			return
		}
		archiveID, _ := strconv.ParseUint(c.PostForm("archive_id"), 10, 64)
		volumeSlug := c.PostForm("volume_slug")

		src, err := fileHeader.Open()
		if err != nil {
			xerr.Error(c, http.StatusInternalServerError, xerr.InternalServerErrorCode, "读取上传文件失败")
			return
		}
		defer src.Close()

		contentType := fileHeader.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		attachment, err := uploadSvc.Upload(
			c.Request.Context(),
			archiveID, volumeSlug,
			fileHeader.Filename, contentType, fileHeader.Size, src,
		)
		if err != nil {
			switch {
			case errors.Is(err, xerr.ErrFileTypeNotAllowed):
				xerr.Error(c, http.StatusBadRequest, xerr.FileTypeNotAllowedCode, err.Error())
			case errors.Is(err, xerr.ErrFileTooLarge):
				xerr.Error(c, http.StatusBadRequest, xerr.FileTooLargeCode, err.Error())
			case errors.Is(err, xerr.ErrInvalidParams):
				xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "文件名非法")
			case errors.Is(err, xerr.ErrStorageError):
				xerr.Error(c, http.StatusInternalServerError, xerr.StorageErrorCode, err.Error())
			default:
				xerr.Error(c, http.StatusInternalServerError, xerr.DatabaseErrorCode, "上传失败")
			}
			return
		}

		xerr.Success(c, http.StatusOK, "上传成功", gin.H{
			"attachment_id": attachment.ID,
			"file_name":     attachment.FileName,
			"url":           attachment.URL,
			"mime_type":     attachment.MimeType,
			"size":          attachment.Size,
		})
	}
}
