package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gbbspro/gbbs-archive/internal/models"
	"github.com/gbbspro/gbbs-archive/internal/pkg/xerr"
	"github.com/gbbspro/gbbs-archive/internal/repositories"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// VolumeRequest 卷的创建与更新请求体
type VolumeRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

// InitListVolumesHandler 卷列表
// @Summary 卷列表
// @Tags 卷
// @Produce json
// @Success 200 {object} xerr.Response
// @Router /api/v1/volumes [get]
func InitListVolumesHandler(volumeRepo repositories.VolumeRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		volumes, err := volumeRepo.List()
		if err != nil {
			xerr.Error(c, http.StatusInternalServerError, xerr.DatabaseErrorCode, "查询卷列表失败")
			return
		}
		xerr.Success(c, http.StatusOK, "ok", volumes)
	}
}

// InitCreateVolumeHandler 新建卷
// @Summary 新建卷
// @Tags 卷
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body VolumeRequest true "卷信息"
// @Success 200 {object} xerr.Response
// @Failure 409 {object} xerr.Response "slug 已存在"
// @Router /api/v1/volumes [post]
func InitCreateVolumeHandler(volumeRepo repositories.VolumeRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req VolumeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.ValidationFailedCode, err.Error())
			return
		}

		volume := &models.Volume{
			Name:        req.Name,
			Slug:        req.Slug,
			Description: req.Description,
		}
		if volume.Slug == "" {
			volume.Slug = req.Name
		}

		// slug 唯一，冲突返回 409
		if _, err := volumeRepo.FindBySlug(volume.Slug); err == nil {
			xerr.Error(c, http.StatusConflict, xerr.VolumeAlreadyExistsCode, xerr.ErrVolumeAlreadyExists.Error())
			return
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			xerr.Error(c, http.StatusInternalServerError, xerr.DatabaseErrorCode, "查询卷失败")
			return
		}

		if err := volumeRepo.Create(volume); err != nil {
			xerr.Error(c, http.StatusInternalServerError, xerr.DatabaseErrorCode, "创建卷失败")
			return
		}
		xerr.Success(c, http.StatusOK, "卷已创建", volume)
	}
}

// InitUpdateVolumeHandler 更新卷
// @Summary 更新卷
// @Tags 卷
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "卷 ID"
// @Param request body VolumeRequest true "卷信息"
// @Success 200 {object} xerr.Response
// @Failure 404 {object} xerr.Response
// @Router /api/v1/volumes/{id} [put]
func InitUpdateVolumeHandler(volumeRepo repositories.VolumeRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "卷 ID 非法")
			return
		}

		var req VolumeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.ValidationFailedCode, err.Error())
			return
		}

		volume, err := volumeRepo.FindByID(id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				xerr.Error(c, http.StatusNotFound, xerr.VolumeNotFoundCode, xerr.ErrVolumeNotFound.Error())
				return
			}
			xerr.Error(c, http.StatusInternalServerError, xerr.DatabaseErrorCode, "查询卷失败")
			return
		}

		volume.Name = req.Name
		if req.Slug != "" {
			volume.Slug = req.Slug
		}
		volume.Description = req.Description
		if err := volumeRepo.Update(volume); err != nil {
			xerr.Error(c, http.StatusInternalServerError, xerr.DatabaseErrorCode, "更新卷失败")
			return
		}
		xerr.Success(c, http.StatusOK, "卷已更新", volume)
	}
}

// InitDeleteVolumeHandler 删除卷
// @Summary 删除卷
// @Description 只删除卷本身，卷内档案的卷分配由外键置空
// @Tags 卷
// @Produce json
// @Security BearerAuth
// @Param id path int true "卷 ID"
// @Success 200 {object} xerr.Response
// @Router /api/v1/volumes/{id} [delete]
func InitDeleteVolumeHandler(volumeRepo repositories.VolumeRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "卷 ID 非法")
			return
		}
		if err := volumeRepo.Delete(id); err != nil {
			xerr.Error(c, http.StatusInternalServerError, xerr.DatabaseErrorCode, "删除卷失败")
			return
		}
		xerr.Success(c, http.StatusOK, "卷已删除", nil)
	}
}
