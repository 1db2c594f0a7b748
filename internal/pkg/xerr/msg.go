package xerr

import "errors"

var (
	// 通用错误
	ErrInternalServer = errors.New("服务器内部错误")

	// 客户端请求错误
	ErrInvalidParams      = errors.New("无效的请求参数")
	ErrInvalidDownloadID  = errors.New("下载标识格式错误")
	ErrFileTooLarge       = errors.New("文件超出配置的大小上限")
	ErrFileTypeNotAllowed = errors.New("文件类型不在允许列表中")
	ErrInvalidFileURL     = errors.New("文件 URL 非法")

	// 认证与授权错误
	ErrUnauthorized       = errors.New("用户未授权")
	ErrTokenInvalid       = errors.New("认证 Token 无效或已过期")
	ErrInvalidCredentials = errors.New("用户名或密码不正确")
	ErrLoginRequired      = errors.New("下载该文件需要登录")
	ErrUserAlreadyExists  = errors.New("该用户名已被注册")

	// 权限错误
	ErrPermissionDenied = errors.New("您没有操作此资源的权限")

	// 缓存错误
	ErrEmptyCache = errors.New("缓存为空")

	// 资源未找到错误
	ErrArchiveNotFound    = errors.New("软件档案不存在或未发布")
	ErrFileNotFound       = errors.New("档案中不存在该文件")
	ErrBinaryNotFound     = errors.New("请求的文件可能已被移动或删除")
	ErrVolumeNotFound     = errors.New("卷不存在")
	ErrUserNotFound       = errors.New("用户不存在")
	ErrAttachmentNotFound = errors.New("附件记录不存在")

	// 业务逻辑冲突
	ErrSettingsConflict    = errors.New("设置已被其他请求修改，请重试")
	ErrVolumeAlreadyExists = errors.New("同名卷已存在")

	// 请求频率限制
	ErrRateLimited = errors.New("下载频率超出限制，请稍后再试")

	// 数据库与外部服务错误
	ErrDatabaseError = errors.New("数据库操作失败")
	ErrStorageError  = errors.New("存储服务操作失败")
	ErrSearchError   = errors.New("搜索服务操作失败")
)
