package xerr

// 定义了统一的业务错误码
const (
	SuccessCode = 20000 // 通用成功码

	// --- 客户端请求错误系列 (400xx) ---
	InvalidParamsCode      = 40000 // 无效的请求参数
	ValidationFailedCode   = 40001 // 参数验证失败
	InvalidDownloadIDCode  = 40002 // 下载标识格式错误
	FileTooLargeCode       = 40003 // 文件过大
	FileTypeNotAllowedCode = 40004 // 文件类型不在允许列表中
	InvalidFileURLCode     = 40005 // 文件 URL 非法

	// --- 认证与授权错误系列 (401xx) ---
	UnauthorizedCode       = 40100 // 通用未授权
	TokenInvalidCode       = 40101 // Token 无效或过期
	InvalidCredentialsCode = 40102 // 用户名或密码错误
	LoginRequiredCode      = 40103 // 下载需要登录

	// --- 权限错误系列 (403xx) ---
	ForbiddenCode        = 40300 // 通用无权限
	PermissionDeniedCode = 40301 // 角色权限不足

	// --- 资源未找到错误系列 (404xx) ---
	NotFoundCode           = 40400 // 通用资源未找到
	ArchiveNotFoundCode    = 40401 // 软件档案不存在或未发布
	FileNotFoundCode       = 40402 // 档案中不存在该文件
	BinaryNotFoundCode     = 40403 // 磁盘上找不到文件实体
	VolumeNotFoundCode     = 40404 // 卷不存在
	UserNotFoundCode       = 40405 // 用户不存在
	AttachmentNotFoundCode = 40406 // 附件记录不存在

	// --- 业务逻辑冲突系列 (409xx) ---
	UserAlreadyExistsCode  = 40900 // 用户名已存在
	SettingsConflictCode   = 40901 // 设置被并发修改
	VolumeAlreadyExistsCode = 40902 // 卷已存在

	// --- 请求频率限制 (429xx) ---
	RateLimitedCode = 42900 // 下载频率超出限制

	// --- 服务器内部错误系列 (500xx) ---
	InternalServerErrorCode = 50000 // 服务器内部通用错误
	DatabaseErrorCode       = 50001 // 数据库操作失败
	StorageErrorCode        = 50002 // 存储服务操作失败
	SearchErrorCode         = 50003 // 搜索服务操作失败
)
