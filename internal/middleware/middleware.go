package middleware

const (
	// file permissions
	ReadFilePermission     = "read:file"
	WriteFilePermission    = "write:file"
	DeleteFilePermission   = "delete:file"
	DownloadFilePermission = "download:file"

	// tag permissions
	WriteTagPermission    = "write:tag"
	DownloadTagPermission = "download:tag"

	// review permissions
	ReviewPermission = "review:permission"

	// Admin permissions (for backward compatibility)
	AdminPermission   = "admin"
	ManagerPermission = "manager"
)
