package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

const (
	MimeAudio       = "audio/"
	MimeOctetStream = "application/octet-stream"
	MimeXLSX        = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	AllowedAudioExtensions = []string{".mp3", ".wav", ".m4a", ".ogg", ".aac"}

	// MaxAudioSize 听力音频上传上限 50MB
	MaxAudioSize int64 = 50 << 20
	// MaxImportSize 题库导入文件上限 10MB
	MaxImportSize int64 = 10 << 20
)
