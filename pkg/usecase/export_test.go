package usecase

var (
	DecodeRecords     = decodeRecords
	ArchiveObjectName = archiveObjectName
)
