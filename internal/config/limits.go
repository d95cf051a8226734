package config

const (
	// MaxFolderNameLength is the maximum length for folder names.
	// Matches the VARCHAR(384) name column.
	MaxFolderNameLength = 384

	// MaxFolderIDLength is the maximum length for folder identifiers,
	// including path-encoded ones. Matches the VARCHAR(192) id columns.
	MaxFolderIDLength = 192

	// MaxDelimiterLength bounds the path delimiter of virtual folder ids
	MaxDelimiterLength = 8
)
