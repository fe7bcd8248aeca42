package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Config Errors (E100-E149)
	// ============================================

	"E101": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		Detail:   "No flagstream.json was found in the directory or any parent directory.",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		Detail:   "flagstream.json could not be read or parsed.",
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
		Detail:   "A configuration field holds a value outside its allowed range.",
	},
	"E104": {
		Category: CategoryConfig,
		Message:  "Invalid duration",
		Detail:   "A duration field could not be parsed. Use Go duration syntax such as \"30s\" or \"2m\".",
	},

	// ============================================
	// Service Errors (E200-E249)
	// ============================================

	"E201": {
		Category: CategoryService,
		Message:  "Flag service unreachable",
		Detail:   "The flag service did not respond at the configured address.",
	},
	"E202": {
		Category: CategoryService,
		Message:  "Flag service request failed",
		Detail:   "The flag service returned an error response.",
	},
	"E203": {
		Category: CategoryService,
		Message:  "Flag not found",
		Detail:   "The requested flag key is not present in the mapping.",
	},

	// ============================================
	// Archive Errors (E300-E349)
	// ============================================

	"E301": {
		Category: CategoryArchive,
		Message:  "Archive bucket not configured",
		Detail:   "Snapshot archiving requires an S3 bucket in the archive section of flagstream.json.",
	},
	"E302": {
		Category: CategoryArchive,
		Message:  "Archive operation failed",
		Detail:   "An S3 request made by the snapshot archiver returned an error.",
	},

	// ============================================
	// CLI Errors (E400-E449)
	// ============================================

	"E401": {
		Category: CategoryCLI,
		Message:  "Invalid flag value",
		Detail:   "The value argument could not be parsed as JSON.",
	},
}
