// Package smartscanner implements the Smart Scanner: profile-driven
// relevance scoring and tier bucketing of filesystem entries, plus the
// quick-scan/profile-detection pass that proposes a profile for an
// unfamiliar directory.
//
// Directory traversal and ignore-rule layering follow the shape of the
// teacher's scanner.Scanner (internal/scanner/scanner.go); glob matching is
// built on ignorerules, adapted from the teacher's gitignore matcher.
package smartscanner

// Profile names a target use case; each carries its own permitted
// extensions, size ceiling, and image policy.
type Profile string

const (
	ProfileDeveloper   Profile = "developer"
	ProfilePhotographer Profile = "photographer"
	ProfileDesigner    Profile = "designer"
	ProfileWriter      Profile = "writer"
	ProfileStudent     Profile = "student"
	ProfileBusiness    Profile = "business"
	ProfileCustom      Profile = "custom"
)

// ProfileSpec is the tunable surface a Profile resolves to.
type ProfileSpec struct {
	Profile             Profile
	PermittedExtensions map[string]struct{}
	MaxFileSize         int64
	IncludeImages       bool
	// ExtensionImportance optionally overrides the computed extension-match
	// score for specific extensions, blended 50/50.
	ExtensionImportance map[string]float64
}

const defaultMaxFileSize = 200 * 1024 * 1024

func extSet(exts ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		m[e] = struct{}{}
	}
	return m
}

// BuiltinProfiles returns the spec's seven named profiles. Custom is a
// blank template callers fill in themselves.
func BuiltinProfiles() map[Profile]ProfileSpec {
	return map[Profile]ProfileSpec{
		ProfileDeveloper: {
			Profile: ProfileDeveloper,
			PermittedExtensions: extSet(
				"go", "rs", "ts", "tsx", "js", "jsx", "py", "java", "c", "cpp", "h", "hpp",
				"rb", "php", "sh", "json", "yaml", "yml", "toml", "md", "sql",
			),
			MaxFileSize:   10 * 1024 * 1024,
			IncludeImages: false,
		},
		ProfilePhotographer: {
			Profile:             ProfilePhotographer,
			PermittedExtensions: extSet("jpg", "jpeg", "png", "tiff", "tif", "raw", "cr2", "nef", "arw", "dng", "heic"),
			MaxFileSize:         defaultMaxFileSize,
			IncludeImages:       true,
		},
		ProfileDesigner: {
			Profile:             ProfileDesigner,
			PermittedExtensions: extSet("fig", "sketch", "psd", "ai", "svg", "png", "jpg", "jpeg", "pdf"),
			MaxFileSize:         defaultMaxFileSize,
			IncludeImages:       true,
		},
		ProfileWriter: {
			Profile:             ProfileWriter,
			PermittedExtensions: extSet("md", "txt", "doc", "docx", "odt", "rtf", "scriv", "pdf"),
			MaxFileSize:         20 * 1024 * 1024,
			IncludeImages:       false,
		},
		ProfileStudent: {
			Profile:             ProfileStudent,
			PermittedExtensions: extSet("pdf", "doc", "docx", "ppt", "pptx", "md", "txt", "ipynb", "py"),
			MaxFileSize:         50 * 1024 * 1024,
			IncludeImages:       false,
		},
		ProfileBusiness: {
			Profile:             ProfileBusiness,
			PermittedExtensions: extSet("doc", "docx", "xls", "xlsx", "ppt", "pptx", "pdf", "csv"),
			MaxFileSize:         50 * 1024 * 1024,
			IncludeImages:       false,
		},
		ProfileCustom: {
			Profile:             ProfileCustom,
			PermittedExtensions: map[string]struct{}{},
			MaxFileSize:         defaultMaxFileSize,
			IncludeImages:       false,
		},
	}
}
