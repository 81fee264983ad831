package meow

import (
	"path/filepath"
	"strings"
)

// Keyword tokens substituted into string parameter values during handling.
const (
	KeywordPath      = "{PATH}"
	KeywordRelPath   = "{REL_PATH}"
	KeywordDir       = "{DIR}"
	KeywordRelDir    = "{REL_DIR}"
	KeywordFilename  = "{FILENAME}"
	KeywordPrefix    = "{PREFIX}"
	KeywordBase      = "{BASE}"
	KeywordExtension = "{EXTENSION}"
	KeywordJob       = "{JOB}"
)

// ExpandKeywords substitutes every keyword token in every string value of
// params with a value derived from the triggering path and monitor base.
// Non-string values pass through unchanged. The result is a new map; params
// is never mutated. Idempotent on strings that contain no keywords, and on
// a dict that has already been expanded (since the derived values never
// themselves contain brace tokens under normal paths).
func ExpandKeywords(params map[string]any, jobID, srcPath, monitorBase string) map[string]any {
	filename := filepath.Base(srcPath)
	dir := filepath.Dir(srcPath)
	relPath, err := filepath.Rel(monitorBase, srcPath)
	if err != nil {
		relPath = srcPath
	}
	relDir := filepath.Dir(relPath)
	ext := filepath.Ext(filename)
	prefix := strings.TrimSuffix(filename, ext)

	replacer := strings.NewReplacer(
		KeywordPath, srcPath,
		KeywordRelPath, relPath,
		KeywordDir, dir,
		KeywordRelDir, relDir,
		KeywordFilename, filename,
		KeywordPrefix, prefix,
		KeywordBase, monitorBase,
		KeywordExtension, ext,
		KeywordJob, jobID,
	)

	out := make(map[string]any, len(params))
	for k, v := range params {
		if s, ok := v.(string); ok {
			out[k] = replacer.Replace(s)
		} else {
			out[k] = v
		}
	}
	return out
}
