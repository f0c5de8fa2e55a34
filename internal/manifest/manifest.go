// Package manifest validates and parses uploaded pip requirement manifests.
// Rejections carry the HTTP status the API surfaces for them.
package manifest

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/cassiama/LicenseGuard-API/internal/apierr"
)

// Only .txt files with this MIME type are accepted. The content type may
// carry a ";charset=..." suffix, which is ignored.
const allowedContentType = "text/plain"

// Upload is the subset of a multipart file upload validation needs.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// A named requirement: "name", optionally with extras, a version specifier,
// and an environment marker after ";".
var requirementRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*(\[[^\]]*\])?\s*((===|==|~=|!=|<=|>=|<|>)\s*[^;]+)?\s*(;.*)?$`)

// Direct references ("name @ url") keep their name and are accepted whole.
var directRefRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*(\[[^\]]*\])?\s*@\s*\S+$`)

// Validate runs the fixed media-type → extension → empty → encoding →
// parseable check order and short-circuits on the first failure.
func Validate(up Upload) error {
	if err := ValidateMeta(up); err != nil {
		return err
	}
	return ValidateContent(up.Data)
}

// ValidateMeta checks the upload's media type and filename extension.
func ValidateMeta(up Upload) error {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(up.ContentType, ";", 2)[0]))
	if ct != allowedContentType {
		return apierr.New(http.StatusUnsupportedMediaType, "unsupported_media_type",
			errors.New("Upload a text/plain requirements.txt file."))
	}
	if !strings.HasSuffix(strings.ToLower(up.Filename), ".txt") {
		return apierr.New(http.StatusUnprocessableEntity, "bad_extension",
			errors.New("File must have .txt extension."))
	}
	return nil
}

// ValidateContent checks the body: non-empty, UTF-8, and parseable into at
// least one named requirement.
func ValidateContent(data []byte) error {
	if len(data) == 0 {
		return apierr.New(http.StatusBadRequest, "empty_file",
			errors.New("File is empty."))
	}
	if !utf8.Valid(data) {
		return apierr.New(http.StatusUnprocessableEntity, "bad_encoding",
			errors.New("Text file is malformed and cannot be decoded."))
	}
	_, err := Parse(data)
	return err
}

// Parse extracts the named requirement lines from a manifest, preserved
// verbatim (trimmed) in file order. Directive lines starting with "-"
// (editable installs, includes, constraints), blank lines and comments are
// skipped; nameless entries such as bare URLs are dropped the way
// requirements parsers drop them. A line that is none of those and still
// fails to parse rejects the whole file.
func Parse(data []byte) ([]string, error) {
	var reqs []string
	for _, rawLine := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		line = stripInlineComment(line)
		if line == "" {
			continue
		}
		if isNameless(line) {
			continue
		}
		if !requirementRe.MatchString(line) && !directRefRe.MatchString(line) {
			return nil, apierr.New(http.StatusUnprocessableEntity, "invalid_file",
				errors.New("Invalid requirements.txt file."))
		}
		reqs = append(reqs, line)
	}
	if len(reqs) == 0 {
		return nil, apierr.New(http.StatusUnprocessableEntity, "no_requirements",
			errors.New("No requirements found."))
	}
	return reqs, nil
}

func stripInlineComment(line string) string {
	if idx := strings.Index(line, " #"); idx >= 0 {
		line = line[:idx]
	}
	return strings.TrimSpace(line)
}

func isNameless(line string) bool {
	lower := strings.ToLower(line)
	for _, prefix := range []string{"http://", "https://", "git+", "file:", "./", "../", "/"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
