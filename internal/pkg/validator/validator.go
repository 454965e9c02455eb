package validator

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/futig/manual-assistant/internal/config"
	"github.com/futig/manual-assistant/internal/entity"
)

var AllowedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".txt":  true,
	".md":   true,
}

const maxMessageLength = 4000

var languageCode = regexp.MustCompile(`^[a-z]{2}(-[A-Za-z]{2})?$`)

// Validator validates uploads and chat requests
type Validator struct {
	cfg config.FileUploadConfig
}

func NewValidator(cfg config.FileUploadConfig) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateUpload checks a manual file's name and size.
func (v *Validator) ValidateUpload(filename string, size int64) error {
	if strings.TrimSpace(filename) == "" {
		return fmt.Errorf("%w: file", entity.ErrMissingField)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !AllowedExtensions[ext] {
		return fmt.Errorf("%w: %q (allowed: pdf, docx, txt, md)", entity.ErrInvalidExtension, ext)
	}

	if size <= 0 {
		return fmt.Errorf("%w: file '%s' is empty", entity.ErrInvalidFile, filename)
	}
	if size > v.cfg.MaxFileSize {
		return fmt.Errorf("%w: file '%s' is %d bytes (max %d)", entity.ErrFileTooLarge, filename, size, v.cfg.MaxFileSize)
	}

	return nil
}

// ValidateManualMetadata checks optional metadata fields for shape only.
func (v *Validator) ValidateManualMetadata(meta *entity.ManualMetadata) error {
	if meta.Language != "" && !languageCode.MatchString(meta.Language) {
		return fmt.Errorf("%w: language %q", entity.ErrInvalidFormat, meta.Language)
	}
	if meta.Year != "" {
		if _, err := time.Parse("2006", meta.Year); err != nil {
			return fmt.Errorf("%w: year %q", entity.ErrInvalidFormat, meta.Year)
		}
	}
	return nil
}

// ValidateChat checks a chat request.
func (v *Validator) ValidateChat(req *entity.ChatRequest) error {
	if strings.TrimSpace(req.Message) == "" {
		return fmt.Errorf("%w: message", entity.ErrMissingField)
	}
	if len(req.Message) > maxMessageLength {
		return fmt.Errorf("%w: message longer than %d characters", entity.ErrInvalidParameter, maxMessageLength)
	}
	if req.PurchaseDate != "" {
		if _, err := time.Parse(time.DateOnly, req.PurchaseDate); err != nil {
			return fmt.Errorf("%w: purchase_date must be YYYY-MM-DD", entity.ErrInvalidFormat)
		}
	}
	for name, lang := range map[string]string{"source_language": req.SourceLanguage, "responseLanguage": req.ResponseLanguage} {
		if lang != "" && !languageCode.MatchString(lang) {
			return fmt.Errorf("%w: %s %q", entity.ErrInvalidFormat, name, lang)
		}
	}
	return nil
}

// SanitizeFilename sanitizes a filename for safe storage
func SanitizeFilename(filename string) string {
	filename = filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	replacer := strings.NewReplacer(
		" ", "_",
		"(", "",
		")", "",
		"[", "",
		"]", "",
		"{", "",
		"}", "",
		"..", "",
	)
	filename = replacer.Replace(filename)
	if filename == "" || filename == "." || filename == "/" {
		return ""
	}
	return filename
}
