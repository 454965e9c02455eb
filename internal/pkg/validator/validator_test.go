package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/futig/manual-assistant/internal/config"
	"github.com/futig/manual-assistant/internal/entity"
)

func TestValidator_ValidateUpload(t *testing.T) {
	v := NewValidator(config.FileUploadConfig{MaxFileSize: 1024})

	tests := []struct {
		name     string
		filename string
		size     int64
		wantErr  error
	}{
		{"pdf ok", "manual.pdf", 100, nil},
		{"upper case extension", "MANUAL.PDF", 100, nil},
		{"docx ok", "manual.docx", 100, nil},
		{"bad extension", "manual.exe", 100, entity.ErrInvalidExtension},
		{"too large", "manual.pdf", 2048, entity.ErrFileTooLarge},
		{"empty", "manual.txt", 0, entity.ErrInvalidFile},
		{"missing name", "  ", 10, entity.ErrMissingField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateUpload(tt.filename, tt.size)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidator_ValidateChat(t *testing.T) {
	v := NewValidator(config.FileUploadConfig{})

	assert.NoError(t, v.ValidateChat(&entity.ChatRequest{Message: "hi"}))
	assert.ErrorIs(t, v.ValidateChat(&entity.ChatRequest{Message: "   "}), entity.ErrMissingField)
	assert.ErrorIs(t, v.ValidateChat(&entity.ChatRequest{Message: "hi", PurchaseDate: "01/02/2024"}), entity.ErrInvalidFormat)
	assert.ErrorIs(t, v.ValidateChat(&entity.ChatRequest{Message: "hi", ResponseLanguage: "english"}), entity.ErrInvalidFormat)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "My_Manual_v2.pdf", SanitizeFilename("My Manual (v2).pdf"))
	assert.Equal(t, "passwd", SanitizeFilename("../../etc/passwd"))
	assert.Equal(t, "file.pdf", SanitizeFilename(`C:\docs\file.pdf`))
}
