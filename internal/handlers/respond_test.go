package handlers

import (
	"net/http"
	"testing"

	"sheetsearch/internal/apperrors"
)

func TestStatusForCode(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{code: apperrors.ErrStorageUnavailable.Code, want: http.StatusServiceUnavailable},
		{code: apperrors.ErrFileRejected.Code, want: http.StatusBadRequest},
		{code: apperrors.ErrReadError.Code, want: http.StatusBadRequest},
		{code: apperrors.ErrParseError.Code, want: http.StatusBadRequest},
		{code: apperrors.ErrEmptyWorkbook.Code, want: http.StatusUnprocessableEntity},
		{code: apperrors.ErrUserCancelled.Code, want: http.StatusConflict},
		{code: apperrors.ErrTransactionError.Code, want: http.StatusInternalServerError},
		{code: apperrors.ErrSearchError.Code, want: http.StatusInternalServerError},
		{code: "internal_error", want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := statusForCode(tt.code); got != tt.want {
				t.Errorf("statusForCode(%q) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}
