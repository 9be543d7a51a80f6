package perrors

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"testing"

	json "github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", NotFound("project %s not found", "p1"), http.StatusNotFound},
		{"forbidden", Forbidden("insufficient rights"), http.StatusForbidden},
		{"conflict", Conflict("user already in project"), http.StatusConflict},
		{"bad request", BadRequest("cannot assign OWNER"), http.StatusBadRequest},
		{"wrapped", fmt.Errorf("failed to accept: %w", NotFound("invitation not found")), http.StatusNotFound},
		{"generic", errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, CodeOf(tt.err).Status)
		})
	}
}

func TestKindErrMessage(t *testing.T) {
	err := Conflict("user %s already invited", "bob")
	assert.Equal(t, "user bob already invited", err.Error())
	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestFromError(t *testing.T) {
	err := FromError("Failed to update role", BadRequest("role unchanged"))

	var perr Err
	assert.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusBadRequest, perr.HttpStatus())
	assert.Equal(t, "role unchanged", perr.Error())

	again := FromError("ignored", perr)
	assert.Equal(t, perr.Code, again.(Err).Code)
}

func TestErrPrint(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	err := New(ErrCodeConflict, "Failed to invite", errors.New("duplicate key"), map[string]interface{}{"project_id": "p1"})
	err.(Err).Print(context.Background())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "Failed to invite", entry["msg"])
	assert.Contains(t, entry["error"], "duplicate key")
	assert.Equal(t, "p1", entry["project_id"])
	assert.NotEmpty(t, entry["stacktrace"])
}
