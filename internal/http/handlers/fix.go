package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/nuken/m3u-epg-checker/internal/observability"
	"github.com/nuken/m3u-epg-checker/internal/storage"
)

// FixReader looks up stored fixed playlists.
type FixReader interface {
	Get(ctx context.Context, id string) ([]byte, error)
}

// FixHandler serves fixed playlist downloads.
type FixHandler struct {
	store FixReader
}

// NewFixHandler creates a download handler backed by store.
func NewFixHandler(store FixReader) *FixHandler {
	return &FixHandler{store: store}
}

// Register registers the download route with the API.
func (h *FixHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getFixedPlaylist",
		Method:      http.MethodGet,
		Path:        "/api/v1/fixes/{id}",
		Summary:     "Download a fixed playlist",
		Description: "Returns the fixed playlist produced by an earlier analysis. Stored playlists expire after the configured retention period.",
		Tags:        []string{"Analysis"},
	}, h.GetFix)
}

// GetFixInput is the input for the download endpoint.
type GetFixInput struct {
	ID string `path:"id" maxLength:"64" doc:"Download id returned as fix_id by the analysis endpoint"`
}

// GetFixOutput is the output for the download endpoint.
type GetFixOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

// GetFix returns the exact stored bytes.
func (h *FixHandler) GetFix(ctx context.Context, input *GetFixInput) (*GetFixOutput, error) {
	data, err := h.store.Get(ctx, input.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("fixed playlist %s not found or expired", input.ID))
		}
		observability.LoggerFromContext(ctx).ErrorContext(ctx, "reading fixed playlist failed",
			slog.String("id", input.ID),
			slog.String("error", err.Error()),
		)
		return nil, huma.Error500InternalServerError("failed to read fixed playlist", err)
	}

	return &GetFixOutput{
		ContentType:        storage.ContentType,
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", storage.Filename(input.ID)),
		Body:               data,
	}, nil
}
