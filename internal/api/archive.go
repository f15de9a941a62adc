package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/roster/internal/sources"
	"github.com/JaimeStill/roster/pkg/formatting"
	"github.com/JaimeStill/roster/pkg/handlers"
	"github.com/JaimeStill/roster/pkg/routes"
	"github.com/JaimeStill/roster/pkg/storage"
)

// archivePrefix is the blob prefix every uploaded source is stored under.
const archivePrefix = "sources/"

// ArchivedBlob is a stored source spreadsheet. Orphaned blobs have no
// registered source row.
type ArchivedBlob struct {
	storage.BlobMeta
	Size     string     `json:"size"`
	SourceID *uuid.UUID `json:"source_id,omitempty"`
	Orphaned bool       `json:"orphaned"`
}

// ArchivePage is one page of the source archive.
type ArchivePage struct {
	Blobs      []ArchivedBlob `json:"blobs"`
	NextMarker string         `json:"next_marker,omitempty"`
}

type archiveHandler struct {
	store       storage.System
	sources     sources.System
	logger      *slog.Logger
	maxListSize int32
}

func newArchiveHandler(
	store storage.System,
	srcs sources.System,
	logger *slog.Logger,
	maxListSize int32,
) *archiveHandler {
	return &archiveHandler{
		store:       store,
		sources:     srcs,
		logger:      logger.With("handler", "archive"),
		maxListSize: maxListSize,
	}
}

func (h *archiveHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/archive",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.list},
			{Method: "GET", Pattern: "/{id}", Handler: h.download},
			{Method: "GET", Pattern: "/{id}/meta", Handler: h.meta},
		},
	}
}

func (h *archiveHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	maxResults, err := storage.ParseMaxResults(q.Get("max_results"), h.maxListSize)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	list, err := h.store.List(r.Context(), archivePrefix, q.Get("marker"), maxResults)
	if err != nil {
		handlers.RespondError(w, h.logger, storage.MapHTTPStatus(err), err)
		return
	}

	page := ArchivePage{
		Blobs:      make([]ArchivedBlob, 0, len(list.Blobs)),
		NextMarker: list.NextMarker,
	}
	for _, b := range list.Blobs {
		entry, err := h.annotate(r.Context(), b)
		if err != nil {
			handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
			return
		}
		page.Blobs = append(page.Blobs, entry)
	}

	handlers.RespondJSON(w, http.StatusOK, page)
}

func (h *archiveHandler) annotate(ctx context.Context, b storage.BlobMeta) (ArchivedBlob, error) {
	entry := ArchivedBlob{
		BlobMeta: b,
		Size:     formatting.FormatBytes(b.ContentLength, 1),
		Orphaned: true,
	}

	id, ok := sourceIDFromKey(b.Key)
	if !ok {
		return entry, nil
	}
	entry.SourceID = &id

	src, err := h.sources.Find(ctx, id)
	switch {
	case errors.Is(err, sources.ErrNotFound):
	case err != nil:
		return entry, fmt.Errorf("resolve %s: %w", b.Key, err)
	default:
		entry.Orphaned = src.StorageKey != b.Key
	}
	return entry, nil
}

func (h *archiveHandler) download(w http.ResponseWriter, r *http.Request) {
	src, ok := h.source(w, r)
	if !ok {
		return
	}

	blob, err := h.store.Download(r.Context(), src.StorageKey)
	if err != nil {
		handlers.RespondError(w, h.logger, storage.MapHTTPStatus(err), err)
		return
	}
	defer blob.Body.Close()

	w.Header().Set("Content-Type", blob.ContentType)
	if blob.ContentLength > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(blob.ContentLength, 10))
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", src.Filename))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, blob.Body); err != nil {
		h.logger.Warn("archive download interrupted", "source_id", src.ID, "error", err)
	}
}

func (h *archiveHandler) meta(w http.ResponseWriter, r *http.Request) {
	src, ok := h.source(w, r)
	if !ok {
		return
	}

	meta, err := h.store.Find(r.Context(), src.StorageKey)
	if err != nil {
		handlers.RespondError(w, h.logger, storage.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, ArchivedBlob{
		BlobMeta: *meta,
		Size:     formatting.FormatBytes(meta.ContentLength, 1),
		SourceID: &src.ID,
	})
}

func (h *archiveHandler) source(w http.ResponseWriter, r *http.Request) (*sources.Source, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, sources.ErrNotFound)
		return nil, false
	}

	src, err := h.sources.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, sources.MapHTTPStatus(err), err)
		return nil, false
	}
	return src, true
}

// sourceIDFromKey reads the id segment of sources/{id}/{filename}.
func sourceIDFromKey(key string) (uuid.UUID, bool) {
	rest, ok := strings.CutPrefix(key, archivePrefix)
	if !ok {
		return uuid.Nil, false
	}
	dir, _ := path.Split(rest)
	id, err := uuid.Parse(strings.TrimSuffix(dir, "/"))
	return id, err == nil
}
