package server

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"Tunora/cache"
	"Tunora/core/apperr"
	"Tunora/core/catalog"
	"Tunora/core/playcount"
	"Tunora/core/ranking"
	"Tunora/logger"
)

const (
	defaultLimit         = ranking.DefaultLimit
	defaultDiscoverLimit = 20
	// 表单解析时保留在内存中的上限, 超出部分写临时文件
	multipartMemory = 32 << 20
	maxUploadFiles  = 10
)

// Replays stores play responses under client idempotency keys.
type Replays interface {
	// Reserve claims key before the request runs; false means it is taken.
	Reserve(ctx context.Context, key string) (bool, error)
	Lookup(ctx context.Context, key string, dst interface{}) (bool, error)
	Remember(ctx context.Context, key string, v interface{}) error
	Release(ctx context.Context, key string) error
}

const idempotencyHeader = "Idempotency-Key"

// CatalogHandler 处理 /catalog 下的所有请求
type CatalogHandler struct {
	catalog  *catalog.Service
	plays    *playcount.Engine
	rankings *ranking.Engine
	replays  Replays
}

// NewCatalogHandler 创建目录处理器. replays may be nil.
func NewCatalogHandler(svc *catalog.Service, plays *playcount.Engine, rankings *ranking.Engine, replays Replays) *CatalogHandler {
	return &CatalogHandler{catalog: svc, plays: plays, rankings: rankings, replays: replays}
}

// idempotentPlay runs record once per Idempotency-Key; a retry with the same
// key gets the first response back, or a conflict while the first is still
// running. Requests without a key always record. A failed record releases
// the key. If the store is unreachable the play is recorded anyway.
func (h *CatalogHandler) idempotentPlay(r *http.Request, userID int64, op string, record func() (*playcount.Result, error)) (*playcount.Result, error) {
	clientKey := r.Header.Get(idempotencyHeader)
	if h.replays == nil || clientKey == "" {
		return record()
	}
	ctx := r.Context()
	key := cache.IdempotencyKey(userID, op, clientKey)

	reserved, err := h.replays.Reserve(ctx, key)
	if err != nil {
		logger.Warn("idempotency reserve failed", logger.String("key", key), logger.ErrorField(err))
		return record()
	}
	if !reserved {
		var prev playcount.Result
		found, err := h.replays.Lookup(ctx, key, &prev)
		if err != nil {
			logger.Warn("idempotency lookup failed", logger.String("key", key), logger.ErrorField(err))
		}
		if found {
			return &prev, nil
		}
		return nil, apperr.ErrRequestInProgress
	}

	res, err := record()
	if err != nil {
		if rerr := h.replays.Release(ctx, key); rerr != nil {
			logger.Warn("idempotency release failed", logger.String("key", key), logger.ErrorField(rerr))
		}
		return nil, err
	}
	if err := h.replays.Remember(ctx, key, res); err != nil {
		logger.Warn("idempotency store failed", logger.String("key", key), logger.ErrorField(err))
	}
	return res, nil
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Invalid("%s must be an integer", name)
	}
	return v, nil
}

func queryID(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, apperr.Invalid("%s is required", name)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid("%s must be a positive integer", name)
	}
	return id, nil
}

func queryLimit(r *http.Request, defLimit int) (int, error) {
	limit, err := queryInt(r, "limit", defLimit)
	if err != nil {
		return 0, err
	}
	if limit < 1 || limit > ranking.MaxLimit {
		return 0, apperr.ErrInvalidPage
	}
	return limit, nil
}

func queryPage(r *http.Request, defLimit int) (ranking.Page, error) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		return ranking.Page{}, err
	}
	limit, err := queryInt(r, "limit", defLimit)
	if err != nil {
		return ranking.Page{}, err
	}
	return ranking.NewPage(page, limit)
}

// CreateTrackHandler POST /catalog/track
func (h *CatalogHandler) CreateTrackHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in catalog.CreateTrackInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	track, err := h.catalog.CreateTrack(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Track created successfully", track)
}

// CreateReleaseHandler POST /catalog/release
func (h *CatalogHandler) CreateReleaseHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in catalog.CreateReleaseInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	release, err := h.catalog.CreateRelease(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Release created successfully", release)
}

// GetTrackHandler GET /catalog/track?id=
func (h *CatalogHandler) GetTrackHandler(w http.ResponseWriter, r *http.Request) {
	id, err := queryID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	track, err := h.catalog.GetTrack(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Track retrieved successfully", track)
}

// GetReleaseHandler GET /catalog/release?id=
func (h *CatalogHandler) GetReleaseHandler(w http.ResponseWriter, r *http.Request) {
	id, err := queryID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	release, err := h.catalog.GetRelease(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Release retrieved successfully", release)
}

// PlayTrackHandler PATCH /catalog/track/play?id=
func (h *CatalogHandler) PlayTrackHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := queryID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.idempotentPlay(r, userID, "track-play:"+strconv.FormatInt(id, 10), func() (*playcount.Result, error) {
		return h.plays.RecordPlay(r.Context(), userID, id)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, playMessage(res), res)
}

// PlayReleaseHandler PATCH /catalog/release/play?id=&trackIndex=
func (h *CatalogHandler) PlayReleaseHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := queryID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if r.URL.Query().Get("trackIndex") == "" {
		writeError(w, r, apperr.Invalid("trackIndex is required"))
		return
	}
	index, err := queryInt(r, "trackIndex", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	op := "release-play:" + strconv.FormatInt(id, 10) + ":" + strconv.Itoa(index)
	res, err := h.idempotentPlay(r, userID, op, func() (*playcount.Result, error) {
		return h.plays.RecordReleasePlay(r.Context(), userID, id, index)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, playMessage(res), res)
}

func playMessage(res *playcount.Result) string {
	if res.Counted {
		return "Play recorded"
	}
	return "Play already counted recently"
}

// ArtistTopHandler GET /catalog/artist-top?limit=
func (h *CatalogHandler) ArtistTopHandler(w http.ResponseWriter, r *http.Request) {
	h.artistView(w, r, "Top streams retrieved successfully", h.rankings.ArtistTop)
}

// ArtistRecentHandler GET /catalog/artist-recent?limit=
func (h *CatalogHandler) ArtistRecentHandler(w http.ResponseWriter, r *http.Request) {
	h.artistView(w, r, "Recent uploads retrieved successfully", h.rankings.ArtistRecent)
}

func (h *CatalogHandler) artistView(
	w http.ResponseWriter,
	r *http.Request,
	message string,
	view func(ctx context.Context, artistID int64, limit int) (*ranking.ArtistResult, error),
) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	// artist views take only a limit; page is not part of these endpoints
	limit, err := queryLimit(r, defaultLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := view(r.Context(), userID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, message, res)
}

// ArtistCatalogHandler GET /catalog/catalog?page=&limit=
func (h *CatalogHandler) ArtistCatalogHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := queryPage(r, defaultLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.rankings.ArtistCatalog(r.Context(), userID, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Catalog retrieved successfully", res)
}

// TopStreamsHandler GET /catalog/top-streams?page=&limit=
func (h *CatalogHandler) TopStreamsHandler(w http.ResponseWriter, r *http.Request) {
	p, err := queryPage(r, defaultLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.rankings.GlobalTop(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Top streams retrieved successfully", res)
}

// RecentUploadsHandler GET /catalog/recent-uploads?page=&limit=
func (h *CatalogHandler) RecentUploadsHandler(w http.ResponseWriter, r *http.Request) {
	p, err := queryPage(r, defaultLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.rankings.GlobalRecent(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Recent uploads retrieved successfully", res)
}

// DiscoverHandler GET /catalog/discover?category=&page=&limit=
func (h *CatalogHandler) DiscoverHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	category := r.URL.Query().Get("category")
	if category == "" {
		writeError(w, r, apperr.Invalid("category is required"))
		return
	}
	p, err := queryPage(r, defaultDiscoverLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.rankings.Discover(r.Context(), userID, category, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Discover results retrieved successfully", res)
}

// RecentPlaysHandler GET /catalog/recent-plays
func (h *CatalogHandler) RecentPlaysHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	plays, err := h.rankings.RecentPlays(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Recent plays retrieved successfully", plays)
}

// MetadataOptionsHandler GET /catalog/metadata-options
func (h *CatalogHandler) MetadataOptionsHandler(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, "Metadata options retrieved successfully", h.catalog.MetadataOptions())
}

// UploadFileHandler POST /catalog/upload-file, multipart field "file".
func (h *CatalogHandler) UploadFileHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	files, err := readUploads(w, r, "file", 1)
	if err != nil {
		writeError(w, r, err)
		return
	}
	obj, err := h.catalog.UploadFile(r.Context(), userID, files[0])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "File uploaded successfully", obj)
}

// UploadFilesHandler POST /catalog/upload-files, multipart field "files".
func (h *CatalogHandler) UploadFilesHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	files, err := readUploads(w, r, "files", maxUploadFiles)
	if err != nil {
		writeError(w, r, err)
		return
	}
	objs, err := h.catalog.UploadFiles(r.Context(), userID, files)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Files uploaded successfully", objs)
}

// readUploads parses the multipart form and loads up to max files from field.
func readUploads(w http.ResponseWriter, r *http.Request, field string, max int) ([]catalog.File, error) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(max)*(catalog.MaxUploadSize+1<<20))
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, apperr.Wrap(apperr.InvalidInput, "failed to parse multipart form", err)
	}
	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		return nil, apperr.Invalid("missing '%s' in form", field)
	}
	if len(headers) > max {
		return nil, apperr.Invalid("at most %d file(s) allowed", max)
	}

	files := make([]catalog.File, 0, len(headers))
	for _, fh := range headers {
		f, err := readPart(fh)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

func readPart(fh *multipart.FileHeader) (catalog.File, error) {
	if fh.Size > catalog.MaxUploadSize {
		return catalog.File{}, apperr.Invalid("file %q exceeds %d MB", fh.Filename, catalog.MaxUploadSize>>20)
	}
	src, err := fh.Open()
	if err != nil {
		return catalog.File{}, apperr.Wrap(apperr.InvalidInput, "failed to open uploaded file", err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return catalog.File{}, apperr.Wrap(apperr.InvalidInput, "failed to read uploaded file", err)
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return catalog.File{Name: fh.Filename, ContentType: contentType, Data: data}, nil
}
