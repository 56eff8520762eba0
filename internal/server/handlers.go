package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/kuiper-api/internal/audio"
	"github.com/maauso/kuiper-api/internal/auth"
	"github.com/maauso/kuiper-api/internal/recording"
	"github.com/maauso/kuiper-api/internal/script"
	"github.com/maauso/kuiper-api/internal/usersettings"
)

const (
	defaultMaxUploadBytes = 100 << 20
	// Extra room for multipart boundaries and the text fields around the audio.
	multipartOverhead = 1 << 20
	maxMemory         = 32 << 20
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	scripts        *script.Service
	recordings     *recording.Service
	settings       *usersettings.Service
	tts            audio.Synthesizer
	validator      *validator.Validate
	logger         *slog.Logger
	environment    string
	debug          bool
	maxUploadBytes int64
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithSynthesizer enables GET /api/tts/pronounce.
func WithSynthesizer(s audio.Synthesizer) HandlerOption {
	return func(h *Handlers) {
		h.tts = s
	}
}

// WithEnvironment sets the environment name reported by the health check.
func WithEnvironment(env string) HandlerOption {
	return func(h *Handlers) {
		h.environment = env
	}
}

// WithDebug exposes internal error text in 5xx responses.
func WithDebug(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.debug = enabled
	}
}

// WithMaxUploadBytes sets the largest accepted audio upload.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(scripts *script.Service, recordings *recording.Service, settings *usersettings.Service, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		scripts:        scripts,
		recordings:     recordings,
		settings:       settings,
		validator:      newValidator(),
		logger:         logger,
		environment:    "development",
		maxUploadBytes: defaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Health handles GET /api/health requests.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:      "healthy",
		Version:     Version,
		Environment: h.environment,
	})
}

// Pronounce handles GET /api/tts/pronounce requests.
func (h *Handlers) Pronounce(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("text")
	if strings.TrimSpace(text) == "" {
		writeError(w, http.StatusBadRequest, "Text is required", "TEXT_REQUIRED")
		return
	}
	lang := r.URL.Query().Get("lang")
	if lang == "" {
		lang = "en"
	}
	if h.tts == nil {
		writeError(w, http.StatusServiceUnavailable, "TTS (espeak-ng) is not available", "TTS_UNAVAILABLE")
		return
	}

	wav, err := h.tts.Synthesize(r.Context(), text, lang)
	if err != nil {
		switch {
		case errors.Is(err, audio.ErrEmptyText):
			writeError(w, http.StatusBadRequest, "Text is required", "TEXT_REQUIRED")
		case errors.Is(err, audio.ErrInvalidVoice):
			writeError(w, http.StatusBadRequest, "Invalid language", "INVALID_LANGUAGE")
		case errors.Is(err, audio.ErrSynthesizerUnavailable):
			h.logger.Warn("espeak-ng not installed, TTS unavailable")
			writeError(w, http.StatusServiceUnavailable, "TTS (espeak-ng) is not available", "TTS_UNAVAILABLE")
		case errors.Is(err, audio.ErrSynthesisTimeout):
			writeError(w, http.StatusGatewayTimeout, "TTS synthesis timed out", "TTS_TIMEOUT")
		default:
			h.internalError(w, "TTS synthesis failed", "TTS_FAILED", err)
		}
		return
	}

	w.Header().Set("Content-Type", recording.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(wav)
}

// ListScripts handles GET /api/scripts requests.
func (h *Handlers) ListScripts(w http.ResponseWriter, r *http.Request) {
	scripts, err := h.scripts.List(r.Context())
	if err != nil {
		h.internalError(w, "Failed to list scripts", "SCRIPT_LIST_FAILED", err)
		return
	}

	resp := make([]ScriptResponse, 0, len(scripts))
	for _, s := range scripts {
		resp = append(resp, newScriptResponse(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetScript handles GET /api/scripts/{id} requests.
func (h *Handlers) GetScript(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Script not found", "SCRIPT_NOT_FOUND")
	if !ok {
		return
	}

	s, err := h.scripts.Get(r.Context(), id)
	if err != nil {
		h.scriptError(w, "Failed to get script", err)
		return
	}
	writeJSON(w, http.StatusOK, newScriptResponse(s))
}

// CreateScript handles POST /api/admin/scripts requests.
func (h *Handlers) CreateScript(w http.ResponseWriter, r *http.Request) {
	var req ScriptRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	s, err := h.scripts.Create(r.Context(), req.Name, req.Lines)
	if err != nil {
		h.scriptError(w, "Failed to create script", err)
		return
	}
	writeJSON(w, http.StatusOK, newScriptResponse(s))
}

// UpdateScript handles PUT /api/admin/scripts/{id} requests.
func (h *Handlers) UpdateScript(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Script not found", "SCRIPT_NOT_FOUND")
	if !ok {
		return
	}
	var req ScriptRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	s, err := h.scripts.Update(r.Context(), id, req.Name, req.Lines)
	if err != nil {
		h.scriptError(w, "Failed to update script", err)
		return
	}
	writeJSON(w, http.StatusOK, newScriptResponse(s))
}

// DeleteScript handles DELETE /api/admin/scripts/{id} requests.
func (h *Handlers) DeleteScript(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Script not found", "SCRIPT_NOT_FOUND")
	if !ok {
		return
	}

	if err := h.scripts.Delete(r.Context(), id); err != nil {
		h.scriptError(w, "Failed to delete script", err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "Script deleted"})
}

// CreateScriptFromFile handles POST /api/admin/scripts/from-file requests.
func (h *Handlers) CreateScriptFromFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	if !h.parseMultipart(w, r) {
		return
	}

	content, header, ok := h.formFile(w, r, "file")
	if !ok {
		return
	}

	s, err := h.scripts.CreateFromText(r.Context(), header.Filename, r.FormValue("name"), content)
	if err != nil {
		h.scriptError(w, "Failed to create script", err)
		return
	}
	writeJSON(w, http.StatusOK, newScriptResponse(s))
}

// SaveRecording handles POST /api/recording/save requests.
// Upload problems the client can fix in place (empty audio, blank phrase,
// storage failures) are reported with 200 and success=false.
func (h *Handlers) SaveRecording(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	if !h.parseMultipart(w, r) {
		return
	}

	scriptID, err := strconv.ParseInt(r.FormValue("script_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "script_id must be an integer", "VALIDATION_ERROR")
		return
	}
	lineIndex, err := strconv.Atoi(r.FormValue("line_index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "line_index must be an integer", "VALIDATION_ERROR")
		return
	}

	data, _, ok := h.formFile(w, r, "audio_file")
	if !ok {
		return
	}

	out, err := h.recordings.Save(r.Context(), recording.SaveInput{
		ScriptID:   scriptID,
		LineIndex:  lineIndex,
		PhraseText: r.FormValue("phrase_text"),
		UserID:     userID,
		Audio:      data,
	})
	if err != nil {
		switch {
		case errors.Is(err, recording.ErrEmptyAudio), errors.Is(err, recording.ErrPhraseRequired):
			writeJSON(w, http.StatusOK, failedSave(clientMessage(err)))
		case errors.Is(err, script.ErrScriptNotFound):
			writeError(w, http.StatusBadRequest, clientMessage(err), "SCRIPT_NOT_FOUND")
		case errors.Is(err, recording.ErrInvalidLineIndex):
			writeError(w, http.StatusBadRequest, clientMessage(err), "INVALID_LINE_INDEX")
		case errors.Is(err, recording.ErrUserRequired):
			writeError(w, http.StatusUnauthorized, clientMessage(err), "UNAUTHORIZED")
		default:
			h.logger.Error("failed to save recording",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			writeJSON(w, http.StatusOK, failedSave(err.Error()))
		}
		return
	}

	writeJSON(w, http.StatusOK, newSaveRecordingResponse(out))
}

// AnalyzeRecording handles POST /api/analyze requests. The audio is analyzed
// with the same checks as SaveRecording but nothing is stored.
func (h *Handlers) AnalyzeRecording(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	if !h.parseMultipart(w, r) {
		return
	}

	data, _, ok := h.formFile(w, r, "audio_file")
	if !ok {
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, clientMessage(recording.ErrEmptyAudio), "EMPTY_AUDIO")
		return
	}

	writeJSON(w, http.StatusOK, newAnalysisResponse(h.recordings.Analyze(data)))
}

// ListRecordings handles GET /api/recording/list requests.
func (h *Handlers) ListRecordings(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	var scriptID int64
	if v := r.URL.Query().Get("script_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "script_id must be an integer", "VALIDATION_ERROR")
			return
		}
		scriptID = id
	}

	recs, err := h.recordings.List(r.Context(), userID, scriptID)
	if err != nil {
		h.internalError(w, "Failed to list recordings", "RECORDING_LIST_FAILED", err)
		return
	}

	resp := make([]RecordingResponse, 0, len(recs))
	for _, rec := range recs {
		resp = append(resp, newRecordingResponse(rec))
	}
	writeJSON(w, http.StatusOK, resp)
}

// RecordingProgress handles GET /api/recording/progress requests.
func (h *Handlers) RecordingProgress(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	progress, err := h.recordings.Progress(r.Context(), userID)
	if err != nil {
		h.internalError(w, "Failed to get recording progress", "PROGRESS_FAILED", err)
		return
	}

	resp := make([]ProgressResponse, 0, len(progress))
	for _, p := range progress {
		resp = append(resp, newProgressResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// RecordingAudio handles GET /api/recordings/{id}/audio requests.
func (h *Handlers) RecordingAudio(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	id, ok := pathID(w, r, "Recording not found", "RECORDING_NOT_FOUND")
	if !ok {
		return
	}

	rec, data, err := h.recordings.Audio(r.Context(), userID, id)
	if err != nil {
		h.recordingError(w, "Failed to serve audio", err)
		return
	}

	w.Header().Set("Content-Type", recording.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", rec.Filename))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// DeleteRecording handles DELETE /api/recordings/{id} requests.
func (h *Handlers) DeleteRecording(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	id, ok := pathID(w, r, "Recording not found", "RECORDING_NOT_FOUND")
	if !ok {
		return
	}

	if err := h.recordings.Delete(r.Context(), userID, id); err != nil {
		h.recordingError(w, "Failed to delete recording", err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// GetSettings handles GET /api/user/settings requests.
func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	st, err := h.settings.Get(r.Context(), userID)
	if err != nil {
		h.internalError(w, "Failed to get user settings", "SETTINGS_FETCH_FAILED", err)
		return
	}
	writeJSON(w, http.StatusOK, newSettingsResponse(st))
}

// UpdateSettings handles PUT /api/user/settings requests.
func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	req := defaultSettingsRequest()
	if !h.decodeJSON(w, r, &req) {
		return
	}

	st, err := h.settings.Update(r.Context(), userID, req.settings())
	if err != nil {
		if errors.Is(err, usersettings.ErrOutOfRange) {
			writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
			return
		}
		h.internalError(w, "Failed to update user settings", "SETTINGS_UPDATE_FAILED", err)
		return
	}
	writeJSON(w, http.StatusOK, newSettingsResponse(st))
}

// decodeJSON decodes and validates the request body into dst.
// It writes a 400 response and returns false on failure.
func (h *Handlers) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, formatValidationError(err), "VALIDATION_ERROR")
		return false
	}
	return true
}

func (h *Handlers) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	err := r.ParseMultipartForm(maxMemory)
	if err == nil {
		return true
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeError(w, http.StatusRequestEntityTooLarge, h.tooLargeMessage(), "FILE_TOO_LARGE")
		return false
	}
	h.logger.Warn("failed to parse multipart form",
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusBadRequest, "invalid multipart form", "INVALID_FORM")
	return false
}

// formFile reads the uploaded file stored under field.
func (h *Handlers) formFile(w http.ResponseWriter, r *http.Request, field string) ([]byte, *multipart.FileHeader, bool) {
	f, header, err := r.FormFile(field)
	if err != nil {
		writeError(w, http.StatusBadRequest, field+" is required", "VALIDATION_ERROR")
		return nil, nil, false
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	if err != nil {
		h.internalError(w, "Failed to read upload", "UPLOAD_READ_FAILED", err)
		return nil, nil, false
	}
	if int64(len(data)) > h.maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, h.tooLargeMessage(), "FILE_TOO_LARGE")
		return nil, nil, false
	}
	return data, header, true
}

func (h *Handlers) tooLargeMessage() string {
	return fmt.Sprintf("File too large. Maximum size is %dMB", h.maxUploadBytes>>20)
}

func (h *Handlers) scriptError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, script.ErrScriptNotFound):
		writeError(w, http.StatusNotFound, clientMessage(err), "SCRIPT_NOT_FOUND")
	case errors.Is(err, script.ErrDuplicateName):
		writeError(w, http.StatusBadRequest, clientMessage(err), "DUPLICATE_NAME")
	case errors.Is(err, script.ErrNameRequired),
		errors.Is(err, script.ErrNoLines),
		errors.Is(err, script.ErrNotTextFile):
		writeError(w, http.StatusBadRequest, clientMessage(err), "INVALID_SCRIPT")
	default:
		h.internalError(w, msg, "SCRIPT_OPERATION_FAILED", err)
	}
}

func (h *Handlers) recordingError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, recording.ErrRecordingNotFound):
		writeError(w, http.StatusNotFound, clientMessage(err), "RECORDING_NOT_FOUND")
	case errors.Is(err, recording.ErrAudioNotFound):
		writeError(w, http.StatusNotFound, clientMessage(err), "AUDIO_NOT_FOUND")
	default:
		h.internalError(w, msg, "RECORDING_OPERATION_FAILED", err)
	}
}

// internalError logs err and writes a 500. The error text is only exposed
// in debug mode.
func (h *Handlers) internalError(w http.ResponseWriter, msg, code string, err error) {
	h.logger.Error(strings.ToLower(msg[:1])+msg[1:],
		slog.String("error", err.Error()),
	)
	if h.debug {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	writeError(w, http.StatusInternalServerError, msg, code)
}

// pathID parses the {id} path value. Unparsable IDs cannot match any row
// and are reported as not found.
func pathID(w http.ResponseWriter, r *http.Request, notFound, code string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, notFound, code)
		return 0, false
	}
	return id, true
}

// formatValidationError joins the validator's field errors into one message.
func formatValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, e.Field()+" "+formatValidationMessage(e))
	}
	return strings.Join(msgs, "; ")
}

// formatValidationMessage creates a human-readable message from a validator error.
func formatValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", e.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", e.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", e.Param())
	default:
		return fmt.Sprintf("failed validation '%s'", e.Tag())
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
