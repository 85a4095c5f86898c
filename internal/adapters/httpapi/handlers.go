package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/mikey/content-review/internal/core"
	"github.com/mikey/content-review/internal/ports"
	"github.com/mikey/content-review/internal/rules"
	"go.uber.org/zap"
)

const (
	maxRulesBodyBytes = 8 << 20
	imageField        = "image"
)

type textReviewRequest struct {
	Text string `json:"text"`
}

type saveRulesRequest struct {
	Content string `json:"content"`
}

type rulesResponse struct {
	Rules   []core.Rule `json:"rules"`
	Content string      `json:"content"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// TextReviewHandler reviews {"text": ...}. Bodies are unbounded unless
// maxTextBytes is positive.
func TextReviewHandler(reviewer ports.Reviewer, maxTextBytes int64, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if maxTextBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxTextBytes)
		}

		var req textReviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badBody(w, err, "text too large")
			return
		}

		verdict, err := reviewer.ReviewText(r.Context(), req.Text)
		if err != nil {
			reviewFailed(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, verdict)
	}
}

// ImageReviewHandler reviews the multipart file field "image"
func ImageReviewHandler(reviewer ports.Reviewer, maxImageBytes int64, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		image, status, msg := readImagePart(r, maxImageBytes)
		if status != 0 {
			writeError(w, status, msg)
			return
		}

		verdict, err := reviewer.ReviewImage(r.Context(), image)
		if err != nil {
			reviewFailed(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, verdict)
	}
}

// readImagePart streams the multipart body until it finds the image field.
// A non-zero status reports why no image could be read.
func readImagePart(r *http.Request, maxImageBytes int64) ([]byte, int, string) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, http.StatusBadRequest, "no image uploaded"
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, http.StatusBadRequest, "no image uploaded"
		}
		if err != nil {
			return nil, http.StatusBadRequest, "malformed multipart body"
		}
		if part.FormName() != imageField {
			part.Close()
			continue
		}

		var buf bytes.Buffer
		n, err := io.Copy(&buf, io.LimitReader(part, maxImageBytes+1))
		part.Close()
		if err != nil {
			return nil, http.StatusBadRequest, "failed to read image"
		}
		if n > maxImageBytes {
			return nil, http.StatusRequestEntityTooLarge, "image too large"
		}
		if n == 0 {
			return nil, http.StatusBadRequest, "no image uploaded"
		}
		return buf.Bytes(), 0, ""
	}
}

// SaveRulesHandler replaces the rule set with {"content": <csv>}
func SaveRulesHandler(editor ports.RuleEditor, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRulesBodyBytes)

		var req saveRulesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badBody(w, err, "rules too large")
			return
		}

		parsed, err := rules.DecodeRules(strings.NewReader(req.Content), logger)
		if err != nil {
			logger.Warn("Rejected rule upload", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to save rules")
			return
		}

		if err := editor.ReplaceAll(parsed); err != nil {
			logger.Error("Failed to save rules", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to save rules")
			return
		}

		logger.Info("Rules replaced", zap.Int("count", len(parsed)))
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// RulesHandler returns the current rule snapshot as rules and as CSV
func RulesHandler(editor ports.RuleEditor, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current := editor.CurrentRules()

		var buf bytes.Buffer
		if err := rules.EncodeRules(&buf, current); err != nil {
			logger.Error("Failed to encode rules", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to read rules")
			return
		}
		writeJSON(w, http.StatusOK, rulesResponse{Rules: current, Content: buf.String()})
	}
}

func reviewFailed(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	logger.Error("Review failed",
		zap.String("request_id", r.Header.Get(requestIDHeader)),
		zap.String("failure", string(core.CensorErrorKindOf(err))),
		zap.Error(err))
	writeError(w, http.StatusInternalServerError, core.ErrReviewFailed.Error())
}

// badBody answers 413 when the body hit its size limit, 400 otherwise
func badBody(w http.ResponseWriter, err error, tooLarge string) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeError(w, http.StatusRequestEntityTooLarge, tooLarge)
		return
	}
	writeError(w, http.StatusBadRequest, "invalid request body")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
