package api

import (
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
)

// maxSourceCodeSize — ограничение на размер YAML source code.
const maxSourceCodeSize = 1 << 20

// ListSourceCodes возвращает все source codes.
// GET /rest/v1/source-codes
func (h *Handler) ListSourceCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := h.sourceCodes.List(r.Context())
	if HandleError(w, h.log(r.Context()), err, "") {
		return
	}

	result := make([]SourceCodeResponse, len(codes))
	for i, sc := range codes {
		result[i] = SourceCodeFromDomain(sc)
	}
	List(w, result, len(result))
}

// CreateSourceCode создаёт source code из YAML в теле запроса.
// POST /rest/v1/source-codes
func (h *Handler) CreateSourceCode(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSourceCodeSize))
	if err != nil {
		BadRequest(w, "failed to read request body")
		return
	}

	spec, err := engine.ParseSourceCode(body)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	sc := &domain.SourceCode{
		ID:        uuid.New(),
		UID:       spec.Source.UID,
		Spec:      *spec,
		CreatedAt: time.Now().UTC(),
	}
	if HandleError(w, h.log(r.Context()), h.sourceCodes.Create(r.Context(), sc), "") {
		return
	}

	h.log(r.Context()).Info("source code created", "source_code_id", sc.ID, "uid", sc.UID)
	Created(w, SourceCodeFromDomain(*sc))
}

// GetSourceCode возвращает source code по ID.
// GET /rest/v1/source-codes/{id}
func (h *Handler) GetSourceCode(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid source code id")
		return
	}

	sc, err := h.sourceCodes.GetByID(r.Context(), id)
	if HandleError(w, h.log(r.Context()), err, "source code not found") {
		return
	}
	Success(w, SourceCodeFromDomain(*sc))
}
