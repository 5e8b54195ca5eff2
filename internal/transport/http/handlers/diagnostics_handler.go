package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	pgrepo "github.com/ivankudzin/shipyard/internal/repo/postgres"
	"github.com/ivankudzin/shipyard/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/shipyard/internal/transport/http/errors"
)

const diagnosticSampleSize = 3

type DiagnosticsStore interface {
	TableSample(ctx context.Context, table string, limit int) (pgrepo.TableSample, error)
}

type DiagnosticsHandler struct {
	store DiagnosticsStore
	resp  *Responder
}

func NewDiagnosticsHandler(store DiagnosticsStore, resp *Responder) *DiagnosticsHandler {
	return &DiagnosticsHandler{store: store, resp: resp}
}

func (h *DiagnosticsHandler) Healthz(w http.ResponseWriter, _ *http.Request) {
	httperrors.Write(w, http.StatusOK, dto.HealthResponse{OK: true})
}

// TestDB checks each inspectable table and stops at the first failure.
func (h *DiagnosticsHandler) TestDB(w http.ResponseWriter, r *http.Request) {
	tables := make(map[string]dto.TableCheckResponse, len(pgrepo.DiagnosticTables))
	for _, table := range pgrepo.DiagnosticTables {
		sample, err := h.store.TableSample(r.Context(), table, diagnosticSampleSize)
		if err != nil {
			h.resp.Internal(w, r, tableErrorMessage(table), err)
			return
		}

		var first json.RawMessage
		if len(sample.Sample) > 0 {
			first = sample.Sample[0]
		}
		tables[table] = dto.TableCheckResponse{
			Accessible: true,
			Count:      int(sample.Count),
			Sample:     first,
		}
	}

	httperrors.Write(w, http.StatusOK, dto.TestDBResponse{Success: true, Tables: tables})
}

func tableErrorMessage(table string) string {
	if table == "" {
		return "Database test failed"
	}
	return fmt.Sprintf("%s%s table error", strings.ToUpper(table[:1]), table[1:])
}
