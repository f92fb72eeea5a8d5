package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeNetwork, status: http.StatusBadGateway, publicMsg: "cart api unavailable", retryable: true, detailsOK: true},
		{code: CodeCartOperation, status: http.StatusBadGateway, publicMsg: "cart operation failed", retryable: true, detailsOK: true},
		{code: CodeStorage, status: http.StatusInternalServerError, publicMsg: "local storage unavailable", retryable: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "email is required")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "email is required" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	base.WithDetails(map[string]any{"field": "email"})
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("connection refused")
	wrapped := Wrap(CodeNetwork, cause, "get cart")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Error() != "NETWORK_ERROR: get cart: connection refused" {
		t.Fatalf("unexpected error string %q", wrapped.Error())
	}
}

func TestHasCodeWalksChain(t *testing.T) {
	network := New(CodeNetwork, "status 503")
	op := Wrap(CodeCartOperation, fmt.Errorf("add item: %w", network), "add item")

	if got := As(op); got == nil || got.Code() != CodeCartOperation {
		t.Fatalf("As should return outermost typed error, got %v", got)
	}
	if !HasCode(op, CodeNetwork) {
		t.Fatalf("expected network code in chain")
	}
	if HasCode(op, CodeValidation) {
		t.Fatalf("validation code should not be found")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestDumpIncludesChainAndPostgresFields(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "local_entries_pkey", TableName: "local_entries", Message: "duplicate key"}
	err := Wrap(CodeStorage, pgErr, "write local entry")

	dump := Dump(err)
	if dump.Code != CodeStorage {
		t.Fatalf("expected storage code, got %s", dump.Code)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected two chain entries, got %d", len(dump.Chain))
	}
	if dump.PGCode != "23505" || dump.PGTable != "local_entries" {
		t.Fatalf("unexpected pg fields %+v", dump)
	}
	if _, ok := dump.Fields()["pg_code"]; !ok {
		t.Fatalf("expected pg_code field")
	}
	if _, ok := Dump(New(CodeInternal, "x")).Fields()["pg_code"]; ok {
		t.Fatalf("pg fields should be omitted without a postgres error")
	}
}
