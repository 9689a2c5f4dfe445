package customer

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/prompt-general/healthscore/internal/window"
)

func TestNormalizeDocumentFormattingVariants(t *testing.T) {
	variants := []string{
		"12.345.678/0001-90",
		"12345678000190",
		" 12 345 678 0001 90 ",
		"12-345-678/0001.90",
	}
	want := NormalizeDocument(variants[0])
	if want != "12345678000190" {
		t.Fatalf("unexpected normalized form %q", want)
	}
	for _, v := range variants[1:] {
		if got := NormalizeDocument(v); got != want {
			t.Fatalf("NormalizeDocument(%q) = %q, want %q", v, got, want)
		}
	}
}

func TestNormalizeDocumentIdempotent(t *testing.T) {
	for _, v := range []string{"", "abc", "00.000.000/0000-00", "01.234.567/0001-89", "987"} {
		once := NormalizeDocument(v)
		if twice := NormalizeDocument(once); twice != once {
			t.Fatalf("not idempotent for %q: %q then %q", v, once, twice)
		}
	}
}

func TestNormalizeDocumentLeadingZeros(t *testing.T) {
	if got := NormalizeDocument("01.234.567/0001-89"); got != NormalizeDocument("1234567000189") {
		t.Fatalf("numeric and text forms differ: %q", got)
	}
	if got := NormalizeDocument("000.000"); got != "" {
		t.Fatalf("all-zero document should normalize to empty, got %q", got)
	}
}

func TestStageOf(t *testing.T) {
	tests := []struct {
		pipeline, status string
		want             Stage
	}{
		{"CS | ONBOARDING", "", StageOnboarding},
		{"CS | BRADESCO", "Em andamento", StageOnboarding},
		{"CS | ONGOING", "", StageOngoing},
		{"CS | ONGOING", "CHURNS", StageChurned},
		{"Churns & Cancelamentos", "Solicitar cancelamento", StageCancellationRequested},
		{"VENDAS", "", StageOther},
	}
	for _, tt := range tests {
		if got := StageOf(tt.pipeline, tt.status); got != tt.want {
			t.Fatalf("StageOf(%q, %q) = %s, want %s", tt.pipeline, tt.status, got, tt.want)
		}
	}
	if !StageOngoing.Active() || StageChurned.Active() {
		t.Fatal("Active() misclassifies stages")
	}
}

func customerColumns() []string {
	return []string{
		"client_id", "nome", "cnpj", "pipeline", "status", "valor", "parcelas_atrasadas",
		"data_adesao", "data_cancelamento", "data_start_onboarding", "data_end_onboarding",
	}
}

func TestPostgresRepositoryQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows(customerColumns()).
		AddRow(1, "Loja A", "12.345.678/0001-90", "CS | ONGOING", "", "1500.50", 0,
			"2024-03-05", nil, "2024-03-06 09:00:00", "2024-03-20 18:00:00.123+00").
		AddRow(2, "Loja B", "98765432000110", "CS | ONGOING", "CHURNS", "800", 2,
			"2023-01-10", "garbage", nil, nil)
	mock.ExpectQuery("FROM clientes_atual").
		WithArgs("2024-03-01", nil).
		WillReturnRows(rows)

	repo := NewPostgresRepository(db)
	w := window.Parse("2024-03-01", "")
	got, err := repo.Query(context.Background(), w)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}

	a := got[0]
	if a.ID != "12345678000190" || a.Stage != StageOngoing {
		t.Fatalf("unexpected first record: %+v", a)
	}
	if a.ContractValue.StringFixed(2) != "1500.50" {
		t.Fatalf("contract value = %s", a.ContractValue)
	}
	if a.OnboardingEnd == nil || a.OnboardingEnd.Format("2006-01-02") != "2024-03-20" {
		t.Fatalf("onboarding end not parsed: %v", a.OnboardingEnd)
	}
	if a.OnboardingStart == nil || a.OnboardingStart.Hour() != 9 || a.OnboardingEnd.Hour() != 18 {
		t.Fatalf("onboarding clock dropped: %v .. %v", a.OnboardingStart, a.OnboardingEnd)
	}

	b := got[1]
	if b.ChurnDate != nil {
		t.Fatalf("unparseable churn date should be absent, got %v", b.ChurnDate)
	}
	if b.Stage != StageChurned || b.OverdueInstallments != 2 {
		t.Fatalf("unexpected second record: %+v", b)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresRepositoryQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	boom := errors.New("connection reset")
	mock.ExpectQuery("FROM clientes_atual").WillReturnError(boom)

	_, err = NewPostgresRepository(db).Query(context.Background(), window.All())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped driver error, got %v", err)
	}
}
