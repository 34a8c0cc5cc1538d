package tontine

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

const (
	operationName    = "store"
	subjectName      = "payment"
	codeName         = "insert_failed"
	baseErrorMessage = "base error"
)

func TestOperationErrorFormatting(test *testing.T) {
	test.Parallel()
	baseError := errors.New(baseErrorMessage)
	wrappedError := WrapError(operationName, subjectName, codeName, baseError)
	if wrappedError == nil {
		test.Fatalf("expected wrapped error")
	}
	expected := operationName + "." + subjectName + "." + codeName + ": " + baseErrorMessage
	if wrappedError.Error() != expected {
		test.Fatalf("expected %q, got %q", expected, wrappedError.Error())
	}
	var operationError OperationError
	if !errors.As(wrappedError, &operationError) || operationError.Code() != codeName || !errors.Is(wrappedError, baseError) {
		test.Fatalf("expected unwrappable operation error, got %#v", wrappedError)
	}
}

func TestWrapErrorNil(test *testing.T) {
	test.Parallel()
	if WrapError(operationName, subjectName, codeName, nil) != nil {
		test.Fatalf("expected nil wrapped error")
	}
}

func TestAmountValidation(test *testing.T) {
	test.Parallel()
	if _, err := NewAmount(-1); !errors.Is(err, ErrInvalidAmount) {
		test.Fatalf("expected negative amount rejection, got %v", err)
	}
	if _, err := NewPositiveAmount(0); !errors.Is(err, ErrInvalidAmount) {
		test.Fatalf("expected zero positive amount rejection, got %v", err)
	}
	if amount, err := NewAmount(0); err != nil || amount != 0 {
		test.Fatalf("expected zero amount, got %d %v", amount, err)
	}
	if _, err := NewAmount(maxAmount + 1); !errors.Is(err, ErrInvalidAmount) {
		test.Fatalf("expected oversized amount rejection, got %v", err)
	}
	if _, err := NewPositiveAmount(math.MaxInt64); !errors.Is(err, ErrInvalidAmount) {
		test.Fatalf("expected oversized positive amount rejection, got %v", err)
	}
	if amount, err := NewPositiveAmount(maxAmount); err != nil || amount != maxAmount {
		test.Fatalf("expected the cap itself to be accepted, got %d %v", amount, err)
	}
}

func TestBalanceAddRefusesOverflow(test *testing.T) {
	test.Parallel()
	left := Balance{TotalCollected: maxLedgerTotal, CurrentBalance: maxLedgerTotal}
	if _, err := left.Add(Balance{TotalCollected: 1, CurrentBalance: 1}); !errors.Is(err, ErrInvalidAmount) {
		test.Fatalf("expected overflow rejection, got %v", err)
	}
	sum, err := Balance{TotalCollected: 10, TotalDistributed: 4, CurrentBalance: 6}.Add(Balance{TotalCollected: 5, CurrentBalance: 5})
	if err != nil {
		test.Fatalf("add: %v", err)
	}
	if sum != (Balance{TotalCollected: 15, TotalDistributed: 4, CurrentBalance: 11}) {
		test.Fatalf("unexpected sum %+v", sum)
	}
}

func TestNewGroupRefValidation(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name    string
		kind    GroupKind
		id      int64
		wantErr error
	}{
		{name: "valid", kind: GroupKindTontine, id: 4},
		{name: "unknown kind", kind: "circle", id: 4, wantErr: ErrInvalidGroupKind},
		{name: "zero id", kind: GroupKindCorridor, id: 0, wantErr: ErrInvalidGroupID},
	}
	for _, testCase := range testCases {
		ref, err := NewGroupRef(testCase.kind, testCase.id)
		if testCase.wantErr != nil {
			expectError(test, err, testCase.wantErr)
			continue
		}
		if err != nil || ref.ID != GroupID(testCase.id) || ref.Kind != testCase.kind {
			test.Fatalf("%s: unexpected ref %+v %v", testCase.name, ref, err)
		}
	}
}

func TestMetadataJSON(test *testing.T) {
	test.Parallel()
	empty, err := NewMetadataJSON("  ")
	if err != nil || empty.String() != "{}" {
		test.Fatalf("expected empty object, got %q %v", empty.String(), err)
	}
	if _, err := NewMetadataJSON("{broken"); !errors.Is(err, ErrInvalidMetadataJSON) {
		test.Fatalf("expected invalid json rejection, got %v", err)
	}
	encoded, err := MarshalMetadata(map[string]any{"groupId": 7})
	if err != nil {
		test.Fatalf("marshal: %v", err)
	}
	raw, err := encoded.MarshalJSON()
	if err != nil || string(raw) != `{"groupId":7}` {
		test.Fatalf("unexpected raw metadata %s %v", raw, err)
	}
}

func TestGroupDraftValidation(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name    string
		draft   GroupDraft
		wantErr error
	}{
		{name: "missing name", draft: GroupDraft{Bareme: 100}, wantErr: ErrInvalidGroup},
		{name: "zero bareme", draft: GroupDraft{Name: "Circle"}, wantErr: ErrInvalidAmount},
		{name: "oversized bareme", draft: GroupDraft{Name: "Circle", Bareme: maxAmount + 1}, wantErr: ErrInvalidAmount},
		{name: "commission above hundred", draft: GroupDraft{Name: "Circle", Bareme: 100, CommissionRate: decimal.NewFromInt(101)}, wantErr: ErrInvalidCommissionRate},
		{name: "negative duration", draft: GroupDraft{Name: "Circle", Bareme: 100, DurationDays: -1}, wantErr: ErrInvalidGroup},
	}
	for _, testCase := range testCases {
		draft := testCase.draft
		expectError(test, draft.Validate(), testCase.wantErr)
	}
	draft := GroupDraft{Name: "  Circle ", Bareme: 100, CommissionRate: decimal.RequireFromString("2.5")}
	if err := draft.Validate(); err != nil || draft.Name != "Circle" {
		test.Fatalf("unexpected draft %+v %v", draft, err)
	}
}

func TestParseRequestAction(test *testing.T) {
	test.Parallel()
	action, err := ParseRequestAction(" Accept ")
	if err != nil || action.ResultingStatus() != RequestStatusAccepted {
		test.Fatalf("unexpected action %q %v", action, err)
	}
	if _, err := ParseRequestAction("maybe"); !errors.Is(err, ErrInvalidRequestAction) {
		test.Fatalf("expected invalid action, got %v", err)
	}
}

func TestPercentageRounding(test *testing.T) {
	test.Parallel()
	if !percentage(1, 3).Equal(decimal.RequireFromString("33.33")) {
		test.Fatalf("expected 33.33, got %s", percentage(1, 3))
	}
	if !percentage(5, 0).IsZero() {
		test.Fatalf("expected zero for empty denominator")
	}
}
