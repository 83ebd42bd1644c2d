package errorsx

import "testing"

func TestWrapAndReason(t *testing.T) {
	err := Wrap(assertErr{}, ReasonLLMGenerate)
	if Reason(err) != ReasonLLMGenerate {
		t.Fatalf("expected reason %s, got %s", ReasonLLMGenerate, Reason(err))
	}
	if !HasReason(err, ReasonLLMGenerate) {
		t.Fatalf("expected HasReason true")
	}
}

func TestWrapPreservesExistingReason(t *testing.T) {
	first := Wrap(assertErr{}, ReasonStoreAppend)
	second := Wrap(first, ReasonLLMGenerate)
	if Reason(second) != ReasonStoreAppend {
		t.Fatalf("expected reason preserved, got %s", Reason(second))
	}
}

func TestErrorMessageCarriesReason(t *testing.T) {
	err := Wrap(assertErr{}, ReasonTTSSynthesize)
	want := string(ReasonTTSSynthesize) + ": boom"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, ReasonTTSSynthesize) != nil {
		t.Fatalf("expected nil for nil error")
	}
	if Reason(nil) != ReasonUnknown {
		t.Fatalf("expected unknown reason for nil error")
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
