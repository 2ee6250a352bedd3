package errors

import (
	stderrors "errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := New(CodeEventSequenceGap, "expected seq 4, got 6")
	if !stderrors.Is(err, New(CodeEventSequenceGap, "different message")) {
		t.Error("expected errors with same code to match")
	}
	if stderrors.Is(err, New(CodeNotFound, "expected seq 4, got 6")) {
		t.Error("expected errors with different codes not to match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("disk failure")
	err := Wrap(CodeSnapshotUnavailable, "load snapshot", cause)
	if !stderrors.Is(err, cause) {
		t.Error("expected wrapped cause to be found in chain")
	}
	if err.Error() != "load snapshot" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestToGRPCStatus(t *testing.T) {
	err := WithMetadata(CodeSessionPlayerCountTooLow, "5 players required", map[string]string{
		"player_count": "3",
	})
	st, ok := status.FromError(err.ToGRPCStatus())
	if !ok {
		t.Fatal("expected a grpc status error")
	}
	if st.Code() != codes.InvalidArgument {
		t.Errorf("expected InvalidArgument, got %v", st.Code())
	}
	if st.Message() != "5 players required" {
		t.Errorf("unexpected message: %q", st.Message())
	}
}

func TestGRPCCodeMapping(t *testing.T) {
	tests := []struct {
		code Code
		want codes.Code
	}{
		{CodeNotFound, codes.NotFound},
		{CodeSubscriptionOutOfRange, codes.OutOfRange},
		{CodeEventSequenceGap, codes.DataLoss},
		{CodeVigilanteShotSpent, codes.FailedPrecondition},
		{CodeUnknown, codes.Internal},
	}
	for _, tc := range tests {
		if got := tc.code.GRPCCode(); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.code, tc.want, got)
		}
	}
}
