//go:build !integration

package payment_test

import (
	"context"
	"errors"
	"testing"

	"github.com/pranit-garg/Dispatch/internal/domain"
	"github.com/pranit-garg/Dispatch/internal/infra/adapters/payment"
)

func TestHeaderGate_PaidAmount(t *testing.T) {
	gate := payment.NewHeaderGate()
	ctx := context.Background()

	tests := []struct {
		name    string
		ref     string
		want    string
		wantErr bool
	}{
		{name: "plain amount", ref: "10000", want: "10000"},
		{name: "zero", ref: "0", want: "0"},
		{name: "large amount", ref: "123456789012345678901234567890", want: "123456789012345678901234567890"},
		{name: "missing", ref: "", wantErr: true},
		{name: "negative", ref: "-5", wantErr: true},
		{name: "not a number", ref: "ten", wantErr: true},
		{name: "decimal point", ref: "10.5", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := gate.PaidAmount(ctx, tc.ref)
			if tc.wantErr {
				if !errors.Is(err, domain.ErrInvalidArgument) {
					t.Fatalf("err = %v, want ErrInvalidArgument", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("PaidAmount(%q): %v", tc.ref, err)
			}
			if got.String() != tc.want {
				t.Fatalf("amount = %s, want %s", got.String(), tc.want)
			}
		})
	}
}
